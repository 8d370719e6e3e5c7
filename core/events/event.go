package events

import "supernode/core/types"

// Event represents a structured state change emitted by the ledger.
type Event interface {
	EventType() string
}

// Payload is implemented by events that carry a structured attribute map.
type Payload interface {
	Event
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (RPC streams, journals).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter discards every event.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Multi fans a single event out to several emitters in order.
type Multi []Emitter

// Emit implements the Emitter interface.
func (m Multi) Emit(evt Event) {
	for _, emitter := range m {
		if emitter == nil {
			continue
		}
		emitter.Emit(evt)
	}
}

// Unwrap extracts the attribute payload from an event when present.
func Unwrap(evt Event) (*types.Event, bool) {
	if evt == nil {
		return nil, false
	}
	payload, ok := evt.(Payload)
	if !ok {
		return nil, false
	}
	raw := payload.Event()
	if raw == nil {
		return nil, false
	}
	return raw, true
}
