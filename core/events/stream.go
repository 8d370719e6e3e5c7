package events

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"supernode/core/types"
)

const streamHistoryLimit = 2048

// Update is a sequenced event delivered to stream subscribers.
type Update struct {
	Sequence uint64
	Cursor   string
	Event    *types.Event
}

// Stream is an Emitter that retains a bounded history and fans events out to
// live subscribers. Sends are non-blocking; a full subscriber misses updates.
type Stream struct {
	mu      sync.Mutex
	seq     uint64
	nextID  uint64
	subs    map[uint64]chan Update
	history []Update
}

// NewStream constructs an empty stream.
func NewStream() *Stream {
	return &Stream{subs: make(map[uint64]chan Update)}
}

// Emit implements the Emitter interface.
func (s *Stream) Emit(evt Event) {
	raw, ok := Unwrap(evt)
	if s == nil || !ok {
		return
	}
	s.mu.Lock()
	s.seq++
	update := Update{Sequence: s.seq, Cursor: strconv.FormatUint(s.seq, 10), Event: raw.Clone()}
	s.history = append(s.history, update)
	if len(s.history) > streamHistoryLimit {
		excess := len(s.history) - streamHistoryLimit
		trimmed := make([]Update, streamHistoryLimit)
		copy(trimmed, s.history[excess:])
		s.history = trimmed
	}
	for _, ch := range s.subs {
		select {
		case ch <- Update{Sequence: update.Sequence, Cursor: update.Cursor, Event: update.Event.Clone()}:
		default:
		}
	}
	s.mu.Unlock()
}

// Subscribe registers a subscriber and returns the retained updates after the
// supplied cursor. The cancel function must be called to release the channel.
func (s *Stream) Subscribe(ctx context.Context, cursor string) (<-chan Update, func(), []Update, error) {
	if s == nil {
		return nil, nil, nil, fmt.Errorf("event stream not initialised")
	}
	var since uint64
	if trimmed := strings.TrimSpace(cursor); trimmed != "" {
		parsed, err := strconv.ParseUint(trimmed, 10, 64)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("invalid cursor %q", cursor)
		}
		since = parsed
	}
	updates := make(chan Update, 32)

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = updates
	backlog := make([]Update, 0, len(s.history))
	for _, update := range s.history {
		if update.Sequence > since {
			backlog = append(backlog, Update{Sequence: update.Sequence, Cursor: update.Cursor, Event: update.Event.Clone()})
		}
	}
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			close(updates)
		})
	}
	go func() {
		<-ctx.Done()
		cancel()
	}()
	return updates, cancel, backlog, nil
}
