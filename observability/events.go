package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"supernode/core/events"
)

type eventMetrics struct {
	transfers *prometheus.CounterVec
	emitted   *prometheus.CounterVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics tracking ledger events and custody transfers. It
// also implements events.Emitter so it can sit in an emitter fan-out.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "supernode",
				Subsystem: "events",
				Name:      "transfers_total",
				Help:      "Count of bank transfer legs segmented by asset.",
			}, []string{"asset"}),
			emitted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "supernode",
				Subsystem: "events",
				Name:      "emitted_total",
				Help:      "Count of ledger events segmented by type.",
			}, []string{"type"}),
		}
		prometheus.MustRegister(eventRegistry.transfers, eventRegistry.emitted)
	})
	return eventRegistry
}

// RecordTransfer increments the transfer counter for the supplied asset.
func (m *eventMetrics) RecordTransfer(asset string) {
	if m == nil {
		return
	}
	normalized := strings.TrimSpace(strings.ToLower(asset))
	if normalized == "" {
		normalized = "unknown"
	}
	m.transfers.WithLabelValues(normalized).Inc()
}

// Emit implements events.Emitter.
func (m *eventMetrics) Emit(evt events.Event) {
	if m == nil || evt == nil {
		return
	}
	m.emitted.WithLabelValues(evt.EventType()).Inc()
}
