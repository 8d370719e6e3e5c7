package observability

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type moduleMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	ledgerMetricsOnce sync.Once
	ledgerRegistry    *LedgerMetrics
)

// ModuleMetrics returns the lazily-initialised registry used to record
// JSON-RPC method activity.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "supernode",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Total JSON-RPC requests segmented by module and method.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "supernode",
				Subsystem: "rpc",
				Name:      "errors_total",
				Help:      "Total JSON-RPC errors segmented by module, method, and status code.",
			}, []string{"module", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "supernode",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "supernode",
				Subsystem: "rpc",
				Name:      "throttles_total",
				Help:      "Count of requests rejected by the gateway rate limiter.",
			}, []string{"module", "reason"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
			moduleRegistry.throttles,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of a request. status is the HTTP status that
// was written to the response.
func (m *moduleMetrics) Observe(module, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
	}
	m.requests.WithLabelValues(module, method, outcome).Inc()
	if status >= 400 {
		m.errors.WithLabelValues(module, method, fmt.Sprintf("%d", status)).Inc()
	}
	m.latency.WithLabelValues(module, method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter for module and reason.
func (m *moduleMetrics) RecordThrottle(module, reason string) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(module, reason).Inc()
}

// LedgerMetrics tracks ledger operations and value flows.
type LedgerMetrics struct {
	operations  *prometheus.CounterVec
	distributed *prometheus.CounterVec
	dust        *prometheus.CounterVec
	claimed     *prometheus.CounterVec
	actors      *prometheus.GaugeVec
}

// Ledger returns the singleton ledger metrics registry.
func Ledger() *LedgerMetrics {
	ledgerMetricsOnce.Do(func() {
		ledgerRegistry = &LedgerMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "supernode",
				Subsystem: "ledger",
				Name:      "operations_total",
				Help:      "Ledger operations segmented by operation, track and outcome.",
			}, []string{"operation", "track", "outcome"}),
			distributed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "supernode",
				Subsystem: "ledger",
				Name:      "distributed_total",
				Help:      "Base units credited to actors by distributions.",
			}, []string{"track"}),
			dust: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "supernode",
				Subsystem: "ledger",
				Name:      "dust_total",
				Help:      "Base units left undistributed by rounding.",
			}, []string{"track"}),
			claimed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "supernode",
				Subsystem: "ledger",
				Name:      "claimed_total",
				Help:      "Base units paid out by claims and buyout auto-claims.",
			}, []string{"track"}),
			actors: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "supernode",
				Subsystem: "ledger",
				Name:      "actors",
				Help:      "Registered actors per pool.",
			}, []string{"pool"}),
		}
		prometheus.MustRegister(
			ledgerRegistry.operations,
			ledgerRegistry.distributed,
			ledgerRegistry.dust,
			ledgerRegistry.claimed,
			ledgerRegistry.actors,
		)
	})
	return ledgerRegistry
}

// RecordOperation counts one ledger operation. err decides the outcome label.
func (m *LedgerMetrics) RecordOperation(operation, track string, err error) {
	if m == nil {
		return
	}
	if track == "" {
		track = "none"
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.operations.WithLabelValues(operation, track, outcome).Inc()
}

// RecordDistribution adds credited value and dust for track.
func (m *LedgerMetrics) RecordDistribution(track string, credited, dust *big.Int) {
	if m == nil {
		return
	}
	m.distributed.WithLabelValues(track).Add(bigToFloat(credited))
	m.dust.WithLabelValues(track).Add(bigToFloat(dust))
}

// RecordClaim adds paid-out value for track.
func (m *LedgerMetrics) RecordClaim(track string, amount *big.Int) {
	if m == nil {
		return
	}
	m.claimed.WithLabelValues(track).Add(bigToFloat(amount))
}

// SetActors records the actor registry size of pool.
func (m *LedgerMetrics) SetActors(pool string, count int) {
	if m == nil {
		return
	}
	m.actors.WithLabelValues(pool).Set(float64(count))
}

func bigToFloat(v *big.Int) float64 {
	if v == nil || v.Sign() <= 0 {
		return 0
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}
