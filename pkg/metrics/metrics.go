// Package metrics exposes Prometheus instrumentation for timer store
// engines: a live-entry gauge, added/removed/expired counters, and a
// histogram of Advance/PopExpired latency, labeled by which engine
// (lawn or wheel) produced them.
//
// Grounded on pkg/utils/invariant.go's promauto.NewCounterVec pattern — this
// package is the harness-side equivalent for the two engines' own mutation
// counts rather than invariant violations.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	liveEntries = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "timerstore_live_entries",
		Help: "Number of live timers currently tracked by the store.",
	}, []string{"engine"})

	added = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timerstore_added_total",
		Help: "Total number of timers successfully added.",
	}, []string{"engine"})

	removed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timerstore_removed_total",
		Help: "Total number of timers successfully removed.",
	}, []string{"engine"})

	expired = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timerstore_expired_total",
		Help: "Total number of timers delivered by PopExpired/Advance.",
	}, []string{"engine"})

	operationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "timerstore_operation_latency_seconds",
		Help:    "Latency of PopExpired/Advance calls.",
		Buckets: prometheus.DefBuckets,
	}, []string{"engine"})
)

// SetLiveEntries records the current live-entry count for engine.
func SetLiveEntries(engine string, n int) {
	liveEntries.WithLabelValues(engine).Set(float64(n))
}

// RecordAdd increments the added counter for engine.
func RecordAdd(engine string) {
	added.WithLabelValues(engine).Inc()
}

// RecordRemove increments the removed counter for engine.
func RecordRemove(engine string) {
	removed.WithLabelValues(engine).Inc()
}

// RecordExpired adds n to the expired counter for engine.
func RecordExpired(engine string, n int) {
	if n <= 0 {
		return
	}
	expired.WithLabelValues(engine).Add(float64(n))
}

// ObserveOperationLatency records how long a PopExpired/Advance call took.
func ObserveOperationLatency(engine string, d time.Duration) {
	operationLatency.WithLabelValues(engine).Observe(d.Seconds())
}
