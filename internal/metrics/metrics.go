// Package metrics provides Prometheus metrics for the polling service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the custom prometheus registry for callstat.
var Registry = prometheus.NewRegistry()

// factory registers metrics to Registry directly.
var factory = promauto.With(Registry)

// Cycle results.
const (
	ResultProcessed = "processed"
	ResultIdle      = "idle"
	ResultFailed    = "failed"
)

// =============================================================================
// CYCLE METRICS
// =============================================================================

// CyclesTotal counts poll cycles by result.
var CyclesTotal = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "callstat",
	Name:      "cycles_total",
	Help:      "Poll cycles by result (processed, idle, failed)",
}, []string{"result"})

// CycleDurationSeconds tracks how long one poll cycle takes.
var CycleDurationSeconds = factory.NewHistogram(prometheus.HistogramOpts{
	Namespace: "callstat",
	Name:      "cycle_duration_seconds",
	Help:      "Time taken by one poll cycle",
	Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
})

// LastBatchTimestamp is the push time of the latest processed batch.
var LastBatchTimestamp = factory.NewGauge(prometheus.GaugeOpts{
	Namespace: "callstat",
	Name:      "last_batch_timestamp_seconds",
	Help:      "Unix time of the latest processed batch",
})

// =============================================================================
// STATISTICS METRICS
// =============================================================================

// BatchesScoredTotal counts batch stats written per category.
var BatchesScoredTotal = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "callstat",
	Name:      "batches_scored_total",
	Help:      "Batch statistics rows written per category",
}, []string{"category"})

// ClosuresTotal counts closures detected per category.
var ClosuresTotal = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "callstat",
	Name:      "closures_total",
	Help:      "Closed calls detected per category",
}, []string{"category"})

// RollupsTotal counts rollup outcomes per level.
var RollupsTotal = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "callstat",
	Name:      "rollups_total",
	Help:      "Rollup periods per level and outcome (committed, skipped)",
}, []string{"level", "outcome"})

// =============================================================================
// TRACKING METRICS
// =============================================================================

// TrackingLookupsTotal counts enrichment outcomes per record.
var TrackingLookupsTotal = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "tracking",
	Name:      "lookups_total",
	Help:      "Tracking lookups by result (enriched, skipped, failed)",
}, []string{"result"})

// TrackingRunsInFlight is 1 while an enrichment run is active.
var TrackingRunsInFlight = factory.NewGauge(prometheus.GaugeOpts{
	Namespace: "tracking",
	Name:      "runs_in_flight",
	Help:      "Whether a tracking enrichment run is active",
})

// =============================================================================
// Helper Functions
// =============================================================================

// ObserveRollup records a rollup result for a level.
func ObserveRollup(level string, committed, skipped int) {
	if committed > 0 {
		RollupsTotal.WithLabelValues(level, "committed").Add(float64(committed))
	}
	if skipped > 0 {
		RollupsTotal.WithLabelValues(level, "skipped").Add(float64(skipped))
	}
}

// Handler serves Registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
