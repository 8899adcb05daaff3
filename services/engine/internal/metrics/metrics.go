// Package metrics exposes Prometheus instrumentation for the risk
// engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AssessmentsTotal counts assessments by resulting risk level.
	AssessmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chaos_negotiator_assessments_total",
		Help: "Deployment assessments served, by risk level.",
	}, []string{"risk_level"})

	// OutcomesRecordedTotal counts recorded deployment outcomes.
	OutcomesRecordedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chaos_negotiator_outcomes_recorded_total",
		Help: "Deployment outcomes durably recorded.",
	})

	// TunePassesTotal counts tuning passes by result.
	TunePassesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chaos_negotiator_tune_passes_total",
		Help: "Weight tuning passes, by result.",
	}, []string{"result"})

	// EnsembleWeight reports the current ensemble weights.
	EnsembleWeight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "chaos_negotiator_ensemble_weight",
		Help: "Current ensemble weight per scorer.",
	}, []string{"scorer"})

	// RequestDuration observes HTTP request latency.
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chaos_negotiator_request_duration_seconds",
		Help:    "HTTP request duration by route and status.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "status"})
)

// SetEnsembleWeights records the active weight pair.
func SetEnsembleWeights(heuristic, ml float64) {
	EnsembleWeight.WithLabelValues("heuristic").Set(heuristic)
	EnsembleWeight.WithLabelValues("ml").Set(ml)
}
