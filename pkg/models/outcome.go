package models

import (
	"math"
	"time"
)

// DeploymentOutcome is a persisted record of one deployment's predicted
// and observed values. Rows are append-only and never mutated.
type DeploymentOutcome struct {
	DeploymentID string    `json:"deployment_id"`
	Timestamp    time.Time `json:"timestamp"`

	HeuristicScore float64 `json:"heuristic_score"`
	MLScore        float64 `json:"ml_score"`
	FinalScore     float64 `json:"final_score"`

	ActualErrorRatePercent     float64 `json:"actual_error_rate_percent"`
	ActualLatencyChangePercent float64 `json:"actual_latency_change_percent"`
	RollbackTriggered          bool    `json:"rollback_triggered"`

	// Features is the scorer feature vector captured at record time.
	// Persisted in an auxiliary column so later model updates can
	// replay the example; rows recorded without it are skipped by the
	// learner.
	Features []float64 `json:"-"`
}

// ActualRiskProxy derives a deterministic [0,1] risk signal from the
// observed metrics. It is the target for ML updates and the reference
// for calibration.
func (o *DeploymentOutcome) ActualRiskProxy() float64 {
	rollback := 0.0
	if o.RollbackTriggered {
		rollback = 1.0
	}
	proxy := 0.5*rollback +
		0.3*(o.ActualErrorRatePercent/1.0) +
		0.2*(o.ActualLatencyChangePercent/50.0)
	return math.Min(1.0, math.Max(0.0, proxy))
}
