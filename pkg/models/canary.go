package models

// CanaryStage is one segment of a staged rollout.
type CanaryStage struct {
	Index           int     `json:"index"`
	Name            string  `json:"name"`
	TrafficPercent  float64 `json:"traffic_percent"`
	DurationSeconds int     `json:"duration_seconds"`
}

// CanaryPolicy is the staged rollout plan with guardrail thresholds.
type CanaryPolicy struct {
	DeploymentID string        `json:"deployment_id"`
	Stages       []CanaryStage `json:"stages"`

	ErrorRateThresholdPercent float64 `json:"error_rate_threshold_percent"`
	LatencyThresholdMS        float64 `json:"latency_threshold_ms"`
	RollbackOnViolation       bool    `json:"rollback_on_violation"`

	RiskScore         float64 `json:"risk_score"`
	ConfidencePercent float64 `json:"confidence_percent"`
}

// CanaryResult is a stage-advance recommendation for a rollout in
// progress.
type CanaryResult struct {
	DeploymentID              string  `json:"deployment_id"`
	RecommendedTrafficPercent float64 `json:"recommended_traffic_percent"`
	Reason                    string  `json:"reason"`
	ReadyToPromote            bool    `json:"ready_to_promote"`
}
