package models

// GuardrailType identifies the metric a guardrail constrains.
type GuardrailType string

const (
	GuardrailErrorRate   GuardrailType = "error_rate"
	GuardrailLatencyP95  GuardrailType = "latency_p95"
	GuardrailLatencyP99  GuardrailType = "latency_p99"
	GuardrailTrafficRamp GuardrailType = "traffic_ramp"
)

// GuardrailRequirement is one quantitative threshold a deployment must
// respect while the contract is in force.
type GuardrailRequirement struct {
	Type                     GuardrailType `json:"guardrail_type"`
	MaxValue                 float64       `json:"max_value"`
	Unit                     string        `json:"unit"`
	Description              string        `json:"description"`
	EnforcementWindowSeconds int           `json:"enforcement_window_seconds"`
}

// ValidatorRequirement names a proof the deployer must supply.
type ValidatorRequirement struct {
	ValidatorType            string `json:"validator_type"`
	Required                 bool   `json:"required"`
	Description              string `json:"description"`
	EstimatedDurationSeconds int    `json:"estimated_duration_seconds,omitempty"`
}

// RollbackStep is one ordered action in a rollback plan.
type RollbackStep struct {
	StepNumber               int    `json:"step_number"`
	Description              string `json:"description"`
	Command                  string `json:"command,omitempty"`
	EstimatedDurationSeconds int    `json:"estimated_duration_seconds"`
	ValidationMethod         string `json:"validation_method"`
	Dependencies             []int  `json:"dependencies,omitempty"`
}

// RollbackPlan describes how a deployment would be reverted and the
// window within which reverting is considered safe.
type RollbackPlan struct {
	PlanID       string `json:"plan_id"`
	DeploymentID string `json:"deployment_id"`

	RollbackPossible          bool           `json:"rollback_possible"`
	Steps                     []RollbackStep `json:"steps,omitempty"`
	TotalEstimatedTimeSeconds int            `json:"total_estimated_time_seconds"`
	RollbackWindowSeconds     int            `json:"rollback_window_seconds"`

	DataLossRisk              string `json:"data_loss_risk"`
	ServiceDisruptionExpected bool   `json:"service_disruption_expected"`
	DisruptionWindowSeconds   int    `json:"disruption_window_seconds,omitempty"`

	Reasoning string `json:"reasoning,omitempty"`
}

// DeploymentContract bundles the negotiated safety requirements for one
// deployment.
type DeploymentContract struct {
	ContractID   string `json:"contract_id"`
	DeploymentID string `json:"deployment_id"`
	ServiceName  string `json:"service_name"`

	PredictedRiskLevel RiskLevel `json:"predicted_risk_level"`
	RiskScore          float64   `json:"risk_score"`
	RiskSummary        string    `json:"risk_summary,omitempty"`

	Guardrails     []GuardrailRequirement `json:"guardrails"`
	Validators     []ValidatorRequirement `json:"validators"`
	SuggestedFixes []string               `json:"suggested_fixes,omitempty"`

	RollbackPossible      bool `json:"rollback_possible"`
	RollbackWindowSeconds int  `json:"rollback_window_seconds"`
	RollbackStepsCount    int  `json:"rollback_steps_count"`

	Reasoning string `json:"reasoning,omitempty"`
}
