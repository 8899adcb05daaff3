// Package models provides domain models for the deployment risk engine.
package models

// ChangeType classifies a single file change.
type ChangeType string

const (
	ChangeTypeAdd    ChangeType = "add"
	ChangeTypeModify ChangeType = "modify"
	ChangeTypeDelete ChangeType = "delete"
)

// RiskTag identifies a known family of risky change patterns.
type RiskTag string

const (
	RiskTagCaching        RiskTag = "caching"
	RiskTagDatabaseSchema RiskTag = "database_schema"
	RiskTagAPIContract    RiskTag = "api_contract"
	RiskTagTraffic        RiskTag = "traffic"
	RiskTagPermissions    RiskTag = "permissions"
	RiskTagEncryption     RiskTag = "encryption"
	RiskTagLoadBalancing  RiskTag = "load_balancing"
	RiskTagStorage        RiskTag = "storage"
)

// KnownRiskTags lists the recognized risk tag vocabulary. Unknown tags
// in input are tolerated and ignored.
var KnownRiskTags = []RiskTag{
	RiskTagCaching,
	RiskTagDatabaseSchema,
	RiskTagAPIContract,
	RiskTagTraffic,
	RiskTagPermissions,
	RiskTagEncryption,
	RiskTagLoadBalancing,
	RiskTagStorage,
}

// ChangeDescriptor describes one changed file within a deployment.
type ChangeDescriptor struct {
	FilePath     string     `json:"file_path"`
	ChangeType   ChangeType `json:"change_type"`
	LinesChanged int        `json:"lines_changed"`
	RiskTags     []RiskTag  `json:"risk_tags,omitempty"`
	Description  string     `json:"description,omitempty"`
}

// DeploymentContext is the immutable input for one assessment.
type DeploymentContext struct {
	DeploymentID string             `json:"deployment_id"`
	ServiceName  string             `json:"service_name"`
	Environment  string             `json:"environment,omitempty"`
	Version      string             `json:"version,omitempty"`
	Changes      []ChangeDescriptor `json:"changes"`

	CurrentErrorRatePercent float64 `json:"current_error_rate_percent"`
	CurrentP95LatencyMS     float64 `json:"current_p95_latency_ms"`
	TargetErrorRatePercent  float64 `json:"target_error_rate_percent,omitempty"`
	TargetP95LatencyMS      float64 `json:"target_p95_latency_ms,omitempty"`
	TargetP99LatencyMS      float64 `json:"target_p99_latency_ms,omitempty"`
	CurrentQPS              float64 `json:"current_qps"`

	RollbackCapability bool     `json:"rollback_capability"`
	Dependencies       []string `json:"dependencies,omitempty"`
}

// TotalLinesChanged sums lines changed across all change descriptors.
func (c *DeploymentContext) TotalLinesChanged() int {
	total := 0
	for _, ch := range c.Changes {
		total += ch.LinesChanged
	}
	return total
}

// MinimalContext synthesizes a bare context for outcome recording when
// the caller supplied only a deployment ID.
func MinimalContext(deploymentID string) DeploymentContext {
	return DeploymentContext{
		DeploymentID: deploymentID,
		ServiceName:  "unknown",
		Changes:      nil,
	}
}
