// Package canary generates staged rollout policies from a risk
// assessment and recommends stage transitions.
package canary

import (
	"fmt"

	"github.com/varunvs7692/chaos-negotiator/pkg/models"
)

// Confidence bands for template selection.
const (
	confidenceHigh   = 80.0
	confidenceMedium = 60.0
)

// stageTemplate is a base stage before the duration multiplier.
type stageTemplate struct {
	name            string
	trafficPercent  float64
	durationSeconds int
}

var threeStage = []stageTemplate{
	{"smoke", 10, 180},
	{"majority", 50, 300},
	{"full", 100, 300},
}

var fourStage = []stageTemplate{
	{"smoke", 5, 300},
	{"light", 25, 420},
	{"majority", 50, 420},
	{"full", 100, 300},
}

var fiveStage = []stageTemplate{
	{"smoke", 5, 300},
	{"light", 10, 420},
	{"half", 25, 600},
	{"majority", 50, 600},
	{"full", 100, 300},
}

// plan pairs a stage template with its duration multiplier.
type plan struct {
	stages     []stageTemplate
	multiplier float64
}

// selectPlan is the (risk band, confidence band) template matrix.
func selectPlan(level models.RiskLevel, confidence float64) plan {
	type band int
	var conf band
	switch {
	case confidence >= confidenceHigh:
		conf = 0
	case confidence >= confidenceMedium:
		conf = 1
	default:
		conf = 2
	}

	switch level {
	case models.RiskLevelLow:
		return []plan{{threeStage, 0.8}, {fourStage, 1.0}, {fiveStage, 1.2}}[conf]
	case models.RiskLevelModerate:
		return []plan{{fourStage, 1.0}, {fourStage, 1.2}, {fiveStage, 1.5}}[conf]
	case models.RiskLevelHigh:
		return []plan{{fourStage, 1.2}, {fiveStage, 1.5}, {fiveStage, 1.8}}[conf]
	default: // critical
		return []plan{{fiveStage, 1.5}, {fiveStage, 1.8}, {fiveStage, 2.0}}[conf]
	}
}

// Generator produces canary policies. It is a pure function of the
// assessment and context.
type Generator struct{}

// NewGenerator returns a policy generator.
func NewGenerator() *Generator {
	return &Generator{}
}

// GeneratePolicy maps (risk, confidence) to a staged rollout with
// guardrail thresholds.
func (g *Generator) GeneratePolicy(ctx *models.DeploymentContext, assessment *models.RiskAssessment) models.CanaryPolicy {
	p := selectPlan(assessment.RiskLevel, assessment.ConfidencePercent)

	stages := make([]models.CanaryStage, len(p.stages))
	for i, tmpl := range p.stages {
		stages[i] = models.CanaryStage{
			Index:           i,
			Name:            tmpl.name,
			TrafficPercent:  tmpl.trafficPercent,
			DurationSeconds: int(float64(tmpl.durationSeconds) * p.multiplier),
		}
	}

	errThreshold, latThreshold := guardrails(assessment.RiskLevel)
	if assessment.HasFactor(models.RiskTagCaching) && latThreshold > 200 {
		latThreshold = 200
	}

	band := assessment.RiskLevel
	rollback := ctx.RollbackCapability &&
		(band == models.RiskLevelHigh || band == models.RiskLevelCritical)

	return models.CanaryPolicy{
		DeploymentID:              ctx.DeploymentID,
		Stages:                    stages,
		ErrorRateThresholdPercent: errThreshold,
		LatencyThresholdMS:        latThreshold,
		RollbackOnViolation:       rollback,
		RiskScore:                 assessment.RiskScore,
		ConfidencePercent:         assessment.ConfidencePercent,
	}
}

// guardrails returns (error rate threshold %, latency threshold ms)
// for a risk band.
func guardrails(level models.RiskLevel) (float64, float64) {
	switch level {
	case models.RiskLevelCritical:
		return 0.2, 200
	case models.RiskLevelHigh:
		return 0.3, 250
	default:
		return 0.5, 500
	}
}

// StageMetrics carries observed metrics for a stage in progress.
type StageMetrics struct {
	ErrorRatePercent float64
	LatencyMS        float64
}

// NextStage recommends the transition from the given stage index:
// rollback on guardrail violation, advance while stages remain,
// promote once the final stage has passed.
func NextStage(policy *models.CanaryPolicy, currentStage int, metrics *StageMetrics) models.CanaryResult {
	if metrics != nil && policy.RollbackOnViolation {
		if metrics.ErrorRatePercent > policy.ErrorRateThresholdPercent {
			return models.CanaryResult{
				DeploymentID:              policy.DeploymentID,
				RecommendedTrafficPercent: 0,
				Reason: fmt.Sprintf("Error rate %.2f%% exceeds threshold %.2f%%",
					metrics.ErrorRatePercent, policy.ErrorRateThresholdPercent),
			}
		}
		if metrics.LatencyMS > policy.LatencyThresholdMS {
			return models.CanaryResult{
				DeploymentID:              policy.DeploymentID,
				RecommendedTrafficPercent: 0,
				Reason: fmt.Sprintf("Latency %.0fms exceeds threshold %.0fms",
					metrics.LatencyMS, policy.LatencyThresholdMS),
			}
		}
	}

	if currentStage < len(policy.Stages)-1 {
		next := policy.Stages[currentStage+1]
		return models.CanaryResult{
			DeploymentID:              policy.DeploymentID,
			RecommendedTrafficPercent: next.TrafficPercent,
			Reason: fmt.Sprintf("Advancing to stage %d (%s): %.0f%% traffic",
				next.Index, next.Name, next.TrafficPercent),
		}
	}

	return models.CanaryResult{
		DeploymentID:              policy.DeploymentID,
		RecommendedTrafficPercent: 100,
		Reason:                    "All canary stages passed; ready for full rollout.",
		ReadyToPromote:            true,
	}
}
