package contract

import (
	"fmt"
	"strings"

	"github.com/varunvs7692/chaos-negotiator/pkg/models"
)

// Engine drafts deployment contracts from an assessment and a rollback
// plan.
type Engine struct{}

// NewEngine returns a contract engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Draft builds the deployment contract: guardrails scaled to the risk
// band, required validators, and suggested fixes.
func (e *Engine) Draft(ctx *models.DeploymentContext, assessment *models.RiskAssessment, plan *models.RollbackPlan) models.DeploymentContract {
	c := models.DeploymentContract{
		ContractID:            "contract-" + ctx.DeploymentID,
		DeploymentID:          ctx.DeploymentID,
		ServiceName:           ctx.ServiceName,
		PredictedRiskLevel:    assessment.RiskLevel,
		RiskScore:             assessment.RiskScore,
		RiskSummary:           assessment.Reasoning,
		RollbackPossible:      plan.RollbackPossible,
		RollbackWindowSeconds: plan.RollbackWindowSeconds,
		RollbackStepsCount:    len(plan.Steps),
	}

	c.Guardrails = buildGuardrails(ctx, assessment)
	c.Validators = buildValidators(ctx, assessment, plan)
	c.SuggestedFixes = suggestFixes(ctx, assessment, plan)
	c.Reasoning = contractReasoning(&c, assessment, plan)

	return c
}

func buildGuardrails(ctx *models.DeploymentContext, risk *models.RiskAssessment) []models.GuardrailRequirement {
	var guardrails []models.GuardrailRequirement

	var errThreshold float64
	switch risk.RiskLevel {
	case models.RiskLevelCritical:
		errThreshold = 0.2
	case models.RiskLevelHigh:
		errThreshold = 0.3
	default:
		errThreshold = 0.5
	}
	guardrails = append(guardrails, models.GuardrailRequirement{
		Type:                     models.GuardrailErrorRate,
		MaxValue:                 errThreshold,
		Unit:                     "%",
		Description:              fmt.Sprintf("Error rate must stay below %v%%", errThreshold),
		EnforcementWindowSeconds: 300,
	})

	increase := risk.PredictedP95LatencyIncreasePercent
	if increase > 50 {
		increase = 50
	}
	p95Threshold := ctx.TargetP95LatencyMS * (1 + increase/100)
	guardrails = append(guardrails, models.GuardrailRequirement{
		Type:                     models.GuardrailLatencyP95,
		MaxValue:                 p95Threshold,
		Unit:                     "ms",
		Description:              fmt.Sprintf("P95 latency must stay below %.0fms", p95Threshold),
		EnforcementWindowSeconds: 300,
	})

	p99Threshold := ctx.TargetP99LatencyMS * 1.25
	guardrails = append(guardrails, models.GuardrailRequirement{
		Type:                     models.GuardrailLatencyP99,
		MaxValue:                 p99Threshold,
		Unit:                     "ms",
		Description:              fmt.Sprintf("P99 latency must stay below %.0fms", p99Threshold),
		EnforcementWindowSeconds: 300,
	})

	if risk.RiskLevel == models.RiskLevelCritical || risk.RiskLevel == models.RiskLevelHigh {
		guardrails = append(guardrails, models.GuardrailRequirement{
			Type:                     models.GuardrailTrafficRamp,
			MaxValue:                 10.0,
			Unit:                     "%",
			Description:              "Canary traffic cap at 10% for initial phase",
			EnforcementWindowSeconds: 600,
		})
	}

	return guardrails
}

func buildValidators(ctx *models.DeploymentContext, risk *models.RiskAssessment, plan *models.RollbackPlan) []models.ValidatorRequirement {
	validators := []models.ValidatorRequirement{
		{
			ValidatorType: "test",
			Required:      true,
			Description:   "Unit and integration tests must pass",
		},
	}

	highRisk := risk.RiskLevel == models.RiskLevelCritical || risk.RiskLevel == models.RiskLevelHigh

	if highRisk {
		validators = append(validators, models.ValidatorRequirement{
			ValidatorType:            "canary",
			Required:                 true,
			Description:              "Canary deployment required (start at 5-10% traffic)",
			EstimatedDurationSeconds: 600,
		})
	}

	if highRisk || risk.RiskLevel == models.RiskLevelModerate {
		if plan.RollbackPossible {
			validators = append(validators, models.ValidatorRequirement{
				ValidatorType: "rollback_plan",
				Required:      true,
				Description:   "Tested rollback procedure required",
			})
		} else {
			validators = append(validators, models.ValidatorRequirement{
				ValidatorType: "rollback_plan",
				Required:      false,
				Description:   "Rollback plan not available - suggest implementing",
			})
		}
	}

	for _, change := range ctx.Changes {
		if strings.Contains(strings.ToLower(change.Description), "database") {
			validators = append(validators, models.ValidatorRequirement{
				ValidatorType: "feature_flag",
				Required:      true,
				Description:   "Database changes require feature flag for safe rollback",
			})
			break
		}
	}

	return validators
}

func suggestFixes(ctx *models.DeploymentContext, risk *models.RiskAssessment, plan *models.RollbackPlan) []string {
	var suggestions []string

	if risk.RiskLevel == models.RiskLevelCritical {
		suggestions = append(suggestions,
			"High risk deployment - consider breaking changes into smaller PRs",
			"Add feature flags to make changes independently togglable")
	}

	if !plan.RollbackPossible && risk.RiskLevel != models.RiskLevelLow {
		suggestions = append(suggestions,
			"Implement automated rollback capability using deployment orchestration",
			"Add database migration versioning for safe schema rollovers")
	}

	for _, change := range ctx.Changes {
		if strings.Contains(strings.ToLower(change.Description), "dependencies") {
			suggestions = append(suggestions,
				"Dependency updates detected - ensure backward compatibility",
				"Run security scan on new dependency versions")
			break
		}
	}

	if risk.ConfidencePercent < 60 {
		suggestions = append(suggestions,
			"Low confidence in risk prediction - add more context in PR description")
	}

	return suggestions
}

func contractReasoning(c *models.DeploymentContract, risk *models.RiskAssessment, plan *models.RollbackPlan) string {
	sep := strings.Repeat("=", 60)
	lines := []string{
		sep,
		"DEPLOYMENT CONTRACT",
		sep,
		"",
		"RISK ASSESSMENT:",
		fmt.Sprintf("  Level: %s", strings.ToUpper(string(risk.RiskLevel))),
		fmt.Sprintf("  Score: %.1f/100", risk.RiskScore),
		fmt.Sprintf("  Confidence: %.0f%%", risk.ConfidencePercent),
		"",
		"GUARDRAILS (SLO PROTECTION):",
	}

	for _, g := range c.Guardrails {
		lines = append(lines, fmt.Sprintf("  - %s: < %v %s", g.Type, g.MaxValue, g.Unit))
	}

	lines = append(lines, "", "VALIDATORS (PROOF REQUIRED):")
	for _, v := range c.Validators {
		req := "RECOMMENDED"
		if v.Required {
			req = "REQUIRED"
		}
		lines = append(lines,
			fmt.Sprintf("  - %s: %s", v.ValidatorType, req),
			"    "+v.Description)
	}

	lines = append(lines, "",
		"ROLLBACK CAPABILITY:",
		fmt.Sprintf("  Possible: %t", plan.RollbackPossible),
		fmt.Sprintf("  Window: %ds", plan.RollbackWindowSeconds),
		fmt.Sprintf("  Steps: %d", len(plan.Steps)))

	if len(c.SuggestedFixes) > 0 {
		lines = append(lines, "", "SUGGESTED IMPROVEMENTS:")
		for _, fix := range c.SuggestedFixes {
			lines = append(lines, "  - "+fix)
		}
	}

	lines = append(lines, "", sep)
	return strings.Join(lines, "\n")
}
