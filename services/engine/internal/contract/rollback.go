// Package contract drafts deployment contracts: rollback plans,
// guardrail requirements, and required validators.
package contract

import (
	"fmt"
	"strings"

	"github.com/varunvs7692/chaos-negotiator/pkg/models"
)

// Rollback window bounds in seconds.
const (
	minRollbackWindow = 300
	maxRollbackWindow = 1800
)

// BuildRollbackPlan derives a rollback plan from the context and the
// risk assessment. Low-risk deployments get no plan; the window is
// twice the estimated rollback time, clamped to [5m, 30m].
func BuildRollbackPlan(ctx *models.DeploymentContext, assessment *models.RiskAssessment) models.RollbackPlan {
	plan := models.RollbackPlan{
		PlanID:           "rollback-" + ctx.DeploymentID,
		DeploymentID:     ctx.DeploymentID,
		RollbackPossible: ctx.RollbackCapability,
		DataLossRisk:     "none",
	}

	if !ctx.RollbackCapability {
		plan.Reasoning = "Rollback not possible - no rollback capability configured"
		return plan
	}

	if assessment.RiskLevel == models.RiskLevelLow {
		plan.RollbackPossible = false
		plan.Reasoning = "Low risk deployment - no rollback plan required"
		return plan
	}

	plan.Steps = rollbackSteps(ctx)
	for _, step := range plan.Steps {
		plan.TotalEstimatedTimeSeconds += step.EstimatedDurationSeconds
	}
	window := plan.TotalEstimatedTimeSeconds * 2
	if window < minRollbackWindow {
		window = minRollbackWindow
	}
	if window > maxRollbackWindow {
		window = maxRollbackWindow
	}
	plan.RollbackWindowSeconds = window

	for _, change := range ctx.Changes {
		if change.ChangeType == models.ChangeTypeDelete {
			plan.DataLossRisk = "medium"
		}
		desc := strings.ToLower(change.Description)
		if strings.Contains(desc, "database") || strings.Contains(desc, "schema") {
			if plan.DataLossRisk == "none" {
				plan.DataLossRisk = "low"
			}
		}
	}

	plan.ServiceDisruptionExpected = len(plan.Steps) > 5
	if plan.ServiceDisruptionExpected {
		for _, step := range plan.Steps[:3] {
			plan.DisruptionWindowSeconds += step.EstimatedDurationSeconds
		}
	}

	plan.Reasoning = rollbackReasoning(&plan)
	return plan
}

func rollbackSteps(ctx *models.DeploymentContext) []models.RollbackStep {
	service := ctx.ServiceName
	if service == "" {
		service = "unknown"
	}

	steps := []models.RollbackStep{
		{
			StepNumber:               1,
			Description:              "Trigger rollback signal to deployment orchestrator",
			Command:                  fmt.Sprintf("kubectl rollout undo deployment/%s", service),
			EstimatedDurationSeconds: 30,
			ValidationMethod:         "kubernetes_status",
		},
		{
			StepNumber:               2,
			Description:              "Wait for previous version to become healthy",
			Command:                  fmt.Sprintf("kubectl rollout status deployment/%s --timeout=5m", service),
			EstimatedDurationSeconds: 60,
			ValidationMethod:         "health_check",
			Dependencies:             []int{1},
		},
		{
			StepNumber:               3,
			Description:              "Verify service endpoints are responding",
			Command:                  "healthcheck-service " + service,
			EstimatedDurationSeconds: 15,
			ValidationMethod:         "metric_monitor",
			Dependencies:             []int{2},
		},
		{
			StepNumber:               4,
			Description:              "Clear distributed caches if applicable",
			Command:                  "cache-flush --service=" + service,
			EstimatedDurationSeconds: 10,
			ValidationMethod:         "metric_monitor",
			Dependencies:             []int{3},
		},
	}

	for _, change := range ctx.Changes {
		if strings.Contains(strings.ToLower(change.Description), "database") {
			steps = append(steps, models.RollbackStep{
				StepNumber:               5,
				Description:              "Re-run migration rollback if needed",
				Command:                  "flyway undo",
				EstimatedDurationSeconds: 120,
				ValidationMethod:         "manual",
				Dependencies:             []int{4},
			})
			break
		}
	}

	return steps
}

func rollbackReasoning(plan *models.RollbackPlan) string {
	lines := []string{
		fmt.Sprintf("Rollback Possible: %t", plan.RollbackPossible),
		fmt.Sprintf("Estimated Rollback Time: %ds", plan.TotalEstimatedTimeSeconds),
		fmt.Sprintf("Rollback Window: %ds", plan.RollbackWindowSeconds),
		fmt.Sprintf("Data Loss Risk: %s", plan.DataLossRisk),
	}

	if len(plan.Steps) > 0 {
		lines = append(lines, fmt.Sprintf("Rollback Steps: %d", len(plan.Steps)))
		for _, step := range plan.Steps {
			lines = append(lines, fmt.Sprintf("  - Step %d: %s", step.StepNumber, step.Description))
		}
	}

	if plan.ServiceDisruptionExpected {
		lines = append(lines, fmt.Sprintf("Expected Service Disruption: ~%ds", plan.DisruptionWindowSeconds))
	}

	return strings.Join(lines, "\n")
}
