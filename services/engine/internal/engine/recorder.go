package engine

import (
	"context"
	"math"
	"time"

	"github.com/varunvs7692/chaos-negotiator/pkg/kafka"
	"github.com/varunvs7692/chaos-negotiator/pkg/models"
	"github.com/varunvs7692/chaos-negotiator/pkg/telemetry"
	"github.com/varunvs7692/chaos-negotiator/services/engine/internal/metrics"
	"github.com/varunvs7692/chaos-negotiator/services/engine/internal/predictor"
)

// calibrationFetch is how many recent outcomes feed a calibration
// refresh after a record.
const calibrationFetch = 20

// Record re-scores the context at recording time, persists the outcome,
// and refreshes the ensemble calibration. Validation happens before any
// write; a storage failure writes nothing. Once validation passes the
// write runs to durable completion even if the caller cancels.
func (e *Engine) Record(ctx context.Context, dctx *models.DeploymentContext, actualErrorRatePercent, actualLatencyChangePercent float64, rollbackTriggered bool) (*models.DeploymentOutcome, error) {
	if !e.Ready() {
		return nil, ErrNotReady
	}
	if err := ValidateContext(dctx); err != nil {
		return nil, err
	}
	if math.IsNaN(actualErrorRatePercent) || math.IsInf(actualErrorRatePercent, 0) || actualErrorRatePercent < 0 {
		return nil, validationErr("actual_error_rate_percent must be non-negative, got %v", actualErrorRatePercent)
	}
	if math.IsNaN(actualLatencyChangePercent) || math.IsInf(actualLatencyChangePercent, 0) {
		return nil, validationErr("actual_latency_change_percent must be a finite number, got %v", actualLatencyChangePercent)
	}

	ctx, span := telemetry.RecordSpan(ctx, dctx.DeploymentID)
	defer span.End()

	// Capture the scores in effect right now so the persisted row is
	// self-consistent with the current weights.
	assessment := e.ensemble.Predict(dctx)

	outcome := models.DeploymentOutcome{
		DeploymentID:               dctx.DeploymentID,
		Timestamp:                  time.Now().UTC(),
		HeuristicScore:             assessment.HeuristicScore,
		MLScore:                    assessment.MLScore,
		FinalScore:                 assessment.RiskScore,
		ActualErrorRatePercent:     actualErrorRatePercent,
		ActualLatencyChangePercent: actualLatencyChangePercent,
		RollbackTriggered:          rollbackTriggered,
		Features:                   predictor.ExtractFeatures(dctx),
	}

	// The save must complete durably regardless of caller cancellation.
	saveCtx := context.WithoutCancel(ctx)
	if err := e.history.Save(saveCtx, &outcome); err != nil {
		wrapped := storageErr("save", err)
		span.SetError(wrapped)
		return nil, wrapped
	}
	span.SetOK()

	metrics.OutcomesRecordedTotal.Inc()

	if recent, err := e.history.Recent(saveCtx, calibrationFetch); err == nil {
		e.ensemble.RefreshCalibration(recent)
	} else {
		e.log.Warn("calibration refresh failed", "error", err)
	}

	e.publish(saveCtx, e.topics.OutcomeRecorded, kafka.EventOutcomeRecorded, dctx.DeploymentID, outcome)

	return &outcome, nil
}
