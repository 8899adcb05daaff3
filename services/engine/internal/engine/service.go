package engine

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/varunvs7692/chaos-negotiator/pkg/kafka"
	"github.com/varunvs7692/chaos-negotiator/pkg/logger"
	"github.com/varunvs7692/chaos-negotiator/pkg/models"
	"github.com/varunvs7692/chaos-negotiator/pkg/telemetry"
	"github.com/varunvs7692/chaos-negotiator/services/engine/internal/canary"
	"github.com/varunvs7692/chaos-negotiator/services/engine/internal/contract"
	"github.com/varunvs7692/chaos-negotiator/services/engine/internal/metrics"
	"github.com/varunvs7692/chaos-negotiator/services/engine/internal/predictor"
	"github.com/varunvs7692/chaos-negotiator/services/engine/internal/store"
)

// Publisher is the optional event sink for assessment and outcome
// events. Publish failures never fail the request.
type Publisher interface {
	PublishEvent(ctx context.Context, topic string, event kafka.Event) error
}

// Topics names the event topics the engine publishes to.
type Topics struct {
	DeploymentAssessed string
	OutcomeRecorded    string
}

// Engine is the assessment and recording entry point. The request path
// is read-only; shared state lives behind atomic snapshots inside the
// ensemble.
type Engine struct {
	ensemble  *predictor.Ensemble
	policies  *canary.Generator
	contracts *contract.Engine
	history   store.Store
	log       *logger.Logger

	publisher Publisher
	topics    Topics
}

// Option configures optional engine collaborators.
type Option func(*Engine)

// WithPublisher attaches an event publisher.
func WithPublisher(p Publisher, topics Topics) Option {
	return func(e *Engine) {
		e.publisher = p
		e.topics = topics
	}
}

// New wires the engine from its collaborators.
func New(ensemble *predictor.Ensemble, history store.Store, log *logger.Logger, opts ...Option) *Engine {
	e := &Engine{
		ensemble:  ensemble,
		policies:  canary.NewGenerator(),
		contracts: contract.NewEngine(),
		history:   history,
		log:       log.WithComponent("engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Ready reports whether essential state is initialized.
func (e *Engine) Ready() bool {
	return e.history != nil && e.ensemble != nil
}

// Ensemble exposes the ensemble for the tuner.
func (e *Engine) Ensemble() *predictor.Ensemble {
	return e.ensemble
}

// AssessResponse is the full result of one assessment.
type AssessResponse struct {
	RiskAssessment     models.RiskAssessment     `json:"risk_assessment"`
	CanaryPolicy       models.CanaryPolicy       `json:"canary_policy"`
	DeploymentContract models.DeploymentContract `json:"deployment_contract"`
}

// Assess validates the context, scores it through the ensemble, and
// derives the canary policy and deployment contract. It is pure with
// respect to the weights snapshot taken at entry and performs no
// persistence.
func (e *Engine) Assess(ctx context.Context, dctx *models.DeploymentContext) (*AssessResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, ErrTimeout
	}
	if !e.Ready() {
		return nil, ErrNotReady
	}
	if err := ValidateContext(dctx); err != nil {
		return nil, err
	}

	ctx, span := telemetry.AssessSpan(ctx, dctx.DeploymentID)
	defer span.End()

	assessment := e.ensemble.Predict(dctx)
	policy := e.policies.GeneratePolicy(dctx, &assessment)
	plan := contract.BuildRollbackPlan(dctx, &assessment)
	deploymentContract := e.contracts.Draft(dctx, &assessment, &plan)

	if err := ctx.Err(); err != nil {
		return nil, ErrTimeout
	}

	span.SetAttribute("risk.score", assessment.RiskScore)
	span.SetAttribute("risk.level", string(assessment.RiskLevel))
	span.SetOK()

	metrics.AssessmentsTotal.WithLabelValues(string(assessment.RiskLevel)).Inc()
	e.publish(ctx, e.topics.DeploymentAssessed, kafka.EventDeploymentAssessed, dctx.DeploymentID, assessment)

	return &AssessResponse{
		RiskAssessment:     assessment,
		CanaryPolicy:       policy,
		DeploymentContract: deploymentContract,
	}, nil
}

// Recent returns up to limit outcomes, newest first.
func (e *Engine) Recent(ctx context.Context, limit int) ([]models.DeploymentOutcome, error) {
	if !e.Ready() {
		return nil, ErrNotReady
	}
	outcomes, err := e.history.Recent(ctx, limit)
	if err != nil {
		return nil, storageErr("recent", err)
	}
	return outcomes, nil
}

// Count returns the number of recorded outcomes.
func (e *Engine) Count(ctx context.Context) (int64, error) {
	if !e.Ready() {
		return 0, ErrNotReady
	}
	n, err := e.history.Count(ctx)
	if err != nil {
		return 0, storageErr("count", err)
	}
	return n, nil
}

// publish emits an event when a publisher is configured. Failures are
// logged and swallowed; eventing never blocks the request path result.
func (e *Engine) publish(ctx context.Context, topic, eventType, deploymentID string, data any) {
	if e.publisher == nil || topic == "" {
		return
	}
	event := kafka.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    "chaos-negotiator",
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
	if err := e.publisher.PublishEvent(ctx, topic, event); err != nil {
		e.log.Warn("event publish failed",
			"topic", topic,
			"deployment_id", deploymentID,
			"error", err,
		)
	}
}

// ValidateContext rejects malformed deployment contexts. Unknown risk
// tags are tolerated; unknown change types are not.
func ValidateContext(dctx *models.DeploymentContext) error {
	if dctx == nil {
		return validationErr("context is required")
	}
	if dctx.DeploymentID == "" {
		return validationErr("deployment_id is required")
	}
	if !validRate(dctx.CurrentErrorRatePercent) {
		return validationErr("current_error_rate_percent must be in [0,100], got %v", dctx.CurrentErrorRatePercent)
	}
	if !validNonNegative(dctx.CurrentP95LatencyMS) {
		return validationErr("current_p95_latency_ms must be non-negative, got %v", dctx.CurrentP95LatencyMS)
	}
	if !validNonNegative(dctx.CurrentQPS) {
		return validationErr("current_qps must be non-negative, got %v", dctx.CurrentQPS)
	}
	if dctx.TargetErrorRatePercent != 0 && !validRate(dctx.TargetErrorRatePercent) {
		return validationErr("target_error_rate_percent must be in [0,100], got %v", dctx.TargetErrorRatePercent)
	}
	if !validNonNegative(dctx.TargetP95LatencyMS) {
		return validationErr("target_p95_latency_ms must be non-negative, got %v", dctx.TargetP95LatencyMS)
	}
	if !validNonNegative(dctx.TargetP99LatencyMS) {
		return validationErr("target_p99_latency_ms must be non-negative, got %v", dctx.TargetP99LatencyMS)
	}

	for i, change := range dctx.Changes {
		if change.LinesChanged < 0 {
			return validationErr("changes[%d].lines_changed must be non-negative, got %d", i, change.LinesChanged)
		}
		switch change.ChangeType {
		case models.ChangeTypeAdd, models.ChangeTypeModify, models.ChangeTypeDelete, "":
		default:
			return validationErr("changes[%d].change_type %q is not one of add, modify, delete", i, change.ChangeType)
		}
	}

	return nil
}

func validRate(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0 && v <= 100
}

func validNonNegative(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}
