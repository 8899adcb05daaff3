package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/varunvs7692/chaos-negotiator/pkg/logger"
	"github.com/varunvs7692/chaos-negotiator/pkg/models"
	"github.com/varunvs7692/chaos-negotiator/services/engine/internal/predictor"
	"github.com/varunvs7692/chaos-negotiator/services/engine/internal/store"
)

func newTestEngine(t *testing.T) (*Engine, *store.Memory) {
	t.Helper()
	history := store.NewMemory()
	linear := predictor.NewLinear(0, 0)
	ensemble := predictor.NewEnsemble(predictor.NewHeuristic(), linear, models.DefaultEnsembleWeights())
	log := logger.New("error", "text")
	return New(ensemble, history, log), history
}

func cacheTTLContext() *models.DeploymentContext {
	return &models.DeploymentContext{
		DeploymentID: "deploy-1",
		ServiceName:  "checkout",
		Changes: []models.ChangeDescriptor{
			{
				FilePath:     "internal/cache/ttl.go",
				ChangeType:   models.ChangeTypeModify,
				LinesChanged: 45,
				RiskTags:     []models.RiskTag{models.RiskTagCaching},
				Description:  "Optimize cache TTL",
			},
		},
		CurrentErrorRatePercent: 0.05,
		CurrentP95LatencyMS:     180,
		RollbackCapability:      true,
	}
}

// seedAccurateOutcomes records outcomes whose final score matches the
// actual risk proxy exactly, pushing calibration to its maximum.
func seedAccurateOutcomes(t *testing.T, e *Engine, history *store.Memory, n int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		require.NoError(t, history.Save(ctx, &models.DeploymentOutcome{
			DeploymentID:           "seed",
			Timestamp:              time.Now().UTC(),
			FinalScore:             30,
			ActualErrorRatePercent: 1.0,
		}))
	}
	recent, err := history.Recent(ctx, 20)
	require.NoError(t, err)
	e.Ensemble().RefreshCalibration(recent)
}

func TestAssessCacheTTLScenario(t *testing.T) {
	e, _ := newTestEngine(t)

	resp, err := e.Assess(context.Background(), cacheTTLContext())
	require.NoError(t, err)

	a := resp.RiskAssessment
	assert.Equal(t, models.RiskLevelHigh, a.RiskLevel)
	assert.GreaterOrEqual(t, a.RiskScore, 50.0)
	assert.Less(t, a.RiskScore, 70.0)
	assert.Contains(t, a.IdentifiedFactors, models.RiskTagCaching)

	policy := resp.CanaryPolicy
	assert.Equal(t, 200.0, policy.LatencyThresholdMS)
	assert.Equal(t, 5.0, policy.Stages[0].TrafficPercent)
	assert.True(t, policy.RollbackOnViolation)

	c := resp.DeploymentContract
	assert.Equal(t, "deploy-1", c.DeploymentID)
	assert.NotEmpty(t, c.Guardrails)
	assert.NotEmpty(t, c.Validators)
}

func TestAssessEmptyChangeScenario(t *testing.T) {
	e, history := newTestEngine(t)

	// With accurate history behind it the ensemble reports high
	// confidence, which selects the shortest plan.
	seedAccurateOutcomes(t, e, history, 6)

	dctx := &models.DeploymentContext{
		DeploymentID:        "deploy-quiet",
		ServiceName:         "checkout",
		CurrentP95LatencyMS: 100,
		TargetP95LatencyMS:  100,
	}

	resp, err := e.Assess(context.Background(), dctx)
	require.NoError(t, err)

	a := resp.RiskAssessment
	assert.Equal(t, models.RiskLevelLow, a.RiskLevel)
	assert.Less(t, a.RiskScore, 30.0)

	policy := resp.CanaryPolicy
	require.NotEmpty(t, policy.Stages)
	assert.LessOrEqual(t, len(policy.Stages), 4)
	assert.GreaterOrEqual(t, policy.Stages[0].TrafficPercent, 10.0)
	assert.False(t, policy.RollbackOnViolation)
}

func TestAssessValidation(t *testing.T) {
	e, history := newTestEngine(t)
	ctx := context.Background()

	before, err := e.Count(ctx)
	require.NoError(t, err)

	tests := []struct {
		name string
		dctx *models.DeploymentContext
	}{
		{"nil context", nil},
		{"missing deployment id", &models.DeploymentContext{}},
		{
			"negative error rate",
			&models.DeploymentContext{
				DeploymentID:            "d",
				CurrentErrorRatePercent: -1,
			},
		},
		{
			"error rate above 100",
			&models.DeploymentContext{
				DeploymentID:            "d",
				CurrentErrorRatePercent: 101,
			},
		},
		{
			"negative latency",
			&models.DeploymentContext{
				DeploymentID:        "d",
				CurrentP95LatencyMS: -5,
			},
		},
		{
			"negative lines changed",
			&models.DeploymentContext{
				DeploymentID: "d",
				Changes:      []models.ChangeDescriptor{{LinesChanged: -1}},
			},
		},
		{
			"unknown change type",
			&models.DeploymentContext{
				DeploymentID: "d",
				Changes:      []models.ChangeDescriptor{{ChangeType: "rename"}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Assess(ctx, tt.dctx)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}

	after, err := e.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after, "validation failures must not write")
	_ = history
}

func TestAssessTolerantInputs(t *testing.T) {
	e, _ := newTestEngine(t)

	t.Run("unknown risk tags tolerated", func(t *testing.T) {
		dctx := &models.DeploymentContext{
			DeploymentID: "d",
			Changes: []models.ChangeDescriptor{
				{RiskTags: []models.RiskTag{"quantum_flux"}},
			},
		}
		_, err := e.Assess(context.Background(), dctx)
		assert.NoError(t, err)
	})

	t.Run("cancelled context maps to timeout", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := e.Assess(ctx, cacheTTLContext())
		assert.ErrorIs(t, err, ErrTimeout)
	})
}

func TestRecordOutcome(t *testing.T) {
	t.Run("record then read back", func(t *testing.T) {
		e, _ := newTestEngine(t)
		ctx := context.Background()

		dctx := cacheTTLContext()
		dctx.DeploymentID = "d1"

		outcome, err := e.Record(ctx, dctx, 0.08, 2.5, false)
		require.NoError(t, err)
		assert.Equal(t, "d1", outcome.DeploymentID)
		assert.GreaterOrEqual(t, outcome.FinalScore, 0.0)
		assert.LessOrEqual(t, outcome.FinalScore, 100.0)
		assert.Len(t, outcome.Features, predictor.FeatureCount)

		recent, err := e.Recent(ctx, 1)
		require.NoError(t, err)
		require.Len(t, recent, 1)
		assert.Equal(t, "d1", recent[0].DeploymentID)
	})

	t.Run("validates before writing", func(t *testing.T) {
		e, _ := newTestEngine(t)
		ctx := context.Background()

		_, err := e.Record(ctx, cacheTTLContext(), -0.5, 0, false)
		assert.ErrorIs(t, err, ErrValidation)

		n, err := e.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("storage failure surfaces as storage error", func(t *testing.T) {
		e, history := newTestEngine(t)
		history.FailSaves = true

		_, err := e.Record(context.Background(), cacheTTLContext(), 0.1, 1.0, false)
		assert.ErrorIs(t, err, ErrStorage)
	})

	t.Run("save completes despite caller cancellation", func(t *testing.T) {
		e, _ := newTestEngine(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		// Validation happens against the context state, but the write
		// itself must not be abandoned mid-flight.
		outcome, err := e.Record(ctx, cacheTTLContext(), 0.1, 1.0, false)
		require.NoError(t, err)
		assert.NotNil(t, outcome)

		n, err := e.Count(context.Background())
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)
	})
}

func TestAssessDuringWeightSwap(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	dctx := cacheTTLContext()

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		pairs := []models.EnsembleWeights{
			{Heuristic: 0.6, ML: 0.4},
			{Heuristic: 0.2, ML: 0.8},
		}
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
				_ = e.Ensemble().SetWeights(pairs[i%len(pairs)])
			}
		}
	}()

	for i := 0; i < 200; i++ {
		resp, err := e.Assess(ctx, dctx)
		require.NoError(t, err)

		a := resp.RiskAssessment
		with := func(wh, wm float64) float64 {
			return wh*a.HeuristicScore + wm*a.MLScore
		}
		consistent := absDiff(with(0.6, 0.4), a.RiskScore) < 1e-9 ||
			absDiff(with(0.2, 0.8), a.RiskScore) < 1e-9
		require.True(t, consistent, "assessment mixed two weight pairs")
	}

	close(stop)
	wg.Wait()
}

func absDiff(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}
