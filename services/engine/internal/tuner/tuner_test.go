package tuner

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/varunvs7692/chaos-negotiator/pkg/logger"
	"github.com/varunvs7692/chaos-negotiator/pkg/models"
	"github.com/varunvs7692/chaos-negotiator/services/engine/internal/predictor"
	"github.com/varunvs7692/chaos-negotiator/services/engine/internal/store"
)

func newTestTuner(t *testing.T) (*Tuner, *predictor.Ensemble, *store.Memory) {
	t.Helper()
	history := store.NewMemory()
	linear := predictor.NewLinear(0, 0)
	ensemble := predictor.NewEnsemble(predictor.NewHeuristic(), linear, models.DefaultEnsembleWeights())
	tun := New(ensemble, linear, history, 0, logger.New("error", "text"))
	return tun, ensemble, history
}

func seed(t *testing.T, history *store.Memory, outcomes ...models.DeploymentOutcome) {
	t.Helper()
	for i := range outcomes {
		outcomes[i].Timestamp = time.Now().UTC()
		require.NoError(t, history.Save(context.Background(), &outcomes[i]))
	}
}

func TestTuneSkipsBelowMinimum(t *testing.T) {
	tun, ensemble, history := newTestTuner(t)
	before := ensemble.Weights()

	seed(t, history,
		models.DeploymentOutcome{DeploymentID: "a", HeuristicScore: 40, MLScore: 60, FinalScore: 48},
		models.DeploymentOutcome{DeploymentID: "b", HeuristicScore: 40, MLScore: 60, FinalScore: 48},
	)

	result, err := tun.Tune(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.SamplesUsed)
	assert.False(t, result.Changed)
	assert.Equal(t, before, ensemble.Weights())
}

func TestTuneMovesWeightTowardAccurateScorer(t *testing.T) {
	tun, ensemble, history := newTestTuner(t)

	// Every deployment rolled back with a hot error rate: the proxy is
	// 1.0, so the proxy target on the 0-100 scale is 100. The ML scorer
	// called these much riskier than the heuristic did.
	var outcomes []models.DeploymentOutcome
	for i := 0; i < 6; i++ {
		outcomes = append(outcomes, models.DeploymentOutcome{
			DeploymentID:           "burn",
			HeuristicScore:         20,
			MLScore:                90,
			FinalScore:             48,
			ActualErrorRatePercent: 3.0,
			RollbackTriggered:      true,
		})
	}
	seed(t, history, outcomes...)

	before := ensemble.Weights()
	result, err := tun.Tune(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 6, result.SamplesUsed)
	assert.True(t, result.Changed)

	after := ensemble.Weights()
	assert.Greater(t, after.ML, before.ML, "ML weight should grow toward the accurate scorer")
	assert.InDelta(t, 1.0, after.Heuristic+after.ML, 1e-9, "weights must stay normalized")
}

func TestTuneSmoothing(t *testing.T) {
	tun, ensemble, history := newTestTuner(t)

	var outcomes []models.DeploymentOutcome
	for i := 0; i < 10; i++ {
		outcomes = append(outcomes, models.DeploymentOutcome{
			DeploymentID:           "burn",
			HeuristicScore:         0,
			MLScore:                100,
			ActualErrorRatePercent: 3.0,
			RollbackTriggered:      true,
		})
	}
	seed(t, history, outcomes...)

	_, err := tun.Tune(context.Background())
	require.NoError(t, err)

	// Grid winner is (0, 1); smoothing blends 0.7 of it with 0.3 of the
	// previous (0.6, 0.4) pair.
	after := ensemble.Weights()
	assert.InDelta(t, 0.18, after.Heuristic, 1e-9)
	assert.InDelta(t, 0.82, after.ML, 1e-9)
}

func TestTuneUpdatesLinearFromFeatures(t *testing.T) {
	tun, _, history := newTestTuner(t)

	linear := tunLinear(tun)
	x := predictor.ExtractFeatures(&models.DeploymentContext{
		DeploymentID: "d",
		Changes: []models.ChangeDescriptor{
			{RiskTags: []models.RiskTag{models.RiskTagCaching}, LinesChanged: 45},
		},
	})

	var outcomes []models.DeploymentOutcome
	for i := 0; i < 6; i++ {
		outcomes = append(outcomes, models.DeploymentOutcome{
			DeploymentID:           "d",
			HeuristicScore:         40,
			MLScore:                40,
			FinalScore:             40,
			ActualErrorRatePercent: 3.0,
			RollbackTriggered:      true,
			Features:               x,
		})
	}
	seed(t, history, outcomes...)

	before := linear.Params()
	_, err := tun.Tune(context.Background())
	require.NoError(t, err)

	assert.NotSame(t, before, linear.Params(), "an update pass should publish new parameters")
}

func TestTuneSkipsOutcomesWithoutFeatures(t *testing.T) {
	tun, _, history := newTestTuner(t)
	linear := tunLinear(tun)

	var outcomes []models.DeploymentOutcome
	for i := 0; i < 6; i++ {
		outcomes = append(outcomes, models.DeploymentOutcome{
			DeploymentID:           "legacy",
			HeuristicScore:         40,
			MLScore:                40,
			ActualErrorRatePercent: 1.0,
		})
	}
	seed(t, history, outcomes...)

	before := linear.Params()
	_, err := tun.Tune(context.Background())
	require.NoError(t, err)

	assert.Same(t, before, linear.Params(), "rows without features must not train the model")
}

func TestBestWeightsTieBreaksTowardCurrent(t *testing.T) {
	// Perfect scorer agreement makes every weight pair equivalent; the
	// grid must then keep the pair closest to the current one.
	outcomes := make([]models.DeploymentOutcome, 5)
	for i := range outcomes {
		outcomes[i] = models.DeploymentOutcome{HeuristicScore: 0, MLScore: 0}
	}

	current := models.EnsembleWeights{Heuristic: 0.6, ML: 0.4}
	best := bestWeights(outcomes, current)
	assert.Equal(t, current, best)
}

func TestActualRiskProxyBounds(t *testing.T) {
	o := models.DeploymentOutcome{
		RollbackTriggered:          true,
		ActualErrorRatePercent:     100,
		ActualLatencyChangePercent: 1000,
	}
	assert.Equal(t, 1.0, o.ActualRiskProxy())

	quiet := models.DeploymentOutcome{}
	assert.Zero(t, quiet.ActualRiskProxy())

	partial := models.DeploymentOutcome{ActualErrorRatePercent: 1.0}
	assert.InDelta(t, 0.3, partial.ActualRiskProxy(), 1e-9)
}

// tunLinear reaches the tuner's linear scorer for assertions.
func tunLinear(t *Tuner) *predictor.Linear {
	return t.linear
}

func TestTuneResultReflectsWeights(t *testing.T) {
	tun, ensemble, history := newTestTuner(t)

	var outcomes []models.DeploymentOutcome
	for i := 0; i < 6; i++ {
		outcomes = append(outcomes, models.DeploymentOutcome{
			HeuristicScore:         30,
			MLScore:                70,
			ActualErrorRatePercent: 3.0,
			RollbackTriggered:      true,
		})
	}
	seed(t, history, outcomes...)

	result, err := tun.Tune(context.Background())
	require.NoError(t, err)

	after := ensemble.Weights()
	assert.Equal(t, after.Heuristic, result.HeuristicWeight)
	assert.Equal(t, after.ML, result.MLWeight)
	assert.False(t, math.IsNaN(result.HeuristicWeight))
}
