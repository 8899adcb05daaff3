package predictor

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/varunvs7692/chaos-negotiator/pkg/models"
)

func newTestEnsemble() *Ensemble {
	return NewEnsemble(NewHeuristic(), NewLinear(0, 0), models.DefaultEnsembleWeights())
}

func TestEnsembleWeights(t *testing.T) {
	t.Run("invalid initial pair falls back to defaults", func(t *testing.T) {
		e := NewEnsemble(NewHeuristic(), NewLinear(0, 0), models.EnsembleWeights{Heuristic: 0.9, ML: 0.9})
		assert.Equal(t, models.DefaultEnsembleWeights(), e.Weights())
	})

	t.Run("set rejects pairs not summing to one", func(t *testing.T) {
		e := newTestEnsemble()
		err := e.SetWeights(models.EnsembleWeights{Heuristic: 0.5, ML: 0.4})
		require.Error(t, err)
		assert.Equal(t, models.DefaultEnsembleWeights(), e.Weights())
	})

	t.Run("set accepts valid pair", func(t *testing.T) {
		e := newTestEnsemble()
		w := models.EnsembleWeights{Heuristic: 0.3, ML: 0.7}
		require.NoError(t, e.SetWeights(w))
		assert.Equal(t, w, e.Weights())
	})
}

func TestEnsemblePredict(t *testing.T) {
	t.Run("final score is the weighted blend", func(t *testing.T) {
		e := newTestEnsemble()
		ctx := cacheTTLContext()

		a := e.Predict(ctx)

		want := 0.6*a.HeuristicScore + 0.4*a.MLScore
		assert.InDelta(t, want, a.RiskScore, 1e-9)
	})

	t.Run("cache TTL scenario lands in the high band", func(t *testing.T) {
		e := newTestEnsemble()

		a := e.Predict(cacheTTLContext())

		assert.Equal(t, models.RiskLevelHigh, a.RiskLevel)
		assert.GreaterOrEqual(t, a.RiskScore, 50.0)
		assert.Less(t, a.RiskScore, 70.0)
		assert.Contains(t, a.IdentifiedFactors, models.RiskTagCaching)
	})

	t.Run("empty context lands in the low band", func(t *testing.T) {
		e := newTestEnsemble()

		a := e.Predict(&models.DeploymentContext{DeploymentID: "d"})

		assert.Equal(t, models.RiskLevelLow, a.RiskLevel)
		assert.Less(t, a.RiskScore, 30.0)
	})

	t.Run("cold start uses neutral calibration", func(t *testing.T) {
		e := newTestEnsemble()
		ctx := cacheTTLContext()

		heur := NewHeuristic().Score(ctx)
		ml := NewLinear(0, 0).Score(ctx)
		agreement := 100 - abs(heur.RiskScore-ml)
		want := clamp(0.6*agreement+0.2*heur.Confidence+0.2*coldCalibration, 0, 100)

		assert.InDelta(t, want, e.Predict(ctx).ConfidencePercent, 1e-9)
	})

	t.Run("reasoning mentions level and factors", func(t *testing.T) {
		e := newTestEnsemble()
		a := e.Predict(cacheTTLContext())

		assert.Contains(t, a.Reasoning, "HIGH")
		assert.Contains(t, a.Reasoning, "caching")
	})
}

func TestEnsembleCalibration(t *testing.T) {
	accurate := func(n int) []models.DeploymentOutcome {
		out := make([]models.DeploymentOutcome, n)
		for i := range out {
			// Proxy 0.3*(1.0/1.0) = 0.3; final score 30 matches exactly.
			out[i] = models.DeploymentOutcome{
				FinalScore:             30,
				ActualErrorRatePercent: 1.0,
			}
		}
		return out
	}

	t.Run("too few samples keeps cold value", func(t *testing.T) {
		e := newTestEnsemble()
		before := e.Predict(cacheTTLContext()).ConfidencePercent
		e.RefreshCalibration(accurate(3))
		assert.Equal(t, before, e.Predict(cacheTTLContext()).ConfidencePercent)
	})

	t.Run("accurate history raises confidence", func(t *testing.T) {
		e := newTestEnsemble()
		before := e.Predict(cacheTTLContext()).ConfidencePercent

		e.RefreshCalibration(accurate(10))
		after := e.Predict(cacheTTLContext()).ConfidencePercent

		// Perfect calibration adds 0.2*(100-50) over the cold value.
		assert.InDelta(t, before+10, after, 1e-9)
	})

	t.Run("inaccurate history lowers confidence", func(t *testing.T) {
		e := newTestEnsemble()
		bad := make([]models.DeploymentOutcome, 10)
		for i := range bad {
			// Predicted 95 but nothing went wrong: proxy 0.
			bad[i] = models.DeploymentOutcome{FinalScore: 95}
		}

		before := e.Predict(cacheTTLContext()).ConfidencePercent
		e.RefreshCalibration(bad)

		assert.Less(t, e.Predict(cacheTTLContext()).ConfidencePercent, before)
	})
}

func TestEnsembleConcurrentPredictAndTune(t *testing.T) {
	e := newTestEnsemble()
	ctx := cacheTTLContext()

	stop := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		pairs := []models.EnsembleWeights{
			{Heuristic: 0.6, ML: 0.4},
			{Heuristic: 0.3, ML: 0.7},
			{Heuristic: 1.0, ML: 0.0},
		}
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
				_ = e.SetWeights(pairs[i%len(pairs)])
			}
		}
	}()

	// Every prediction must be consistent with exactly one weight pair.
	for i := 0; i < 500; i++ {
		a := e.Predict(ctx)
		blends := []float64{
			0.6*a.HeuristicScore + 0.4*a.MLScore,
			0.3*a.HeuristicScore + 0.7*a.MLScore,
			1.0 * a.HeuristicScore,
		}
		matched := false
		for _, b := range blends {
			if abs(b-a.RiskScore) < 1e-9 {
				matched = true
				break
			}
		}
		require.True(t, matched, "prediction used a mixed weight pair: %v", a.RiskScore)
	}

	close(stop)
	wg.Wait()
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
