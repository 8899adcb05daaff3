// Package tuner adjusts the ensemble weights from observed prediction
// error over recent outcomes.
package tuner

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/varunvs7692/chaos-negotiator/pkg/logger"
	"github.com/varunvs7692/chaos-negotiator/pkg/models"
	"github.com/varunvs7692/chaos-negotiator/pkg/telemetry"
	"github.com/varunvs7692/chaos-negotiator/services/engine/internal/metrics"
	"github.com/varunvs7692/chaos-negotiator/services/engine/internal/predictor"
	"github.com/varunvs7692/chaos-negotiator/services/engine/internal/store"
)

const (
	// DefaultSampleWindow is K, the tune batch size.
	DefaultSampleWindow = 100

	// minSamples below which weights stay unchanged.
	minSamples = 5

	// smoothing factor toward the grid-search winner.
	smoothing = 0.7
)

// Result reports one tune pass.
type Result struct {
	HeuristicWeight float64 `json:"heuristic_weight"`
	MLWeight        float64 `json:"ml_weight"`
	SamplesUsed     int     `json:"samples_used"`
	Changed         bool    `json:"changed"`
}

// Tuner performs the periodic weight adjustment. At most one tune is
// in flight at a time; ensemble readers are never blocked beyond the
// atomic swap.
type Tuner struct {
	mu sync.Mutex

	ensemble *predictor.Ensemble
	linear   *predictor.Linear
	history  store.Store
	log      *logger.Logger

	sampleWindow int
}

// New builds a tuner over the ensemble and its outcome history.
func New(ensemble *predictor.Ensemble, linear *predictor.Linear, history store.Store, sampleWindow int, log *logger.Logger) *Tuner {
	if sampleWindow <= 0 {
		sampleWindow = DefaultSampleWindow
	}
	return &Tuner{
		ensemble:     ensemble,
		linear:       linear,
		history:      history,
		log:          log.WithComponent("tuner"),
		sampleWindow: sampleWindow,
	}
}

// Tune grid-searches the weight pair minimizing mean squared error of
// the combined score against the actual risk proxy, smooths toward the
// winner, swaps the pair atomically, and runs one SGD pass on the
// linear scorer over the same window.
func (t *Tuner) Tune(ctx context.Context) (Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ctx, span := telemetry.TuneSpan(ctx)
	defer span.End()

	current := t.ensemble.Weights()

	outcomes, err := t.history.Recent(ctx, t.sampleWindow)
	if err != nil {
		metrics.TunePassesTotal.WithLabelValues("error").Inc()
		return Result{}, fmt.Errorf("failed to read outcomes for tuning: %w", err)
	}

	if len(outcomes) < minSamples {
		metrics.TunePassesTotal.WithLabelValues("skipped").Inc()
		return Result{
			HeuristicWeight: current.Heuristic,
			MLWeight:        current.ML,
			SamplesUsed:     len(outcomes),
		}, nil
	}

	chosen := bestWeights(outcomes, current)

	// Exponential smoothing toward the winner, then renormalize.
	newH := smoothing*chosen.Heuristic + (1-smoothing)*current.Heuristic
	newM := smoothing*chosen.ML + (1-smoothing)*current.ML
	sum := newH + newM
	newWeights := models.EnsembleWeights{Heuristic: newH / sum, ML: newM / sum}

	if err := t.ensemble.SetWeights(newWeights); err != nil {
		metrics.TunePassesTotal.WithLabelValues("error").Inc()
		return Result{}, err
	}

	t.updateLinear(outcomes)
	t.ensemble.RefreshCalibration(outcomes)

	span.SetAttribute("tune.samples", len(outcomes))
	span.SetAttribute("tune.heuristic_weight", newWeights.Heuristic)
	span.SetOK()

	metrics.TunePassesTotal.WithLabelValues("tuned").Inc()
	metrics.SetEnsembleWeights(newWeights.Heuristic, newWeights.ML)

	t.log.Info("ensemble weights tuned",
		"heuristic_weight", newWeights.Heuristic,
		"ml_weight", newWeights.ML,
		"samples", len(outcomes),
	)

	return Result{
		HeuristicWeight: newWeights.Heuristic,
		MLWeight:        newWeights.ML,
		SamplesUsed:     len(outcomes),
		Changed:         newWeights != current,
	}, nil
}

// bestWeights grid-searches w_h in {0.0, 0.1, ..., 1.0}, minimizing
// MSE against proxy*100. Ties prefer the pair closest to current (L1).
func bestWeights(outcomes []models.DeploymentOutcome, current models.EnsembleWeights) models.EnsembleWeights {
	best := current
	bestMSE := math.Inf(1)
	bestDist := math.Inf(1)

	for step := 0; step <= 10; step++ {
		wh := float64(step) / 10
		wm := 1 - wh

		var sse float64
		for i := range outcomes {
			o := &outcomes[i]
			combined := wh*o.HeuristicScore + wm*o.MLScore
			diff := combined - o.ActualRiskProxy()*100
			sse += diff * diff
		}
		mse := sse / float64(len(outcomes))
		dist := math.Abs(wh-current.Heuristic) + math.Abs(wm-current.ML)

		if mse < bestMSE-1e-12 || (math.Abs(mse-bestMSE) <= 1e-12 && dist < bestDist) {
			best = models.EnsembleWeights{Heuristic: wh, ML: wm}
			bestMSE = mse
			bestDist = dist
		}
	}

	return best
}

// updateLinear replays the outcomes that carry a feature vector as one
// SGD batch.
func (t *Tuner) updateLinear(outcomes []models.DeploymentOutcome) {
	var batch []predictor.TrainingExample
	for i := range outcomes {
		o := &outcomes[i]
		if len(o.Features) != predictor.FeatureCount {
			continue
		}
		batch = append(batch, predictor.TrainingExample{
			Features: o.Features,
			Target:   o.ActualRiskProxy(),
		})
	}
	if len(batch) == 0 {
		return
	}
	t.linear.Update(batch)
}
