package predictor

import (
	"fmt"
	"math"
	"strings"
	"sync/atomic"

	"github.com/varunvs7692/chaos-negotiator/pkg/models"
)

// Calibration window over recorded outcomes.
const (
	calibrationWindow     = 20
	calibrationMinSamples = 5

	// coldCalibration is used until enough outcomes accumulate.
	coldCalibration = 50.0
)

// Ensemble combines the heuristic and linear scorers under a weight
// pair. Weights and calibration are immutable snapshots swapped
// atomically so the prediction path never blocks and never performs
// I/O.
type Ensemble struct {
	heuristic *Heuristic
	linear    *Linear

	weights     atomic.Pointer[models.EnsembleWeights]
	calibration atomic.Pointer[float64]
}

// NewEnsemble builds the ensemble around the two scorers. An invalid
// initial weight pair falls back to the defaults.
func NewEnsemble(h *Heuristic, l *Linear, initial models.EnsembleWeights) *Ensemble {
	e := &Ensemble{heuristic: h, linear: l}
	if !validWeights(initial) {
		initial = models.DefaultEnsembleWeights()
	}
	e.weights.Store(&initial)
	cold := coldCalibration
	e.calibration.Store(&cold)
	return e
}

func validWeights(w models.EnsembleWeights) bool {
	return w.Heuristic >= 0 && w.Heuristic <= 1 &&
		w.ML >= 0 && w.ML <= 1 &&
		math.Abs(w.Heuristic+w.ML-1.0) <= 1e-9 &&
		!math.IsNaN(w.Heuristic) && !math.IsNaN(w.ML)
}

// Weights returns the current weight pair.
func (e *Ensemble) Weights() models.EnsembleWeights {
	return *e.weights.Load()
}

// SetWeights publishes a new weight pair. Invalid pairs are rejected.
func (e *Ensemble) SetWeights(w models.EnsembleWeights) error {
	if !validWeights(w) {
		return fmt.Errorf("ensemble weights must be in [0,1] and sum to 1, got (%v, %v)", w.Heuristic, w.ML)
	}
	e.weights.Store(&w)
	return nil
}

// RefreshCalibration recomputes the historical calibration from the
// most recent outcomes, newest first. The recorder and tuner call this
// after the store changes; predictions read the cached value.
func (e *Ensemble) RefreshCalibration(recent []models.DeploymentOutcome) {
	if len(recent) > calibrationWindow {
		recent = recent[:calibrationWindow]
	}
	cal := coldCalibration
	if len(recent) >= calibrationMinSamples {
		var sum float64
		for i := range recent {
			sum += math.Abs(recent[i].FinalScore - recent[i].ActualRiskProxy()*100)
		}
		mae := sum / float64(len(recent))
		cal = 100 - math.Min(100, mae)
	}
	e.calibration.Store(&cal)
}

// Predict scores a deployment context. Weights are snapshotted once at
// entry so a concurrent tune never produces a mixed pair within a
// single prediction.
func (e *Ensemble) Predict(ctx *models.DeploymentContext) models.RiskAssessment {
	w := *e.weights.Load()
	cal := *e.calibration.Load()

	heur := e.heuristic.Score(ctx)
	ml := e.linear.Score(ctx)

	final := w.Heuristic*heur.RiskScore + w.ML*ml
	agreement := 100 - math.Min(100, math.Abs(heur.RiskScore-ml))
	confidence := clamp(0.6*agreement+0.2*heur.Confidence+0.2*cal, 0, 100)

	assessment := models.RiskAssessment{
		RiskScore:                          final,
		RiskLevel:                          models.RiskLevelForScore(final),
		ConfidencePercent:                  confidence,
		IdentifiedFactors:                  heur.IdentifiedFactors,
		PredictedErrorRateIncreasePercent:  heur.PredictedErrorRateIncreasePercent,
		PredictedP95LatencyIncreasePercent: heur.PredictedP95LatencyIncreasePercent,
		HeuristicScore:                     heur.RiskScore,
		MLScore:                            ml,
	}
	assessment.Reasoning = reasoning(&assessment)
	return assessment
}

func reasoning(a *models.RiskAssessment) string {
	lines := []string{
		fmt.Sprintf("Risk Level: %s (Score: %.1f/100)", strings.ToUpper(string(a.RiskLevel)), a.RiskScore),
	}
	if len(a.IdentifiedFactors) > 0 {
		tags := make([]string, len(a.IdentifiedFactors))
		for i, f := range a.IdentifiedFactors {
			tags[i] = string(f)
		}
		lines = append(lines, "Risk Factors: "+strings.Join(tags, ", "))
	}
	if a.PredictedP95LatencyIncreasePercent > 0 {
		lines = append(lines, fmt.Sprintf("Predicted P95 Latency Increase: +%.1f%%", a.PredictedP95LatencyIncreasePercent))
	}
	if a.PredictedErrorRateIncreasePercent > 0 {
		lines = append(lines, fmt.Sprintf("Predicted Error Rate Increase: +%.1f%%", a.PredictedErrorRateIncreasePercent))
	}
	lines = append(lines, fmt.Sprintf("Analysis Confidence: %.0f%%", a.ConfidencePercent))
	return strings.Join(lines, "\n")
}
