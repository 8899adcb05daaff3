package predictor

import (
	"math"
	"sync/atomic"

	"github.com/varunvs7692/chaos-negotiator/pkg/models"
)

// Defaults for the online update rule.
const (
	DefaultLearningRate   = 0.05
	DefaultRegularization = 1e-3

	// MaxBatchSize bounds how many outcomes one update pass consumes.
	MaxBatchSize = 200
)

// LinearParams is an immutable parameter record. Updates publish a new
// record via pointer swap; fields are never mutated in place.
type LinearParams struct {
	Weights []float64
	Bias    float64
}

// clone returns a deep copy safe to mutate during an update step.
func (p *LinearParams) clone() *LinearParams {
	w := make([]float64, len(p.Weights))
	copy(w, p.Weights)
	return &LinearParams{Weights: w, Bias: p.Bias}
}

// coldStartParams returns hand-tuned weights that track the heuristic
// scorer within 15 points on representative inputs before any outcomes
// exist.
func coldStartParams() *LinearParams {
	w := make([]float64, FeatureCount)
	w[featNumChanges] = 2.0
	w[featTotalLines] = 1.5
	w[featErrorRate] = 1.0
	w[featP95Latency] = 0.8
	w[featQPS] = 0.5
	w[featTagCaching] = 1.5
	w[featTagDatabaseSchema] = 1.6
	w[featTagAPIContract] = 1.2
	w[featTagTraffic] = 1.4
	w[featTagPermissions] = 0.9
	w[featTagEncryption] = 0.9
	w[featTagLoadBalancing] = 1.0
	w[featTagStorage] = 0.9
	w[featDependencyCount] = 0.8
	w[featHasDBSchema] = 0.8
	w[featHasAPIContract] = 0.6
	w[featHasCaching] = 1.2
	return &LinearParams{Weights: w, Bias: -2.5}
}

// Linear is the online ML scorer: a logistic model over the normalized
// feature vector. Scoring is lock-free; parameters are read through an
// atomic snapshot.
type Linear struct {
	params atomic.Pointer[LinearParams]

	learningRate   float64
	regularization float64
}

// NewLinear returns a scorer initialized with cold-start parameters.
func NewLinear(learningRate, regularization float64) *Linear {
	if learningRate <= 0 {
		learningRate = DefaultLearningRate
	}
	if regularization < 0 {
		regularization = DefaultRegularization
	}
	l := &Linear{
		learningRate:   learningRate,
		regularization: regularization,
	}
	l.params.Store(coldStartParams())
	return l
}

// Score returns the model output rescaled once to the 0-100 risk
// scale. For a fixed parameter record and input the output is exact.
func (l *Linear) Score(ctx *models.DeploymentContext) float64 {
	return l.scoreFeatures(l.params.Load(), ExtractFeatures(ctx))
}

func (l *Linear) scoreFeatures(p *LinearParams, x []float64) float64 {
	z := p.Bias
	for i, w := range p.Weights {
		z += w * x[i]
	}
	return sigmoid(z) * 100.0
}

// TrainingExample pairs a feature vector with its actual risk proxy
// target in [0,1].
type TrainingExample struct {
	Features []float64
	Target   float64
}

// Update applies one stochastic-gradient pass over the batch,
// minimizing squared error between the model output (0-1 scale) and
// the target proxy. At most MaxBatchSize examples are consumed. The
// new parameter record is swapped in atomically.
func (l *Linear) Update(batch []TrainingExample) {
	if len(batch) == 0 {
		return
	}
	if len(batch) > MaxBatchSize {
		batch = batch[:MaxBatchSize]
	}

	p := l.params.Load().clone()
	eta, lambda := l.learningRate, l.regularization

	for _, ex := range batch {
		z := p.Bias
		for i, w := range p.Weights {
			z += w * ex.Features[i]
		}
		pred := sigmoid(z)

		// d(squared error)/dz through the logistic derivative.
		grad := (pred - ex.Target) * pred * (1 - pred)

		for i := range p.Weights {
			p.Weights[i] -= eta * (grad*ex.Features[i] + lambda*p.Weights[i])
		}
		p.Bias -= eta * grad
	}

	l.params.Store(p)
}

// Params returns the current parameter snapshot. The returned record
// must not be mutated.
func (l *Linear) Params() *LinearParams {
	return l.params.Load()
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}
