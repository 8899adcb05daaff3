package predictor

import "github.com/varunvs7692/chaos-negotiator/pkg/models"

// Feature vector layout, fixed order. All features are normalized to
// [0,1] before scoring.
const (
	featNumChanges = iota
	featTotalLines
	featErrorRate
	featP95Latency
	featQPS
	featTagCaching
	featTagDatabaseSchema
	featTagAPIContract
	featTagTraffic
	featTagPermissions
	featTagEncryption
	featTagLoadBalancing
	featTagStorage
	featDependencyCount
	featHasDBSchema
	featHasAPIContract
	featHasCaching

	// FeatureCount is the fixed dimensionality of the feature vector.
	FeatureCount
)

var tagFeatureIndex = map[models.RiskTag]int{
	models.RiskTagCaching:        featTagCaching,
	models.RiskTagDatabaseSchema: featTagDatabaseSchema,
	models.RiskTagAPIContract:    featTagAPIContract,
	models.RiskTagTraffic:        featTagTraffic,
	models.RiskTagPermissions:    featTagPermissions,
	models.RiskTagEncryption:     featTagEncryption,
	models.RiskTagLoadBalancing:  featTagLoadBalancing,
	models.RiskTagStorage:        featTagStorage,
}

// ExtractFeatures maps a deployment context onto the fixed feature
// vector. Tag indicators consider both explicit risk tags and rule
// matches from the description so the two scorers see the same signal.
func ExtractFeatures(ctx *models.DeploymentContext) []float64 {
	x := make([]float64, FeatureCount)

	x[featNumChanges] = clamp(float64(len(ctx.Changes))/50.0, 0, 1)
	x[featTotalLines] = clamp(float64(ctx.TotalLinesChanged())/5000.0, 0, 1)
	x[featErrorRate] = clamp(ctx.CurrentErrorRatePercent/10.0, 0, 1)
	x[featP95Latency] = clamp(ctx.CurrentP95LatencyMS/2000.0, 0, 1)
	x[featQPS] = clamp(ctx.CurrentQPS/10000.0, 0, 1)
	x[featDependencyCount] = clamp(float64(len(ctx.Dependencies))/10.0, 0, 1)

	for _, tag := range identifiedFactors(ctx) {
		if idx, ok := tagFeatureIndex[tag]; ok {
			x[idx] = 1
		}
	}

	if x[featTagDatabaseSchema] == 1 {
		x[featHasDBSchema] = 1
	}
	if x[featTagAPIContract] == 1 {
		x[featHasAPIContract] = 1
	}
	if x[featTagCaching] == 1 {
		x[featHasCaching] = 1
	}

	return x
}
