package predictor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/varunvs7692/chaos-negotiator/pkg/models"
)

func TestExtractFeatures(t *testing.T) {
	t.Run("fixed dimensionality", func(t *testing.T) {
		x := ExtractFeatures(&models.DeploymentContext{DeploymentID: "d"})
		require.Len(t, x, FeatureCount)
	})

	t.Run("normalization", func(t *testing.T) {
		ctx := &models.DeploymentContext{
			DeploymentID:            "d",
			Changes:                 []models.ChangeDescriptor{{LinesChanged: 500}},
			CurrentErrorRatePercent: 2.5,
			CurrentP95LatencyMS:     500,
			CurrentQPS:              2500,
			Dependencies:            []string{"a", "b", "c"},
		}
		x := ExtractFeatures(ctx)

		assert.InDelta(t, 1.0/50.0, x[featNumChanges], 1e-9)
		assert.InDelta(t, 0.1, x[featTotalLines], 1e-9)
		assert.InDelta(t, 0.25, x[featErrorRate], 1e-9)
		assert.InDelta(t, 0.25, x[featP95Latency], 1e-9)
		assert.InDelta(t, 0.25, x[featQPS], 1e-9)
		assert.InDelta(t, 0.3, x[featDependencyCount], 1e-9)
	})

	t.Run("all features bounded", func(t *testing.T) {
		ctx := &models.DeploymentContext{
			DeploymentID:            "d",
			CurrentErrorRatePercent: 100,
			CurrentP95LatencyMS:     1e9,
			CurrentQPS:              1e9,
			Dependencies:            make([]string, 100),
		}
		for i := 0; i < 200; i++ {
			ctx.Changes = append(ctx.Changes, models.ChangeDescriptor{LinesChanged: 100000})
		}
		for _, v := range ExtractFeatures(ctx) {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
		}
	})

	t.Run("tag indicators from tags and descriptions", func(t *testing.T) {
		tagged := ExtractFeatures(&models.DeploymentContext{
			DeploymentID: "d",
			Changes: []models.ChangeDescriptor{
				{RiskTags: []models.RiskTag{models.RiskTagDatabaseSchema}},
			},
		})
		assert.Equal(t, 1.0, tagged[featTagDatabaseSchema])
		assert.Equal(t, 1.0, tagged[featHasDBSchema])

		described := ExtractFeatures(&models.DeploymentContext{
			DeploymentID: "d",
			Changes: []models.ChangeDescriptor{
				{Description: "tighten api contract validation"},
			},
		})
		assert.Equal(t, 1.0, described[featTagAPIContract])
		assert.Equal(t, 1.0, described[featHasAPIContract])
		assert.Zero(t, described[featTagCaching])
	})
}
