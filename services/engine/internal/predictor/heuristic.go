// Package predictor implements the hybrid deployment risk predictors:
// a rule-based heuristic scorer, an online linear scorer, and the
// ensemble that combines them.
package predictor

import (
	"strings"

	"github.com/varunvs7692/chaos-negotiator/pkg/models"
)

// riskRule is one compiled entry of the static rule table. A rule
// matches a change when any keyword appears in its description or when
// the change carries the rule's tag.
type riskRule struct {
	tag             models.RiskTag
	keywords        []string
	latencyIncrease float64
	errorIncrease   float64
}

// riskRules is built once at process start and never recompiled.
var riskRules = []riskRule{
	{
		tag:             models.RiskTagCaching,
		keywords:        []string{"cache", "ttl", "redis", "memcached"},
		latencyIncrease: 5.0,
	},
	{
		tag:             models.RiskTagDatabaseSchema,
		keywords:        []string{"schema", "migration", "database", "sql"},
		latencyIncrease: 15.0,
		errorIncrease:   2.0,
	},
	{
		tag:             models.RiskTagAPIContract,
		keywords:        []string{"api", "contract", "endpoint", "request", "response"},
		latencyIncrease: 8.0,
		errorIncrease:   1.5,
	},
	{
		tag:             models.RiskTagTraffic,
		keywords:        []string{"load", "traffic", "rampup", "connection"},
		latencyIncrease: 20.0,
	},
	{
		tag:             models.RiskTagPermissions,
		keywords:        []string{"permission", "auth", "role", "acl"},
		errorIncrease:   1.5,
	},
	{
		tag:             models.RiskTagEncryption,
		keywords:        []string{"encrypt", "tls", "certificate", "cipher"},
		latencyIncrease: 10.0,
		errorIncrease:   1.0,
	},
	{
		tag:             models.RiskTagLoadBalancing,
		keywords:        []string{"balancer", "upstream", "routing", "failover"},
		latencyIncrease: 12.0,
		errorIncrease:   0.5,
	},
	{
		tag:             models.RiskTagStorage,
		keywords:        []string{"disk", "volume", "bucket", "storage"},
		latencyIncrease: 8.0,
		errorIncrease:   1.0,
	},
}

// HeuristicResult is the output of one heuristic scoring pass.
type HeuristicResult struct {
	RiskScore                          float64
	IdentifiedFactors                  []models.RiskTag
	PredictedErrorRateIncreasePercent  float64
	PredictedP95LatencyIncreasePercent float64
	Confidence                         float64
}

// Heuristic is the deterministic rule-based scorer. It is a pure
// function of the deployment context: no clock, no randomness, no I/O.
type Heuristic struct{}

// NewHeuristic returns the rule-based scorer.
func NewHeuristic() *Heuristic {
	return &Heuristic{}
}

// Score evaluates a deployment context against the rule table.
func (h *Heuristic) Score(ctx *models.DeploymentContext) HeuristicResult {
	var (
		matches      int
		latencyTotal float64
		errorTotal   float64
		factorSeen   = map[models.RiskTag]bool{}
		factors      []models.RiskTag
	)

	addFactor := func(tag models.RiskTag) {
		if !factorSeen[tag] {
			factorSeen[tag] = true
			factors = append(factors, tag)
		}
	}

	for _, change := range ctx.Changes {
		desc := strings.ToLower(change.Description)
		for _, rule := range riskRules {
			// Each keyword hit counts as a separate pattern match,
			// as does an explicit risk tag.
			for _, kw := range rule.keywords {
				if strings.Contains(desc, kw) {
					matches++
					latencyTotal += rule.latencyIncrease
					errorTotal += rule.errorIncrease
					addFactor(rule.tag)
				}
			}
			for _, tag := range change.RiskTags {
				if tag == rule.tag {
					matches++
					latencyTotal += rule.latencyIncrease
					errorTotal += rule.errorIncrease
					addFactor(rule.tag)
				}
			}
		}
	}

	score := float64(len(ctx.Changes))*2 +
		float64(matches)*15 +
		sizeFactor(ctx.TotalLinesChanged())

	if len(ctx.Dependencies) >= 2 {
		score += 10
	}

	return HeuristicResult{
		RiskScore:                          clamp(score, 0, 100),
		IdentifiedFactors:                  factors,
		PredictedErrorRateIncreasePercent:  clamp(errorTotal, 0, 100),
		PredictedP95LatencyIncreasePercent: clamp(latencyTotal, 0, 100),
		Confidence:                         clamp(50+10*float64(matches), 0, 95),
	}
}

// identifiedFactors returns the matched factor set without the score
// bookkeeping. Used by the feature extractor so both scorers see the
// same tag signal.
func identifiedFactors(ctx *models.DeploymentContext) []models.RiskTag {
	return NewHeuristic().Score(ctx).IdentifiedFactors
}

// sizeFactor is the piecewise size contribution by total lines changed.
func sizeFactor(lines int) float64 {
	switch {
	case lines <= 50:
		return 0
	case lines <= 500:
		return 10
	default:
		return 25
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
