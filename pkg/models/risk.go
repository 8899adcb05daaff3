package models

// RiskLevel represents the risk severity band.
type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "low"
	RiskLevelModerate RiskLevel = "moderate"
	RiskLevelHigh     RiskLevel = "high"
	RiskLevelCritical RiskLevel = "critical"
)

// RiskLevelForScore converts a 0-100 risk score into a band.
func RiskLevelForScore(score float64) RiskLevel {
	switch {
	case score >= 70:
		return RiskLevelCritical
	case score >= 50:
		return RiskLevelHigh
	case score >= 30:
		return RiskLevelModerate
	default:
		return RiskLevelLow
	}
}

// RiskAssessment is the combined output of the ensemble predictor.
type RiskAssessment struct {
	RiskScore         float64   `json:"risk_score"`
	RiskLevel         RiskLevel `json:"risk_level"`
	ConfidencePercent float64   `json:"confidence_percent"`
	IdentifiedFactors []RiskTag `json:"identified_factors"`

	PredictedErrorRateIncreasePercent  float64 `json:"predicted_error_rate_increase_percent"`
	PredictedP95LatencyIncreasePercent float64 `json:"predicted_p95_latency_increase_percent"`

	HeuristicScore float64 `json:"heuristic_score"`
	MLScore        float64 `json:"ml_score"`

	Reasoning string `json:"reasoning,omitempty"`
}

// HasFactor reports whether the assessment identified the given factor.
func (a *RiskAssessment) HasFactor(tag RiskTag) bool {
	for _, f := range a.IdentifiedFactors {
		if f == tag {
			return true
		}
	}
	return false
}

// EnsembleWeights is the coefficient pair combining the heuristic and
// ML scores. The pair always sums to 1.
type EnsembleWeights struct {
	Heuristic float64 `json:"heuristic_weight"`
	ML        float64 `json:"ml_weight"`
}

// DefaultEnsembleWeights returns the cold-start weight pair.
func DefaultEnsembleWeights() EnsembleWeights {
	return EnsembleWeights{Heuristic: 0.6, ML: 0.4}
}
