package models

// Score direction labels.
const (
	ScoreBullish = "bullish"
	ScoreBearish = "bearish"
	ScoreNeutral = "neutral"
)

// ScoreComponents are the six sub-scores, each clamped to [0,100] before weighting.
type ScoreComponents struct {
	Trend         float64 `json:"trend"`
	Momentum      float64 `json:"momentum"`
	MeanReversion float64 `json:"mean_reversion"`
	Volume        float64 `json:"volume"`
	Volatility    float64 `json:"volatility"`
	Structure     float64 `json:"structure"`
}

// ProbabilityScore combines the indicator set into one bounded score with a
// direction and a confidence. Derived fresh each cycle; stateless.
type ProbabilityScore struct {
	Total            float64         `json:"total"` // 0..100
	Direction        string          `json:"direction"`
	Confidence       float64         `json:"confidence"` // 0..100
	Components       ScoreComponents `json:"components"`
	ContinuationProb float64         `json:"continuation_prob"`
	ReversalProb     float64         `json:"reversal_prob"`
}
