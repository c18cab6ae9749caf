package models

// Primary trend labels.
const (
	TrendBullish  = "bullish"
	TrendBearish  = "bearish"
	TrendSideways = "sideways"
)

// Volatility and volume regime buckets.
const (
	LevelLow    = "low"
	LevelMedium = "medium"
	LevelHigh   = "high"
)

// Market phase labels.
const (
	PhaseAccumulation = "accumulation"
	PhaseMarkup       = "markup"
	PhaseDistribution = "distribution"
	PhaseMarkdown     = "markdown"
)

// RegimeLabel is a categorical summary of trend, volatility, volume and phase
// conditions. Derived purely from an IndicatorSet; stateless.
type RegimeLabel struct {
	PrimaryTrend string  `json:"primary_trend"`
	Volatility   string  `json:"volatility"`
	Volume       string  `json:"volume"`
	Phase        string  `json:"phase"`
	Confidence   float64 `json:"confidence"` // 0..100
}
