package models

// IndicatorSet holds the statistics computed over one candle history snapshot.
// Trend signals live in [-1,1], oscillators in [0,100]. Recomputed every cycle;
// never mutated in place.
type IndicatorSet struct {
	Symbol  string `json:"symbol"`
	Candles int    `json:"candles"` // history length the set was computed from

	// Trend
	EMAFast       float64 `json:"ema_fast"`
	EMASlow       float64 `json:"ema_slow"`
	EMASignal     float64 `json:"ema_signal"` // tanh-squashed fast/slow divergence
	SMAFast       float64 `json:"sma_fast"`
	SMASlow       float64 `json:"sma_slow"`
	TrendStrength float64 `json:"trend_strength"`

	// Momentum
	RSI          float64 `json:"rsi"`
	RSINorm      float64 `json:"rsi_norm"` // (RSI-50)/50
	Momentum     float64 `json:"momentum"`
	MomentumNorm float64 `json:"momentum_norm"`
	ROC          float64 `json:"roc"`

	// Mean reversion
	BBUpper    float64 `json:"bb_upper"`
	BBMiddle   float64 `json:"bb_middle"`
	BBLower    float64 `json:"bb_lower"`
	BBPosition float64 `json:"bb_position"` // 0 at lower band, 1 at upper band
	BBSqueeze  float64 `json:"bb_squeeze"`
	ZScore     float64 `json:"z_score"`

	// Volume
	VolumeSMA   float64 `json:"volume_sma"`
	VolumeRatio float64 `json:"volume_ratio"`
	VWAP        float64 `json:"vwap"`
	VWAPSignal  float64 `json:"vwap_signal"`

	// Volatility
	ATR           float64 `json:"atr"`
	ATRNorm       float64 `json:"atr_norm"`
	RealizedVol   float64 `json:"realized_vol"`   // annualized
	VolPct        float64 `json:"vol_pct"`        // plain returns stddev as a percentage, risk-gate scale
	VolPercentile float64 `json:"vol_percentile"` // rank against trailing history, 0..100

	// Structure
	Support        float64 `json:"support"`
	Resistance     float64 `json:"resistance"`
	StructureScore float64 `json:"structure_score"`
	Hurst          float64 `json:"hurst"`
	FractalDim     float64 `json:"fractal_dim"`

	LastClose float64 `json:"last_close"`
	Fallback  bool    `json:"fallback"` // served from a previous set or neutral default on short history
}

// NeutralIndicators returns the default set used when no history is available.
func NeutralIndicators(symbol string) IndicatorSet {
	return IndicatorSet{
		Symbol:      symbol,
		RSI:         50,
		BBPosition:  0.5,
		VolumeRatio: 1,
		Hurst:       0.5,
		FractalDim:  1.5,
		Fallback:    true,
	}
}
