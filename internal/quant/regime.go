package quant

import (
	"math"

	"FxPulse/internal/domain/models"
)

// Consensus and phase thresholds. Hand-tuned calibration constants carried
// over as-is; treat as overridable calibration, not derived values.
const (
	trendConsensusBand  = 0.3
	volPercentileLow    = 30
	volPercentileHigh   = 70
	volumeRatioLow      = 0.8
	volumeRatioHigh     = 1.2
	accumulationRatio   = 0.9
	accumulationEMABand = 0.2
)

// ClassifyRegime derives the categorical market regime from an indicator set.
// Pure function of its input.
func ClassifyRegime(ind models.IndicatorSet) models.RegimeLabel {
	smaSignal := -1.0
	if ind.SMAFast > ind.SMASlow {
		smaSignal = 1.0
	}
	consensus := (ind.EMASignal + ind.VWAPSignal + smaSignal) / 3

	trend := models.TrendSideways
	switch {
	case consensus > trendConsensusBand:
		trend = models.TrendBullish
	case consensus < -trendConsensusBand:
		trend = models.TrendBearish
	}
	trendStrength := math.Min(math.Abs(consensus)*100, 100)

	volatility := models.LevelHigh
	switch {
	case ind.VolPercentile < volPercentileLow:
		volatility = models.LevelLow
	case ind.VolPercentile < volPercentileHigh:
		volatility = models.LevelMedium
	}

	volume := models.LevelHigh
	switch {
	case ind.VolumeRatio < volumeRatioLow:
		volume = models.LevelLow
	case ind.VolumeRatio < volumeRatioHigh:
		volume = models.LevelMedium
	}

	phase := models.PhaseDistribution
	switch {
	case ind.LastClose > ind.EMAFast && ind.EMAFast > ind.EMASlow && ind.VolumeRatio > 1.0:
		phase = models.PhaseMarkup
	case ind.LastClose < ind.EMAFast && ind.EMAFast < ind.EMASlow && ind.VolumeRatio > 1.0:
		phase = models.PhaseMarkdown
	case ind.VolumeRatio < accumulationRatio && math.Abs(ind.EMASignal) < accumulationEMABand:
		phase = models.PhaseAccumulation
	}

	return models.RegimeLabel{
		PrimaryTrend: trend,
		Volatility:   volatility,
		Volume:       volume,
		Phase:        phase,
		Confidence:   Clamp(trendStrength+(ind.VolumeRatio-1)*20, 0, 100),
	}
}
