package quant

import (
	"math"
	"sync"

	"FxPulse/internal/domain/models"
)

// Windows the engine pins regardless of configuration.
const (
	smaFastWindow    = 20
	smaSlowWindow    = 50
	zscoreWindow     = 20
	percentileWindow = 50
	structureWindow  = 10
	hurstWindow      = 50
	hurstMaxLag      = 20

	annualizeFactor = 252
)

// Config holds the tunable indicator periods.
type Config struct {
	EMAFast          int
	EMASlow          int
	RSIPeriod        int
	MomentumPeriod   int
	BBPeriod         int
	BBStdDev         float64
	VolumePeriod     int
	ATRPeriod        int
	VolatilityPeriod int
	MinCandles       int
}

// DefaultConfig returns the standard periods.
func DefaultConfig() Config {
	return Config{
		EMAFast:          12,
		EMASlow:          26,
		RSIPeriod:        14,
		MomentumPeriod:   10,
		BBPeriod:         20,
		BBStdDev:         2.0,
		VolumePeriod:     20,
		ATRPeriod:        14,
		VolatilityPeriod: 20,
		MinCandles:       20,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.EMAFast < 1 {
		c.EMAFast = def.EMAFast
	}
	if c.EMASlow < 1 {
		c.EMASlow = def.EMASlow
	}
	if c.RSIPeriod < 1 {
		c.RSIPeriod = def.RSIPeriod
	}
	if c.MomentumPeriod < 1 {
		c.MomentumPeriod = def.MomentumPeriod
	}
	if c.BBPeriod < 2 {
		c.BBPeriod = def.BBPeriod
	}
	if c.BBStdDev <= 0 {
		c.BBStdDev = def.BBStdDev
	}
	if c.VolumePeriod < 1 {
		c.VolumePeriod = def.VolumePeriod
	}
	if c.ATRPeriod < 1 {
		c.ATRPeriod = def.ATRPeriod
	}
	if c.VolatilityPeriod < 2 {
		c.VolatilityPeriod = def.VolatilityPeriod
	}
	if c.MinCandles < 1 {
		c.MinCandles = def.MinCandles
	}
	return c
}

// IndicatorEngine computes an IndicatorSet over a candle snapshot. Below the
// minimum history it serves the previous good set for the symbol, or a
// neutral default, marked as a fallback. The pipeline never fails on bad
// numbers; every division guards its denominator.
type IndicatorEngine struct {
	cfg Config

	mu   sync.Mutex
	last map[string]models.IndicatorSet
}

// NewIndicatorEngine creates an engine with the given periods, filling
// unset fields from defaults.
func NewIndicatorEngine(cfg Config) *IndicatorEngine {
	return &IndicatorEngine{
		cfg:  cfg.withDefaults(),
		last: make(map[string]models.IndicatorSet),
	}
}

// Compute derives the full indicator set for one candle snapshot.
func (e *IndicatorEngine) Compute(symbol string, candles []models.Candle) models.IndicatorSet {
	if len(candles) < e.cfg.MinCandles {
		return e.fallback(symbol, len(candles))
	}

	n := len(candles)
	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	volumes := make([]float64, n)
	for i, c := range candles {
		closes[i] = c.Close
		highs[i] = c.High
		lows[i] = c.Low
		volumes[i] = c.Volume
	}
	lastClose := closes[n-1]

	ind := models.IndicatorSet{Symbol: symbol, Candles: n, LastClose: lastClose}

	// Trend
	ind.EMAFast = EMA(closes, e.cfg.EMAFast)
	ind.EMASlow = EMA(closes, e.cfg.EMASlow)
	if lastClose != 0 {
		ind.EMASignal = math.Tanh((ind.EMAFast - ind.EMASlow) / lastClose * 1000)
	}
	ind.SMAFast = SMA(closes, smaFastWindow)
	ind.SMASlow = SMA(closes, smaSlowWindow)
	ind.TrendStrength = math.Abs(ind.EMASignal) * 100

	// Momentum
	ind.RSI = RSI(closes, e.cfg.RSIPeriod)
	ind.RSINorm = (ind.RSI - 50) / 50
	ind.Momentum = PctChange(closes, e.cfg.MomentumPeriod)
	ind.MomentumNorm = math.Tanh(ind.Momentum * 100)
	ind.ROC = ind.Momentum * 100

	// Mean reversion
	bbWindow := Tail(closes, e.cfg.BBPeriod)
	ind.BBMiddle = Mean(bbWindow)
	sd := Std(bbWindow)
	ind.BBUpper = ind.BBMiddle + sd*e.cfg.BBStdDev
	ind.BBLower = ind.BBMiddle - sd*e.cfg.BBStdDev
	if width := ind.BBUpper - ind.BBLower; width != 0 {
		ind.BBPosition = (lastClose - ind.BBLower) / width
	} else {
		ind.BBPosition = 0.5
	}
	if ind.BBMiddle != 0 {
		ind.BBSqueeze = (ind.BBUpper - ind.BBLower) / ind.BBMiddle
	}
	ind.ZScore = ZScore(closes, zscoreWindow)

	// Volume
	ind.VolumeSMA = SMA(volumes, e.cfg.VolumePeriod)
	if ind.VolumeSMA != 0 {
		ind.VolumeRatio = volumes[n-1] / ind.VolumeSMA
	} else {
		ind.VolumeRatio = 1.0
	}
	ind.VWAP = VWAP(highs, lows, closes, volumes)
	if lastClose != 0 {
		ind.VWAPSignal = math.Tanh((lastClose - ind.VWAP) / lastClose * 1000)
	}

	// Volatility
	ind.ATR = SMA(TrueRanges(highs, lows, closes), e.cfg.ATRPeriod)
	if lastClose != 0 {
		ind.ATRNorm = ind.ATR / lastClose
	}
	returns := Returns(closes)
	volStd := Std(Tail(returns, e.cfg.VolatilityPeriod))
	ind.RealizedVol = volStd * math.Sqrt(annualizeFactor)
	ind.VolPct = volStd * 100
	ind.VolPercentile = e.volatilityPercentile(returns)

	// Structure
	ind.Support, ind.Resistance, ind.StructureScore = detectStructure(highs, lows, lastClose)
	ind.Hurst = Hurst(Tail(closes, hurstWindow), hurstMaxLag)
	ind.FractalDim = 2 - ind.Hurst

	e.mu.Lock()
	e.last[symbol] = ind
	e.mu.Unlock()
	return ind
}

// fallback serves the previous good set, or the neutral default, flagged so
// consumers know the history was too short this cycle.
func (e *IndicatorEngine) fallback(symbol string, have int) models.IndicatorSet {
	e.mu.Lock()
	prev, ok := e.last[symbol]
	e.mu.Unlock()
	if !ok {
		prev = models.NeutralIndicators(symbol)
	}
	prev.Candles = have
	prev.Fallback = true
	return prev
}

// volatilityPercentile ranks the latest realized volatility against its own
// trailing history of full-window estimates.
func (e *IndicatorEngine) volatilityPercentile(returns []float64) float64 {
	w := e.cfg.VolatilityPeriod
	if len(returns) < w {
		return 50
	}
	series := make([]float64, 0, len(returns)-w+1)
	for i := w; i <= len(returns); i++ {
		series = append(series, Std(returns[i-w:i])*math.Sqrt(annualizeFactor))
	}
	window := Tail(series, percentileWindow)
	return PercentileRank(window, series[len(series)-1])
}

// detectStructure finds local extrema over a centered window and scores the
// proximity of the close to the nearest support and resistance levels. With
// no extrema on one side the score is a flat 50 and the raw window extremes
// stand in as levels.
func detectStructure(highs, lows []float64, lastClose float64) (support, resistance, score float64) {
	n := len(highs)
	half := structureWindow / 2

	var resLevels, supLevels []float64
	for i := half; i+half-1 < n; i++ {
		lo, hi := i-half, i+half-1
		isMax, isMin := true, true
		for j := lo; j <= hi; j++ {
			if highs[j] > highs[i] {
				isMax = false
			}
			if lows[j] < lows[i] {
				isMin = false
			}
		}
		if isMax {
			resLevels = append(resLevels, highs[i])
		}
		if isMin {
			supLevels = append(supLevels, lows[i])
		}
	}

	support, resistance = rangeExtremes(lows, highs)
	if len(resLevels) == 0 || len(supLevels) == 0 || lastClose == 0 {
		return support, resistance, 50
	}

	nearRes, resDist := nearest(resLevels, lastClose)
	nearSup, supDist := nearest(supLevels, lastClose)
	resScore := math.Max(0, 100-resDist/lastClose*10000)
	supScore := math.Max(0, 100-supDist/lastClose*10000)
	return nearSup, nearRes, (resScore + supScore) / 2
}

func rangeExtremes(lows, highs []float64) (lo, hi float64) {
	if len(lows) == 0 || len(highs) == 0 {
		return 0, 0
	}
	lo, hi = lows[0], highs[0]
	for i := 1; i < len(lows); i++ {
		if lows[i] < lo {
			lo = lows[i]
		}
		if highs[i] > hi {
			hi = highs[i]
		}
	}
	return lo, hi
}

func nearest(levels []float64, target float64) (level, dist float64) {
	level = levels[0]
	dist = math.Abs(target - levels[0])
	for _, l := range levels[1:] {
		if d := math.Abs(target - l); d < dist {
			level, dist = l, d
		}
	}
	return level, dist
}
