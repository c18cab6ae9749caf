package quant

import (
	"FxPulse/internal/domain/models"
)

// directionBand thresholds the mean of the four direction signals.
const directionBand = 0.2

// Weights are the six component weights of the total score. The engine does
// not validate the sum; configuration loading enforces it.
type Weights struct {
	Trend         float64
	Momentum      float64
	MeanReversion float64
	Volume        float64
	Volatility    float64
	Structure     float64
}

// DefaultWeights returns the standard component weighting.
func DefaultWeights() Weights {
	return Weights{
		Trend:         0.25,
		Momentum:      0.20,
		MeanReversion: 0.15,
		Volume:        0.15,
		Volatility:    0.10,
		Structure:     0.15,
	}
}

// Sum returns the total of all six weights.
func (w Weights) Sum() float64 {
	return w.Trend + w.Momentum + w.MeanReversion + w.Volume + w.Volatility + w.Structure
}

// ScoreEngine folds an indicator set into one weighted probability score.
type ScoreEngine struct {
	weights Weights
}

// NewScoreEngine creates a ScoreEngine; a zero Weights value falls back to
// the defaults.
func NewScoreEngine(w Weights) *ScoreEngine {
	if w == (Weights{}) {
		w = DefaultWeights()
	}
	return &ScoreEngine{weights: w}
}

// Score derives the weighted total, direction consensus and confidence from
// one indicator set. Each sub-score is clamped to [0,100] before weighting.
func (e *ScoreEngine) Score(ind models.IndicatorSet, regime models.RegimeLabel) models.ProbabilityScore {
	comp := models.ScoreComponents{
		Trend:         Clamp(50+ind.EMASignal*25+ind.VWAPSignal*25, 0, 100),
		Momentum:      Clamp((50+ind.RSINorm*30+50+ind.MomentumNorm*50)/2, 0, 100),
		MeanReversion: Clamp(absf(ind.BBPosition-0.5)*100+minf(absf(ind.ZScore)*20, 50), 0, 100),
		Volume:        Clamp(minf(ind.VolumeRatio*50, 100), 0, 100),
		Volatility:    Clamp(100-ind.VolPercentile, 0, 100),
		Structure:     Clamp(ind.StructureScore, 0, 100),
	}

	total := comp.Trend*e.weights.Trend +
		comp.Momentum*e.weights.Momentum +
		comp.MeanReversion*e.weights.MeanReversion +
		comp.Volume*e.weights.Volume +
		comp.Volatility*e.weights.Volatility +
		comp.Structure*e.weights.Structure

	signals := []float64{ind.EMASignal, ind.RSINorm, ind.MomentumNorm, ind.VWAPSignal}
	consensus := Mean(signals)

	direction := models.ScoreNeutral
	switch {
	case consensus > directionBand:
		direction = models.ScoreBullish
	case consensus < -directionBand:
		direction = models.ScoreBearish
	}

	confidence := Clamp((1-StdP(signals))*100, 0, 100)

	score := models.ProbabilityScore{
		Total:      total,
		Direction:  direction,
		Confidence: confidence,
		Components: comp,
	}
	switch direction {
	case models.ScoreBullish:
		score.ContinuationProb = total
		score.ReversalProb = 100 - total
	case models.ScoreBearish:
		score.ContinuationProb = 100 - total
		score.ReversalProb = total
	default:
		score.ContinuationProb = 50
		score.ReversalProb = 50
	}
	return score
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
