package models

import "time"

// Quality tags the provenance of a price observation.
type Quality string

const (
	QualityAuthoritative Quality = "AUTHORITATIVE"
	QualityVisualLive    Quality = "VISUAL_LIVE"
	QualityVisualSynth   Quality = "VISUAL_SYNTHETIC"
	QualityCached        Quality = "CACHED"
)

// FeedMode is the feed state: authoritative data or degraded visual sampling.
type FeedMode string

const (
	ModeLive     FeedMode = "live"
	ModeDegraded FeedMode = "degraded"
)

// PriceSample is a single quality-tagged price observation. Immutable once created.
type PriceSample struct {
	Symbol    string
	Timestamp time.Time
	Price     float64
	Quality   Quality
}

// Candle is one OHLCV aggregate for an interval.
type Candle struct {
	Symbol    string
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Source    Quality
}

// DegenerateCandle folds a single sample into a flat OHLC candle
// (open = high = low = close, zero volume).
func DegenerateCandle(s PriceSample) Candle {
	return Candle{
		Symbol:    s.Symbol,
		Timestamp: s.Timestamp,
		Open:      s.Price,
		High:      s.Price,
		Low:       s.Price,
		Close:     s.Price,
		Source:    s.Quality,
	}
}

// Closes extracts the close series, oldest first.
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}
