package gate

import (
	"math"

	"FxPulse/internal/domain/models"
	"FxPulse/internal/quant"
)

// Trigger names recorded with every gate decision.
const (
	TriggerRSIExtreme   = "rsi_extreme"
	TriggerBandBreach   = "band_breach"
	TriggerVolumeSurge  = "volume_surge"
	TriggerGap          = "gap"
	TriggerMicroVolVeto = "micro_vol_veto"
	TriggerNone         = "none"
)

// Config holds the wake thresholds for both feed modes.
type Config struct {
	RSIHigh     float64
	RSILow      float64
	VolumeSurge float64

	DegradedRSIHigh float64
	DegradedRSILow  float64
	GapPct          float64
	MicroVolPips    float64
}

// DefaultConfig returns the standard gate thresholds.
func DefaultConfig() Config {
	return Config{
		RSIHigh:         70,
		RSILow:          30,
		VolumeSurge:     1.5,
		DegradedRSIHigh: 75,
		DegradedRSILow:  25,
		GapPct:          0.5,
		MicroVolPips:    15,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.RSIHigh <= 0 {
		c.RSIHigh = def.RSIHigh
	}
	if c.RSILow <= 0 {
		c.RSILow = def.RSILow
	}
	if c.VolumeSurge <= 0 {
		c.VolumeSurge = def.VolumeSurge
	}
	if c.DegradedRSIHigh <= 0 {
		c.DegradedRSIHigh = def.DegradedRSIHigh
	}
	if c.DegradedRSILow <= 0 {
		c.DegradedRSILow = def.DegradedRSILow
	}
	if c.GapPct <= 0 {
		c.GapPct = def.GapPct
	}
	if c.MicroVolPips <= 0 {
		c.MicroVolPips = def.MicroVolPips
	}
	return c
}

// Decision is the gate verdict for one evaluation cycle.
type Decision struct {
	Wake       bool    `json:"wake"`
	Trigger    string  `json:"trigger"`
	MicroTrend float64 `json:"micro_trend"` // slope of the last 5 samples, in pips; reported only
	MicroVol   float64 `json:"micro_vol"`   // stddev of the last 10 samples, in pips
}

// SignalGate decides, from indicators alone, whether a cycle is interesting
// enough to invoke the external decision step.
type SignalGate struct {
	cfg Config
}

// New creates a SignalGate, filling unset thresholds from defaults.
func New(cfg Config) *SignalGate {
	return &SignalGate{cfg: cfg.withDefaults()}
}

// EvaluateLive applies the live policy: any single wake condition suffices,
// and an indicator fallback wakes anyway. Over-waking beats missing a move.
func (g *SignalGate) EvaluateLive(ind models.IndicatorSet) Decision {
	if ind.Fallback {
		return Decision{Wake: true, Trigger: TriggerNone}
	}
	if ind.RSI > g.cfg.RSIHigh || ind.RSI < g.cfg.RSILow {
		return Decision{Wake: true, Trigger: TriggerRSIExtreme}
	}
	if ind.LastClose >= ind.BBUpper || ind.LastClose <= ind.BBLower {
		return Decision{Wake: true, Trigger: TriggerBandBreach}
	}
	if ind.VolumeRatio > g.cfg.VolumeSurge {
		return Decision{Wake: true, Trigger: TriggerVolumeSurge}
	}
	return Decision{Trigger: TriggerNone}
}

// EvaluateDegraded applies the conservative degraded policy over the raw
// sample prices. Noisy sampling is a hard veto before anything else, and a
// fallback keeps the gate shut.
func (g *SignalGate) EvaluateDegraded(ind models.IndicatorSet, prices []float64, gapPct float64) Decision {
	d := Decision{
		MicroTrend: quant.Slope(quant.Tail(prices, 5)) * 10000,
		MicroVol:   quant.StdP(quant.Tail(prices, 10)) * 10000,
	}
	if d.MicroVol > g.cfg.MicroVolPips {
		d.Trigger = TriggerMicroVolVeto
		return d
	}
	if ind.Fallback {
		d.Trigger = TriggerNone
		return d
	}
	if ind.RSI > g.cfg.DegradedRSIHigh || ind.RSI < g.cfg.DegradedRSILow {
		d.Wake = true
		d.Trigger = TriggerRSIExtreme
		return d
	}
	if ind.LastClose >= ind.BBUpper || ind.LastClose <= ind.BBLower {
		d.Wake = true
		d.Trigger = TriggerBandBreach
		return d
	}
	if math.Abs(gapPct) > g.cfg.GapPct {
		d.Wake = true
		d.Trigger = TriggerGap
		return d
	}
	d.Trigger = TriggerNone
	return d
}
