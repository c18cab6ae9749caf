package gate

import (
	"math"
	"testing"

	"FxPulse/internal/domain/models"
)

func quietIndicators() models.IndicatorSet {
	return models.IndicatorSet{
		Symbol:      "EURUSD",
		RSI:         50,
		LastClose:   1.0845,
		BBUpper:     1.0900,
		BBLower:     1.0800,
		VolumeRatio: 1.0,
	}
}

func flatPrices(n int, price float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = price
	}
	return out
}

// noisyPrices alternates around base so the population stddev is exactly amp.
func noisyPrices(n int, base, amp float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		if i%2 == 0 {
			out[i] = base + amp
		} else {
			out[i] = base - amp
		}
	}
	return out
}

func TestLiveWakesOnRSIExtremes(t *testing.T) {
	g := New(Config{})
	for _, rsi := range []float64{75, 25} {
		ind := quietIndicators()
		ind.RSI = rsi
		d := g.EvaluateLive(ind)
		if !d.Wake || d.Trigger != TriggerRSIExtreme {
			t.Fatalf("rsi=%v: got wake=%v trigger=%q, want rsi_extreme wake", rsi, d.Wake, d.Trigger)
		}
	}
}

func TestLiveWakesOnInclusiveBandBreach(t *testing.T) {
	g := New(Config{})

	ind := quietIndicators()
	ind.LastClose = ind.BBUpper
	d := g.EvaluateLive(ind)
	if !d.Wake || d.Trigger != TriggerBandBreach {
		t.Fatalf("close at upper band: got wake=%v trigger=%q", d.Wake, d.Trigger)
	}

	ind = quietIndicators()
	ind.LastClose = ind.BBLower - 0.0001
	d = g.EvaluateLive(ind)
	if !d.Wake || d.Trigger != TriggerBandBreach {
		t.Fatalf("close below lower band: got wake=%v trigger=%q", d.Wake, d.Trigger)
	}
}

func TestLiveWakesOnVolumeSurge(t *testing.T) {
	g := New(Config{})
	ind := quietIndicators()
	ind.VolumeRatio = 2.0
	d := g.EvaluateLive(ind)
	if !d.Wake || d.Trigger != TriggerVolumeSurge {
		t.Fatalf("got wake=%v trigger=%q, want volume_surge wake", d.Wake, d.Trigger)
	}
}

func TestLiveQuietMarketDoesNotWake(t *testing.T) {
	g := New(Config{})
	d := g.EvaluateLive(quietIndicators())
	if d.Wake || d.Trigger != TriggerNone {
		t.Fatalf("got wake=%v trigger=%q, want quiet no-wake", d.Wake, d.Trigger)
	}
}

func TestLiveFallbackFailsOpen(t *testing.T) {
	g := New(Config{})
	ind := models.NeutralIndicators("EURUSD")
	d := g.EvaluateLive(ind)
	if !d.Wake {
		t.Fatalf("fallback indicators should wake in live mode")
	}
}

func TestDegradedMicroVolVetoOverridesRSIExtreme(t *testing.T) {
	g := New(Config{MicroVolPips: 15})
	ind := quietIndicators()
	ind.RSI = 95

	// 20 pips of sampling noise against a 15 pip ceiling.
	prices := noisyPrices(10, 1.0845, 0.0020)
	d := g.EvaluateDegraded(ind, prices, 0)
	if d.Wake {
		t.Fatalf("noisy sampling must veto the wake even at rsi=95")
	}
	if d.Trigger != TriggerMicroVolVeto {
		t.Fatalf("got trigger %q, want micro_vol_veto", d.Trigger)
	}
	if math.Abs(d.MicroVol-20) > 1e-6 {
		t.Fatalf("got microVol=%v pips, want 20", d.MicroVol)
	}
}

func TestDegradedTighterRSIBand(t *testing.T) {
	g := New(Config{})
	ind := quietIndicators()
	ind.RSI = 72
	prices := flatPrices(10, 1.0845)

	if d := g.EvaluateLive(ind); !d.Wake {
		t.Fatalf("rsi=72 should wake the live policy")
	}
	if d := g.EvaluateDegraded(ind, prices, 0); d.Wake {
		t.Fatalf("rsi=72 should not clear the degraded band")
	}

	ind.RSI = 80
	d := g.EvaluateDegraded(ind, prices, 0)
	if !d.Wake || d.Trigger != TriggerRSIExtreme {
		t.Fatalf("rsi=80: got wake=%v trigger=%q", d.Wake, d.Trigger)
	}
}

func TestDegradedWakesOnGap(t *testing.T) {
	g := New(Config{})
	ind := quietIndicators()
	prices := flatPrices(10, 1.0845)

	d := g.EvaluateDegraded(ind, prices, -0.62)
	if !d.Wake || d.Trigger != TriggerGap {
		t.Fatalf("gap -0.62%%: got wake=%v trigger=%q", d.Wake, d.Trigger)
	}

	d = g.EvaluateDegraded(ind, prices, 0.4)
	if d.Wake {
		t.Fatalf("gap 0.4%% is below the threshold, got wake")
	}
}

func TestDegradedFallbackFailsClosed(t *testing.T) {
	g := New(Config{})
	ind := models.NeutralIndicators("EURUSD")
	d := g.EvaluateDegraded(ind, flatPrices(10, 1.0845), 0)
	if d.Wake {
		t.Fatalf("fallback indicators must not wake in degraded mode")
	}
}

func TestDegradedReportsMicroTrend(t *testing.T) {
	g := New(Config{})
	// Last five samples rise one pip per step.
	prices := []float64{1.0840, 1.0841, 1.0842, 1.0843, 1.0844, 1.0845}
	d := g.EvaluateDegraded(quietIndicators(), prices, 0)
	if math.Abs(d.MicroTrend-1.0) > 1e-6 {
		t.Fatalf("got microTrend=%v pips/step, want 1.0", d.MicroTrend)
	}
}
