package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"FxPulse/internal/domain/models"
	"FxPulse/internal/feed"
	"FxPulse/internal/gate"
	"FxPulse/internal/memory"
	"FxPulse/internal/quant"
	"FxPulse/internal/repository"
	"FxPulse/internal/risk"
	"FxPulse/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

type outcomeUpdate struct {
	id      string
	action  string
	outcome string
	pnl     float64
	notes   string
}

type memJournal struct {
	mu      sync.Mutex
	entries []models.JournalEntry
	updates []outcomeUpdate
}

func (j *memJournal) Append(ctx context.Context, e *models.JournalEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, *e)
	return nil
}

func (j *memJournal) UpdateOutcome(ctx context.Context, id, action, outcome string, pnl float64, notes string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	for i := range j.entries {
		if j.entries[i].ID == id {
			j.entries[i].UserAction = action
			j.entries[i].Outcome = outcome
			j.entries[i].PnL = pnl
			j.entries[i].Notes = notes
			j.updates = append(j.updates, outcomeUpdate{id, action, outcome, pnl, notes})
			return nil
		}
	}
	return fmt.Errorf("journal entry %s: %w", id, repository.ErrNotFound)
}

func (j *memJournal) Recent(ctx context.Context, symbol string, limit int) ([]models.JournalEntry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []models.JournalEntry
	for i := len(j.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if symbol == "" || j.entries[i].Symbol == symbol {
			out = append(out, j.entries[i])
		}
	}
	return out, nil
}

func (j *memJournal) Window(ctx context.Context, since time.Time) ([]models.JournalEntry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []models.JournalEntry
	for _, e := range j.entries {
		if !e.Timestamp.Before(since) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (j *memJournal) Prune(ctx context.Context, keep time.Duration) (int, error) { return 0, nil }
func (j *memJournal) Close() error                                               { return nil }

func (j *memJournal) count() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.entries)
}

func (j *memJournal) at(i int) models.JournalEntry {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.entries[i]
}

func (j *memJournal) outcomeUpdates() []outcomeUpdate {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]outcomeUpdate(nil), j.updates...)
}

type memRiskStore struct {
	mu    sync.Mutex
	state *models.DailyRiskState
}

func (s *memRiskStore) Load() (*models.DailyRiskState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, nil
}

func (s *memRiskStore) Save(state *models.DailyRiskState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	return nil
}

type probeMetrics struct {
	mu   sync.Mutex
	errs map[string]int
}

func newProbeMetrics() *probeMetrics {
	return &probeMetrics{errs: make(map[string]int)}
}

func (m *probeMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[kind]++
}

func (m *probeMetrics) errCount(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errs[kind]
}

func (m *probeMetrics) RecordMessageSent(string, string)       {}
func (m *probeMetrics) RecordLastPrice(string, float64)        {}
func (m *probeMetrics) RecordLatency(string, float64)          {}
func (m *probeMetrics) RecordFeedMode(string, models.FeedMode) {}
func (m *probeMetrics) RecordBufferDepth(string, string, int)  {}
func (m *probeMetrics) RecordScore(string, float64, float64)   {}
func (m *probeMetrics) RecordPenalty(string, int)              {}

type scriptedDecision struct {
	mu    sync.Mutex
	res   models.DecisionResult
	err   error
	calls int
	last  *models.DecisionRequest
}

func (d *scriptedDecision) Decide(ctx context.Context, req *models.DecisionRequest) (models.DecisionResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	d.last = req
	return d.res, d.err
}

func (d *scriptedDecision) Healthy(ctx context.Context) bool { return true }

func (d *scriptedDecision) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func (d *scriptedDecision) lastRequest() *models.DecisionRequest {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

func candleSeries(n int, closeAt func(i int) float64) []models.Candle {
	base := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	out := make([]models.Candle, n)
	for i := 0; i < n; i++ {
		c := closeAt(i)
		out[i] = models.Candle{
			Symbol:    "EURUSD",
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Open:      c,
			High:      c + 0.0002,
			Low:       c - 0.0002,
			Close:     c,
			Volume:    100,
		}
	}
	return out
}

// risingCandles climbs one pip-block per minute, which drives RSI to 100.
func risingCandles(n int) []models.Candle {
	return candleSeries(n, func(i int) float64 { return 1.0 + 0.001*float64(i) })
}

// rangingCandles alternates inside a narrow band: RSI 50, no breach, flat volume.
func rangingCandles(n int) []models.Candle {
	return candleSeries(n, func(i int) float64 {
		if i%2 == 0 {
			return 1.0
		}
		return 1.001
	})
}

func newTestEvaluator(t *testing.T, journal *memJournal, dec *scriptedDecision, metrics *probeMetrics) *Evaluator {
	t.Helper()
	log := testLogger(t)
	return NewEvaluator(
		EvaluatorConfig{},
		quant.NewIndicatorEngine(quant.Config{}),
		quant.NewScoreEngine(quant.Weights{}),
		gate.New(gate.Config{}),
		memory.New(memory.Config{}, journal, log),
		risk.NewGate(risk.Config{}, &memRiskStore{}, log),
		dec,
		metrics,
		log,
	)
}

func TestEvaluateBelowFloorSkipsDecision(t *testing.T) {
	dec := &scriptedDecision{res: models.DecisionResult{Direction: models.DirectionUp, Confidence: 90}}
	ev := newTestEvaluator(t, &memJournal{}, dec, newProbeMetrics())

	out := ev.Evaluate(context.Background(), time.Now(), feed.View{
		Symbol:    "EURUSD",
		Mode:      models.ModeLive,
		Candles:   risingCandles(10),
		LastPrice: 1.009,
	})
	if out.Advisory != nil {
		t.Fatalf("advisory on 10 candles: %+v", out.Advisory)
	}
	if out.Gate.Wake {
		t.Fatal("gate woke on 10 candles")
	}
	if dec.callCount() != 0 {
		t.Fatalf("decision service called %d times on short history", dec.callCount())
	}
}

func TestEvaluateQuietMarketSleeps(t *testing.T) {
	dec := &scriptedDecision{res: models.DecisionResult{Direction: models.DirectionUp, Confidence: 90}}
	ev := newTestEvaluator(t, &memJournal{}, dec, newProbeMetrics())

	out := ev.Evaluate(context.Background(), time.Now(), feed.View{
		Symbol:    "EURUSD",
		Mode:      models.ModeLive,
		Candles:   rangingCandles(40),
		LastPrice: 1.001,
	})
	if out.Advisory != nil {
		t.Fatalf("advisory in a ranging market: %+v", out.Advisory)
	}
	if out.Gate.Wake || out.Gate.Trigger != gate.TriggerNone {
		t.Fatalf("gate = %+v, want asleep with trigger none", out.Gate)
	}
	if dec.callCount() != 0 {
		t.Fatal("decision service consulted while the gate slept")
	}
	if out.Score.Total <= 0 {
		t.Fatalf("score not computed on sleep: %+v", out.Score)
	}
}

func TestEvaluateWakeIssuesAdvisory(t *testing.T) {
	dec := &scriptedDecision{res: models.DecisionResult{
		Direction:  models.DirectionUp,
		Confidence: 80,
		Reason:     "trend continuation",
	}}
	ev := newTestEvaluator(t, &memJournal{}, dec, newProbeMetrics())

	now := time.Now()
	out := ev.Evaluate(context.Background(), now, feed.View{
		Symbol:    "EURUSD",
		Mode:      models.ModeLive,
		Candles:   risingCandles(40),
		LastPrice: 1.039,
	})
	if !out.Gate.Wake || out.Gate.Trigger != gate.TriggerRSIExtreme {
		t.Fatalf("gate = %+v, want rsi_extreme wake", out.Gate)
	}
	adv := out.Advisory
	if adv == nil {
		t.Fatal("no advisory after wake")
	}
	if adv.ID == "" {
		t.Fatal("advisory without id")
	}
	if adv.Direction != models.DirectionCall {
		t.Fatalf("direction = %s, want CALL for an UP verdict", adv.Direction)
	}
	if adv.Confidence != 80 {
		t.Fatalf("confidence = %.1f, want 80", adv.Confidence)
	}
	if adv.Penalty != 0 {
		t.Fatalf("penalty = %d with an empty journal", adv.Penalty)
	}
	if !adv.RiskApproved {
		t.Fatalf("risk blocked a clean advisory: %s", adv.RiskReason)
	}
	if !adv.Time.Equal(now) || adv.Price != 1.039 {
		t.Fatalf("advisory snapshot fields wrong: %+v", adv)
	}

	req := dec.lastRequest()
	if req == nil {
		t.Fatal("decision service not consulted")
	}
	if req.Symbol != "EURUSD" || req.MarketState != string(models.ModeLive) {
		t.Fatalf("request = %+v", req)
	}
	if req.Penalty != 0 {
		t.Fatalf("prompt penalty = %d with an empty journal", req.Penalty)
	}
}

func TestEvaluateAppliesLossMemory(t *testing.T) {
	now := time.Now()
	journal := &memJournal{}
	for i := 0; i < 3; i++ {
		journal.entries = append(journal.entries, models.JournalEntry{
			ID:          fmt.Sprintf("loss-%d", i),
			Timestamp:   now.Add(-time.Duration(i+1) * time.Hour),
			Symbol:      "EURUSD",
			Direction:   models.DirectionCall,
			Confidence:  90,
			MarketState: string(models.ModeLive),
			Trigger:     gate.TriggerRSIExtreme,
			Outcome:     models.OutcomeLoss,
		})
	}
	dec := &scriptedDecision{res: models.DecisionResult{
		Direction:  models.DirectionUp,
		Confidence: 80,
		Reason:     "trend continuation",
	}}
	ev := newTestEvaluator(t, journal, dec, newProbeMetrics())

	out := ev.Evaluate(context.Background(), now, feed.View{
		Symbol:    "EURUSD",
		Mode:      models.ModeLive,
		Candles:   risingCandles(40),
		LastPrice: 1.039,
	})
	adv := out.Advisory
	if adv == nil {
		t.Fatal("no advisory after wake")
	}
	// 3 losses +10, repeated CALL +20, repeated trigger +12, overconfidence +8:
	// capped at 40 and past the neutral threshold.
	if adv.Penalty != 40 {
		t.Fatalf("penalty = %d, want capped 40", adv.Penalty)
	}
	if adv.Direction != models.DirectionNeutral {
		t.Fatalf("direction = %s after heavy loss memory, want NEUTRAL", adv.Direction)
	}
	if adv.Confidence != 45 {
		t.Fatalf("confidence = %.1f, want floor 45", adv.Confidence)
	}
	if adv.RiskApproved {
		t.Fatal("risk approved a forced-neutral advisory")
	}
	if !strings.Contains(adv.Reason, "memory:") {
		t.Fatalf("reason lacks memory context: %q", adv.Reason)
	}

	req := dec.lastRequest()
	if req == nil {
		t.Fatal("decision service not consulted")
	}
	// The prompt penalty is computed before a direction exists, so the
	// repeated-signal component is not part of it.
	if req.Penalty != 30 {
		t.Fatalf("prompt penalty = %d, want 30", req.Penalty)
	}
	if !strings.Contains(req.MemorySummary, "3 losses") {
		t.Fatalf("memory summary = %q", req.MemorySummary)
	}
}

func TestEvaluateDecisionFailureStaysNeutral(t *testing.T) {
	dec := &scriptedDecision{
		res: models.DecisionResult{
			Direction:  models.DirectionNeutral,
			Confidence: 50,
			Reason:     "decision service unavailable",
			Fallback:   true,
		},
		err: errors.New("connection refused"),
	}
	metrics := newProbeMetrics()
	ev := newTestEvaluator(t, &memJournal{}, dec, metrics)

	out := ev.Evaluate(context.Background(), time.Now(), feed.View{
		Symbol:    "EURUSD",
		Mode:      models.ModeLive,
		Candles:   risingCandles(40),
		LastPrice: 1.039,
	})
	adv := out.Advisory
	if adv == nil {
		t.Fatal("fallback verdict should still produce an advisory")
	}
	if adv.Direction != models.DirectionNeutral {
		t.Fatalf("direction = %s, want NEUTRAL fallback", adv.Direction)
	}
	if adv.RiskApproved {
		t.Fatal("risk approved a fallback advisory")
	}
	if metrics.errCount("decision") != 1 {
		t.Fatalf("decision errors = %d, want 1", metrics.errCount("decision"))
	}
}

func TestEvaluateDegradedVetoesNoisySamples(t *testing.T) {
	dec := &scriptedDecision{res: models.DecisionResult{Direction: models.DirectionUp, Confidence: 90}}
	ev := newTestEvaluator(t, &memJournal{}, dec, newProbeMetrics())

	// Alternating 1.000/1.004 closes: 20 pips of sampling noise.
	noisy := candleSeries(40, func(i int) float64 {
		if i%2 == 0 {
			return 1.0
		}
		return 1.004
	})
	out := ev.Evaluate(context.Background(), time.Now(), feed.View{
		Symbol:    "EURUSD",
		Mode:      models.ModeDegraded,
		Candles:   noisy,
		LastPrice: 1.004,
		GapPct:    1.2,
	})
	if out.Advisory != nil {
		t.Fatal("advisory issued under micro-volatility veto")
	}
	if out.Gate.Wake || out.Gate.Trigger != gate.TriggerMicroVolVeto {
		t.Fatalf("gate = %+v, want micro_vol_veto", out.Gate)
	}
	if math.Abs(out.Gate.MicroVol-20) > 0.01 {
		t.Fatalf("micro vol = %.3f pips, want 20", out.Gate.MicroVol)
	}
	if dec.callCount() != 0 {
		t.Fatal("decision service consulted despite the veto")
	}
}
