package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"FxPulse/internal/domain/models"
	"FxPulse/internal/gate"
	mid "FxPulse/internal/middleware"
	"FxPulse/internal/risk"
)

type captureSink struct {
	mu  sync.Mutex
	got []*models.Advisory
}

func (s *captureSink) Notify(ctx context.Context, a *models.Advisory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, a)
	return nil
}

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.got)
}

type capturePublisher struct {
	mu  sync.Mutex
	got []*models.Advisory
}

func (p *capturePublisher) Publish(ctx context.Context, a *models.Advisory) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.got = append(p.got, a)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

func (p *capturePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.got)
}

type captureQueue struct {
	mu       sync.Mutex
	types    []string
	delays   []time.Duration
	payloads []interface{}
}

func (q *captureQueue) PublishMessage(ctx context.Context, msgType string, payload interface{}) error {
	return q.PublishMessageIn(ctx, msgType, payload, 0)
}

func (q *captureQueue) PublishMessageIn(ctx context.Context, msgType string, payload interface{}, delay time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.types = append(q.types, msgType)
	q.delays = append(q.delays, delay)
	q.payloads = append(q.payloads, payload)
	return nil
}

func (q *captureQueue) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.types)
}

type priceMap map[string]float64

func (p priceMap) LastPrice(symbol string) (float64, bool) {
	v, ok := p[symbol]
	return v, ok && v > 0
}

type advisorFixture struct {
	advisor *Advisor
	journal *memJournal
	sink    *captureSink
	pub     *capturePublisher
	queue   *captureQueue
}

func newAdvisorFixture(t *testing.T) *advisorFixture {
	t.Helper()
	log := testLogger(t)
	journal := &memJournal{}
	metrics := newProbeMetrics()
	sink := &captureSink{}
	pipe := mid.NewDispatchPipeline(metrics)
	pipe.AddSink("capture", sink)
	pub := &capturePublisher{}
	q := &captureQueue{}
	watcher := NewOutcomeWatcher(
		WatcherConfig{},
		journal,
		risk.NewGate(risk.Config{}, &memRiskStore{}, log),
		priceMap{"EURUSD": 1.05},
		q,
		metrics,
		log,
	)
	dec := &scriptedDecision{res: models.DecisionResult{Direction: models.DirectionNeutral, Confidence: 50}}
	advisor := NewAdvisor(
		AdvisorConfig{},
		NewFeedSet(nil),
		newTestEvaluator(t, journal, dec, metrics),
		journal,
		pipe,
		pub,
		watcher,
		metrics,
		log,
	)
	return &advisorFixture{advisor: advisor, journal: journal, sink: sink, pub: pub, queue: q}
}

func testAdvisory(direction string, confidence float64, state string, approved bool) *models.Advisory {
	return &models.Advisory{
		ID:           "adv-42",
		Time:         time.Now(),
		Symbol:       "EURUSD",
		Direction:    direction,
		Score:        71.2,
		Confidence:   confidence,
		Reason:       "trend continuation",
		Price:        1.0845,
		MarketState:  state,
		Trigger:      gate.TriggerRSIExtreme,
		RiskApproved: approved,
	}
}

func TestEmitRoutesApprovedAdvisory(t *testing.T) {
	f := newAdvisorFixture(t)
	f.advisor.emit(context.Background(), testAdvisory(models.DirectionCall, 80, string(models.ModeLive), true))

	if n := f.journal.count(); n != 1 {
		t.Fatalf("journal entries = %d, want 1", n)
	}
	e := f.journal.at(0)
	if e.Outcome != models.OutcomePending || !e.DecisionApproved || !e.RiskApproved {
		t.Fatalf("journal entry = %+v", e)
	}
	if f.sink.count() != 1 {
		t.Fatalf("sink deliveries = %d, want 1", f.sink.count())
	}
	if f.pub.count() != 1 {
		t.Fatalf("published = %d, want 1", f.pub.count())
	}
	if f.queue.count() != 1 || f.queue.types[0] != JobValidateOutcome {
		t.Fatalf("queued jobs = %v, want one %s", f.queue.types, JobValidateOutcome)
	}
}

func TestEmitSkipsBelowThreshold(t *testing.T) {
	f := newAdvisorFixture(t)
	f.advisor.emit(context.Background(), testAdvisory(models.DirectionCall, 69.9, string(models.ModeLive), true))

	if f.journal.count() != 0 || f.sink.count() != 0 || f.pub.count() != 0 || f.queue.count() != 0 {
		t.Fatal("sub-threshold advisory leaked downstream")
	}
}

func TestEmitUsesDegradedThreshold(t *testing.T) {
	f := newAdvisorFixture(t)
	f.advisor.emit(context.Background(), testAdvisory(models.DirectionPut, 66, string(models.ModeDegraded), true))

	if f.journal.count() != 1 {
		t.Fatalf("journal entries = %d, want 1 at the degraded threshold", f.journal.count())
	}
	if f.sink.count() != 1 {
		t.Fatalf("sink deliveries = %d, want 1", f.sink.count())
	}
}

func TestEmitSkipsNeutral(t *testing.T) {
	f := newAdvisorFixture(t)
	f.advisor.emit(context.Background(), testAdvisory(models.DirectionNeutral, 90, string(models.ModeLive), true))

	if f.journal.count() != 0 || f.sink.count() != 0 {
		t.Fatal("neutral advisory leaked downstream")
	}
}

func TestEmitJournalsBlockedWithoutDispatch(t *testing.T) {
	f := newAdvisorFixture(t)
	f.advisor.emit(context.Background(), testAdvisory(models.DirectionCall, 80, string(models.ModeLive), false))

	if f.journal.count() != 1 {
		t.Fatalf("journal entries = %d, want 1 for the audit trail", f.journal.count())
	}
	if e := f.journal.at(0); e.RiskApproved {
		t.Fatalf("journal entry = %+v, want risk_approved false", e)
	}
	if f.sink.count() != 0 || f.pub.count() != 0 || f.queue.count() != 0 {
		t.Fatal("blocked advisory reached the sinks")
	}
}

func TestLastEvaluationTracksSymbols(t *testing.T) {
	f := newAdvisorFixture(t)
	if _, ok := f.advisor.LastEvaluation("EURUSD"); ok {
		t.Fatal("evaluation reported before any cycle")
	}
	f.advisor.mu.Lock()
	f.advisor.last["EURUSD"] = &Evaluation{Symbol: "EURUSD", Mode: models.ModeLive}
	f.advisor.mu.Unlock()
	ev, ok := f.advisor.LastEvaluation("EURUSD")
	if !ok || ev.Symbol != "EURUSD" {
		t.Fatalf("LastEvaluation = %+v, %v", ev, ok)
	}
}
