package usecase

import (
	"context"
	"strings"
	"testing"
	"time"

	"FxPulse/internal/domain/models"
	"FxPulse/internal/risk"
)

func newTestWatcher(t *testing.T, journal *memJournal, prices priceMap, q *captureQueue) (*OutcomeWatcher, *risk.Gate) {
	t.Helper()
	log := testLogger(t)
	rg := risk.NewGate(risk.Config{}, &memRiskStore{}, log)
	w := NewOutcomeWatcher(WatcherConfig{Delay: time.Minute}, journal, rg, prices, q, newProbeMetrics(), log)
	return w, rg
}

func seededJournal(id string) *memJournal {
	j := &memJournal{}
	j.entries = append(j.entries, models.JournalEntry{
		ID:          id,
		Timestamp:   time.Now(),
		Symbol:      "EURUSD",
		Direction:   models.DirectionCall,
		Confidence:  80,
		MarketState: string(models.ModeLive),
		Outcome:     models.OutcomePending,
	})
	return j
}

func TestHandleSettlesDirection(t *testing.T) {
	cases := []struct {
		name      string
		direction string
		current   float64
		want      string
	}{
		{"call gain", models.DirectionCall, 1.002, models.OutcomeWin},
		{"call drop", models.DirectionCall, 0.998, models.OutcomeLoss},
		{"put drop", models.DirectionPut, 0.998, models.OutcomeWin},
		{"put gain", models.DirectionPut, 1.002, models.OutcomeLoss},
		{"flat", models.DirectionCall, 1.0, models.OutcomeDraw},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			journal := seededJournal("adv-1")
			w, _ := newTestWatcher(t, journal, priceMap{"EURUSD": tc.current}, &captureQueue{})

			err := w.Handle(context.Background(), outcomeProbe{
				ID:        "adv-1",
				Symbol:    "EURUSD",
				Direction: tc.direction,
				Price:     1.0,
				IssuedAt:  time.Now().Add(-4 * time.Minute),
			})
			if err != nil {
				t.Fatalf("handle: %v", err)
			}
			ups := journal.outcomeUpdates()
			if len(ups) != 1 {
				t.Fatalf("updates = %d, want 1", len(ups))
			}
			if ups[0].outcome != tc.want {
				t.Fatalf("outcome = %s, want %s", ups[0].outcome, tc.want)
			}
			if !strings.Contains(ups[0].notes, "auto validation") {
				t.Fatalf("notes = %q", ups[0].notes)
			}
		})
	}
}

func TestHandleSurfacesMissingPriceForRetry(t *testing.T) {
	journal := seededJournal("adv-1")
	w, _ := newTestWatcher(t, journal, priceMap{}, &captureQueue{})

	err := w.Handle(context.Background(), outcomeProbe{
		ID:        "adv-1",
		Symbol:    "EURUSD",
		Direction: models.DirectionCall,
		Price:     1.0,
	})
	if err == nil {
		t.Fatal("missing price should surface an error for the queue retry")
	}
	if len(journal.outcomeUpdates()) != 0 {
		t.Fatal("journal updated without a price")
	}
}

func TestHandleDropsNonActionableProbe(t *testing.T) {
	journal := seededJournal("adv-1")
	w, _ := newTestWatcher(t, journal, priceMap{"EURUSD": 1.1}, &captureQueue{})

	err := w.Handle(context.Background(), outcomeProbe{
		ID:        "adv-1",
		Symbol:    "EURUSD",
		Direction: models.DirectionNeutral,
		Price:     1.0,
	})
	if err != nil {
		t.Fatalf("neutral probe should be dropped silently: %v", err)
	}
	if len(journal.outcomeUpdates()) != 0 {
		t.Fatal("journal updated for a neutral probe")
	}
}

func TestHandleDropsVanishedEntry(t *testing.T) {
	w, _ := newTestWatcher(t, &memJournal{}, priceMap{"EURUSD": 1.1}, &captureQueue{})

	err := w.Handle(context.Background(), outcomeProbe{
		ID:        "ghost",
		Symbol:    "EURUSD",
		Direction: models.DirectionCall,
		Price:     1.0,
	})
	if err != nil {
		t.Fatalf("vanished entry must not retry: %v", err)
	}
}

func TestRecordConfirmsTradeAndMovesRisk(t *testing.T) {
	journal := seededJournal("adv-1")
	w, rg := newTestWatcher(t, journal, priceMap{"EURUSD": 1.05}, &captureQueue{})

	if err := w.Record(context.Background(), "adv-1", "executed", "loss", -12.5, "manual close"); err != nil {
		t.Fatalf("record: %v", err)
	}
	ups := journal.outcomeUpdates()
	if len(ups) != 1 {
		t.Fatalf("updates = %d, want 1", len(ups))
	}
	if ups[0].outcome != models.OutcomeLoss || ups[0].action != "executed" || ups[0].pnl != -12.5 {
		t.Fatalf("update = %+v", ups[0])
	}

	sum := rg.Summary(time.Now())
	if sum.TotalTrades != 1 {
		t.Fatalf("total trades = %d, want 1", sum.TotalTrades)
	}
	if sum.ConsecutiveLosses != 1 {
		t.Fatalf("consecutive losses = %d, want 1", sum.ConsecutiveLosses)
	}
	if sum.DailyLoss != 12.5 {
		t.Fatalf("daily loss = %.2f, want the positive magnitude 12.5", sum.DailyLoss)
	}
}

func TestRecordRejectsUnknownOutcome(t *testing.T) {
	journal := seededJournal("adv-1")
	w, _ := newTestWatcher(t, journal, priceMap{"EURUSD": 1.05}, &captureQueue{})

	if err := w.Record(context.Background(), "adv-1", "executed", "sideways", 0, ""); err == nil {
		t.Fatal("unknown outcome accepted")
	}
	if len(journal.outcomeUpdates()) != 0 {
		t.Fatal("journal updated for an invalid outcome")
	}
}

func TestScheduleQueuesDelayedProbe(t *testing.T) {
	q := &captureQueue{}
	w, _ := newTestWatcher(t, seededJournal("adv-1"), priceMap{"EURUSD": 1.0}, q)

	adv := testAdvisory(models.DirectionCall, 80, string(models.ModeLive), true)
	if err := w.Schedule(context.Background(), adv); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if q.count() != 1 || q.types[0] != JobValidateOutcome {
		t.Fatalf("queued = %v, want one %s", q.types, JobValidateOutcome)
	}
	if q.delays[0] != time.Minute {
		t.Fatalf("delay = %s, want 1m", q.delays[0])
	}
	probe, ok := q.payloads[0].(outcomeProbe)
	if !ok {
		t.Fatalf("payload type %T", q.payloads[0])
	}
	if probe.ID != adv.ID || probe.Symbol != adv.Symbol || probe.Price != adv.Price {
		t.Fatalf("probe = %+v", probe)
	}
}

func TestOutcomesHandlerResolvesMissingID(t *testing.T) {
	journal := seededJournal("adv-9")
	w, rg := newTestWatcher(t, journal, priceMap{"EURUSD": 1.0}, &captureQueue{})
	h := NewKafkaOutcomesHandler("fx.outcomes", w, journal, newProbeMetrics())

	if h.Topic() != "fx.outcomes" {
		t.Fatalf("topic = %s", h.Topic())
	}
	msg := []byte(`{"symbol":"EURUSD","outcome":"win","pnl":8.4,"notes":"bridge fill"}`)
	if err := h.Handle(context.Background(), msg); err != nil {
		t.Fatalf("handle: %v", err)
	}
	ups := journal.outcomeUpdates()
	if len(ups) != 1 || ups[0].id != "adv-9" {
		t.Fatalf("updates = %+v, want the latest EURUSD entry settled", ups)
	}
	if ups[0].outcome != models.OutcomeWin || ups[0].action != "executed" {
		t.Fatalf("update = %+v", ups[0])
	}
	if sum := rg.Summary(time.Now()); sum.TotalTrades != 1 {
		t.Fatalf("total trades = %d, want 1", sum.TotalTrades)
	}
}

func TestOutcomesHandlerRejectsUnaddressedEvent(t *testing.T) {
	journal := seededJournal("adv-9")
	w, _ := newTestWatcher(t, journal, priceMap{"EURUSD": 1.0}, &captureQueue{})
	h := NewKafkaOutcomesHandler("fx.outcomes", w, journal, newProbeMetrics())

	if err := h.Handle(context.Background(), []byte(`{"outcome":"win"}`)); err == nil {
		t.Fatal("event without id or symbol accepted")
	}
}
