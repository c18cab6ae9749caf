package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"FxPulse/internal/domain/models"
	"FxPulse/internal/feed"
	"FxPulse/internal/memory"
	"FxPulse/internal/repository"
	"FxPulse/internal/risk"
	"FxPulse/internal/usecase"
	xhttp "FxPulse/pkg/http"
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

type stubJournal struct {
	mu        sync.Mutex
	entries   []models.JournalEntry
	lastLimit int
}

func (j *stubJournal) Append(ctx context.Context, e *models.JournalEntry) error { return nil }

func (j *stubJournal) UpdateOutcome(ctx context.Context, id, action, outcome string, pnl float64, notes string) error {
	return fmt.Errorf("journal entry %s: %w", id, repository.ErrNotFound)
}

func (j *stubJournal) Recent(ctx context.Context, symbol string, limit int) ([]models.JournalEntry, error) {
	j.mu.Lock()
	j.lastLimit = limit
	j.mu.Unlock()
	var out []models.JournalEntry
	for i := len(j.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if symbol == "" || j.entries[i].Symbol == symbol {
			out = append(out, j.entries[i])
		}
	}
	return out, nil
}

func (j *stubJournal) Window(ctx context.Context, since time.Time) ([]models.JournalEntry, error) {
	var out []models.JournalEntry
	for _, e := range j.entries {
		if !e.Timestamp.Before(since) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (j *stubJournal) Prune(ctx context.Context, keep time.Duration) (int, error) { return 0, nil }
func (j *stubJournal) Close() error                                               { return nil }

type stubFeeds struct{ views []feed.View }

func (s stubFeeds) Views() []feed.View { return s.views }

type stubSnaps map[string]*usecase.Evaluation

func (s stubSnaps) LastEvaluation(symbol string) (*usecase.Evaluation, bool) {
	ev, ok := s[symbol]
	return ev, ok
}

type stubRecorder struct {
	mu      sync.Mutex
	id      string
	action  string
	outcome string
	pnl     float64
	err     error
}

func (r *stubRecorder) Record(ctx context.Context, id, action, outcome string, pnl float64, notes string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.id, r.action, r.outcome, r.pnl = id, action, outcome, pnl
	return nil
}

type stubDecision struct{ healthy bool }

func (d stubDecision) Decide(ctx context.Context, req *models.DecisionRequest) (models.DecisionResult, error) {
	return models.DecisionResult{Direction: models.DirectionNeutral, Confidence: 50}, nil
}

func (d stubDecision) Healthy(ctx context.Context) bool { return d.healthy }

type stubRiskStore struct{ state *models.DailyRiskState }

func (s *stubRiskStore) Load() (*models.DailyRiskState, error) { return s.state, nil }
func (s *stubRiskStore) Save(st *models.DailyRiskState) error  { s.state = st; return nil }

type handlerFixture struct {
	e        *echo.Echo
	log      *logger.Logger
	journal  *stubJournal
	recorder *stubRecorder
}

func newHandlerFixture(t *testing.T, views []feed.View, snaps stubSnaps) *handlerFixture {
	t.Helper()
	log := testLogger(t)
	journal := &stubJournal{}
	recorder := &stubRecorder{}
	h := NewStatusHandler(
		log,
		stubFeeds{views: views},
		snaps,
		journal,
		risk.NewGate(risk.Config{}, &stubRiskStore{}, log),
		memory.New(memory.Config{}, journal, log),
		recorder,
		stubDecision{healthy: true},
	)
	e := echo.New()
	h.RegisterRoutes(e)
	return &handlerFixture{e: e, log: log, journal: journal, recorder: recorder}
}

func (f *handlerFixture) get(t *testing.T, target string) (*httptest.ResponseRecorder, xhttp.APIResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec, decodeEnvelope(t, rec)
}

func (f *handlerFixture) post(t *testing.T, target, body string) (*httptest.ResponseRecorder, xhttp.APIResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec, decodeEnvelope(t, rec)
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) xhttp.APIResponse {
	t.Helper()
	var env xhttp.APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return env
}

func decodeData(t *testing.T, env xhttp.APIResponse, dst interface{}) {
	t.Helper()
	b, err := json.Marshal(env.Data)
	if err != nil {
		t.Fatalf("re-marshal data: %v", err)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		t.Fatalf("decode data: %v", err)
	}
}

func TestStatusReportsFeeds(t *testing.T) {
	views := []feed.View{
		{Symbol: "EURUSD", Mode: models.ModeLive, LastPrice: 1.0845, LiveDepth: 120},
		{Symbol: "GBPUSD", Mode: models.ModeDegraded, LastPrice: 1.2671, GapPct: 0.3, DegradedDepth: 40},
	}
	f := newHandlerFixture(t, views, stubSnaps{})

	_, env := f.get(t, "/api/status")
	if env.Status != http.StatusOK {
		t.Fatalf("status = %d", env.Status)
	}
	var res statusResponse
	decodeData(t, env, &res)
	if len(res.Symbols) != 2 {
		t.Fatalf("symbols = %d, want 2", len(res.Symbols))
	}
	if res.Symbols[1].Mode != string(models.ModeDegraded) || res.Symbols[1].GapPct != 0.3 {
		t.Fatalf("degraded symbol = %+v", res.Symbols[1])
	}
	if !res.DecisionOK {
		t.Fatal("decision_ok false with a healthy stub")
	}
	if res.Risk.Status != "safe" {
		t.Fatalf("risk status = %s, want safe", res.Risk.Status)
	}
}

func TestSnapshotRequiresSymbol(t *testing.T) {
	f := newHandlerFixture(t, nil, stubSnaps{})
	_, env := f.get(t, "/api/snapshot")
	if env.Status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", env.Status)
	}
}

func TestSnapshotReturnsEvaluation(t *testing.T) {
	snaps := stubSnaps{"EURUSD": {
		At:     time.Now(),
		Symbol: "EURUSD",
		Mode:   models.ModeLive,
		Indicators: models.IndicatorSet{
			Symbol: "EURUSD",
			RSI:    61.2,
		},
	}}
	f := newHandlerFixture(t, nil, snaps)

	_, env := f.get(t, "/api/snapshot?symbol=EURUSD")
	if env.Status != http.StatusOK {
		t.Fatalf("status = %d", env.Status)
	}
	var ev usecase.Evaluation
	decodeData(t, env, &ev)
	if ev.Symbol != "EURUSD" || ev.Indicators.RSI != 61.2 {
		t.Fatalf("evaluation = %+v", ev)
	}
}

func TestSnapshotUnknownSymbol(t *testing.T) {
	f := newHandlerFixture(t, nil, stubSnaps{})
	_, env := f.get(t, "/api/snapshot?symbol=USDJPY")
	if env.Status != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", env.Status)
	}
}

func TestAdvisoriesAppliesDefaultLimit(t *testing.T) {
	f := newHandlerFixture(t, nil, stubSnaps{})
	now := time.Now()
	for i := 0; i < 3; i++ {
		f.journal.entries = append(f.journal.entries, models.JournalEntry{
			ID:        fmt.Sprintf("adv-%d", i),
			Timestamp: now.Add(-time.Duration(i) * time.Minute),
			Symbol:    "EURUSD",
		})
	}

	_, env := f.get(t, "/api/advisories?symbol=EURUSD")
	if env.Status != http.StatusOK {
		t.Fatalf("status = %d", env.Status)
	}
	var list xhttp.ListDataResponse
	decodeData(t, env, &list)
	if list.Total != 3 {
		t.Fatalf("total = %d, want 3", list.Total)
	}
	if f.journal.lastLimit != 20 {
		t.Fatalf("limit = %d, want default 20", f.journal.lastLimit)
	}
}

func TestJournalSummaryAggregates(t *testing.T) {
	f := newHandlerFixture(t, nil, stubSnaps{})
	now := time.Now()
	f.journal.entries = []models.JournalEntry{
		{ID: "a", Timestamp: now.Add(-time.Hour), Symbol: "EURUSD", Trigger: "rsi_extreme", Outcome: models.OutcomeWin, PnL: 10},
		{ID: "b", Timestamp: now.Add(-2 * time.Hour), Symbol: "EURUSD", Trigger: "gap", Outcome: models.OutcomeLoss, PnL: -5},
		{ID: "c", Timestamp: now.Add(-3 * time.Hour), Symbol: "EURUSD", Trigger: "rsi_extreme", Outcome: models.OutcomeDraw},
		{ID: "d", Timestamp: now.Add(-time.Minute), Symbol: "EURUSD", Trigger: "band_breach", Outcome: models.OutcomePending},
	}

	_, env := f.get(t, "/api/journal/summary")
	if env.Status != http.StatusOK {
		t.Fatalf("status = %d", env.Status)
	}
	var sum journalSummary
	decodeData(t, env, &sum)
	if sum.Days != 7 {
		t.Fatalf("days = %d, want default 7", sum.Days)
	}
	if sum.Total != 4 || sum.Wins != 1 || sum.Losses != 1 || sum.Draws != 1 || sum.Pending != 1 {
		t.Fatalf("summary = %+v", sum)
	}
	if sum.WinRate != 50 {
		t.Fatalf("win rate = %.1f, want 50", sum.WinRate)
	}
	if sum.NetPnL != 5 {
		t.Fatalf("net pnl = %.1f, want 5", sum.NetPnL)
	}
	if sum.ByTrigger["rsi_extreme"] != 2 {
		t.Fatalf("by_trigger = %v", sum.ByTrigger)
	}
}

func TestMemorySummarizesLosses(t *testing.T) {
	f := newHandlerFixture(t, nil, stubSnaps{})
	f.journal.entries = []models.JournalEntry{{
		ID:        "a",
		Timestamp: time.Now().Add(-time.Hour),
		Symbol:    "EURUSD",
		Direction: models.DirectionCall,
		Outcome:   models.OutcomeLoss,
	}}

	_, env := f.get(t, "/api/memory")
	if env.Status != http.StatusOK {
		t.Fatalf("status = %d", env.Status)
	}
	var snap models.ErrorMemorySnapshot
	decodeData(t, env, &snap)
	if snap.TotalLosses != 1 {
		t.Fatalf("total losses = %d, want 1", snap.TotalLosses)
	}
}

func TestErrorsServesAggregatedLogWindow(t *testing.T) {
	f := newHandlerFixture(t, nil, stubSnaps{})
	f.log.AddCollector(&logger.CollectionConfig{TimeInterval: time.Hour, CountThreshold: 1000})
	defer f.log.RemoveCollector()

	f.log.Error("chart fetch failed", logger.String("symbol", "EURUSD"))
	f.log.Error("chart fetch failed", logger.String("symbol", "EURUSD"))

	_, env := f.get(t, "/api/errors")
	if env.Status != http.StatusOK {
		t.Fatalf("status = %d", env.Status)
	}
	var entries []logger.AggregatedLogEntry
	decodeData(t, env, &entries)
	if len(entries) != 1 {
		t.Fatalf("expected 1 aggregated entry, got %d", len(entries))
	}
	if entries[0].Count != 2 {
		t.Fatalf("count = %d, want 2", entries[0].Count)
	}
}

func TestOutcomeRecordsResult(t *testing.T) {
	f := newHandlerFixture(t, nil, stubSnaps{})

	_, env := f.post(t, "/api/outcome", `{"id":"adv-1","outcome":"WIN","pnl":12.5}`)
	if env.Status != http.StatusOK {
		t.Fatalf("status = %d, body %+v", env.Status, env.Data)
	}
	if f.recorder.id != "adv-1" || f.recorder.outcome != "WIN" || f.recorder.pnl != 12.5 {
		t.Fatalf("recorded = %+v", f.recorder)
	}
	if f.recorder.action != "reported" {
		t.Fatalf("action = %s, want default reported", f.recorder.action)
	}
}

func TestOutcomeRejectsUnknownVocabulary(t *testing.T) {
	f := newHandlerFixture(t, nil, stubSnaps{})
	_, env := f.post(t, "/api/outcome", `{"id":"adv-1","outcome":"MAYBE"}`)
	if env.Status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", env.Status)
	}
}

func TestOutcomeUnknownAdvisory(t *testing.T) {
	f := newHandlerFixture(t, nil, stubSnaps{})
	f.recorder.err = fmt.Errorf("update outcome: %w", repository.ErrNotFound)

	_, env := f.post(t, "/api/outcome", `{"id":"ghost","outcome":"LOSS","pnl":-3}`)
	if env.Status != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", env.Status)
	}
}
