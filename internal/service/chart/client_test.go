package chart

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"FxPulse/internal/domain/models"
	drepo "FxPulse/internal/domain/repository"
	"FxPulse/pkg/cache"
	"FxPulse/pkg/logger"
)

const chartPayload = `{
  "chart": {
    "result": [{
      "timestamp": [1770000000, 1770000060, 1770000120],
      "indicators": {
        "quote": [{
          "open":   [1.0841, 1.0843, null],
          "high":   [1.0845, 1.0847, null],
          "low":    [1.0840, 1.0842, null],
          "close":  [1.0843, 1.0846, null],
          "volume": [120, 95, null]
        }]
      }
    }],
    "error": null
  }
}`

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func TestHistoryParsesChartPayload(t *testing.T) {
	var gotPath, gotUA, gotRange, gotInterval string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUA = r.Header.Get("User-Agent")
		gotRange = r.URL.Query().Get("range")
		gotInterval = r.URL.Query().Get("interval")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(chartPayload))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL}, cache.NewMemoryCache(), testLogger(t))
	candles, err := c.History(context.Background(), "EURUSD", drepo.Interval1m, 24*time.Hour)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if gotPath != "/v8/finance/chart/EURUSD=X" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotUA == "" {
		t.Fatalf("missing user agent")
	}
	if gotRange != "1d" || gotInterval != "1m" {
		t.Fatalf("query = range %q interval %q", gotRange, gotInterval)
	}

	// The null row is dropped.
	if len(candles) != 2 {
		t.Fatalf("candles = %d, want 2", len(candles))
	}
	first := candles[0]
	if first.Symbol != "EURUSD" || first.Close != 1.0843 || first.Volume != 120 {
		t.Fatalf("first candle = %+v", first)
	}
	if first.Source != models.QualityAuthoritative {
		t.Fatalf("source = %s", first.Source)
	}
	if !first.Timestamp.Equal(time.Unix(1770000000, 0)) {
		t.Fatalf("timestamp = %v", first.Timestamp)
	}
}

func TestHistoryFallsBackToCachedWindow(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			http.Error(w, "upstream down", http.StatusBadGateway)
			return
		}
		w.Write([]byte(chartPayload))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL}, cache.NewMemoryCache(), testLogger(t))
	ctx := context.Background()

	if _, err := c.History(ctx, "EURUSD", drepo.Interval1m, 24*time.Hour); err != nil {
		t.Fatalf("warm fetch: %v", err)
	}

	fail.Store(true)
	candles, err := c.History(ctx, "EURUSD", drepo.Interval1m, 24*time.Hour)
	if err != nil {
		t.Fatalf("fallback should not error: %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("cached candles = %d, want 2", len(candles))
	}
	for _, cd := range candles {
		if cd.Source != models.QualityCached {
			t.Fatalf("fallback source = %s, want CACHED", cd.Source)
		}
	}
}

func TestHistoryErrorWithoutCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL}, cache.NewMemoryCache(), testLogger(t))
	if _, err := c.History(context.Background(), "EURUSD", drepo.Interval1m, 24*time.Hour); err == nil {
		t.Fatalf("expected error with cold cache")
	}
}

func TestHistoryThrottleServesCache(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(chartPayload))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Burst: 1, RefillPerSec: 0.001}, cache.NewMemoryCache(), testLogger(t))
	ctx := context.Background()

	if _, err := c.History(ctx, "EURUSD", drepo.Interval1m, 24*time.Hour); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	candles, err := c.History(ctx, "EURUSD", drepo.Interval1m, 24*time.Hour)
	if err != nil {
		t.Fatalf("throttled call should serve cache: %v", err)
	}
	if candles[0].Source != models.QualityCached {
		t.Fatalf("throttled source = %s, want CACHED", candles[0].Source)
	}
	if hits.Load() != 1 {
		t.Fatalf("server hits = %d, want 1", hits.Load())
	}
}

func TestSymbolMapping(t *testing.T) {
	c := New(Config{SymbolMap: map[string]string{"GOLD": "GC=F"}}, cache.NewMemoryCache(), testLogger(t))
	if got := c.mapSymbol("GOLD"); got != "GC=F" {
		t.Fatalf("mapped = %q", got)
	}
	if got := c.mapSymbol("EURUSD"); got != "EURUSD=X" {
		t.Fatalf("fx pair = %q", got)
	}
	if got := c.mapSymbol("BTC-USD"); got != "BTC-USD" {
		t.Fatalf("passthrough = %q", got)
	}
}

func TestRangeForSpan(t *testing.T) {
	cases := []struct {
		span time.Duration
		want string
	}{
		{time.Hour, "1d"},
		{24 * time.Hour, "1d"},
		{3 * 24 * time.Hour, "5d"},
		{20 * 24 * time.Hour, "1mo"},
		{60 * 24 * time.Hour, "3mo"},
	}
	for _, tc := range cases {
		if got := rangeFor(tc.span); got != tc.want {
			t.Fatalf("rangeFor(%v) = %q, want %q", tc.span, got, tc.want)
		}
	}
}
