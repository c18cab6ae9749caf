package decision

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"FxPulse/internal/domain/models"
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

func chatReply(content string) string {
	payload := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": content}},
		},
	}
	b, _ := json.Marshal(payload)
	return string(b)
}

func sampleRequest() *models.DecisionRequest {
	return &models.DecisionRequest{
		Symbol:      "EURUSD",
		Price:       1.08452,
		MarketState: string(models.ModeLive),
		Indicators: models.IndicatorSet{
			RSI:        28.4,
			EMAFast:    1.08430,
			EMASlow:    1.08510,
			BBPosition: 0.08,
			VWAPSignal: -0.4,
		},
		Regime: models.RegimeLabel{
			PrimaryTrend: models.TrendBearish,
			Volatility:   models.LevelMedium,
			Phase:        models.PhaseMarkdown,
		},
		Score: models.ProbabilityScore{
			Total:      38.2,
			Direction:  models.ScoreBearish,
			Confidence: 71.0,
		},
		MemorySummary: "error memory: 2 losses in 24h",
		Penalty:       10,
	}
}

func TestDecideParsesCleanReply(t *testing.T) {
	var gotPath, gotPrompt string
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(gotReq.Messages) == 2 {
			gotPrompt = gotReq.Messages[1].Content
		}
		w.Write([]byte(chatReply(`{"direction": "DOWN", "confidence": 72, "reason": "bearish continuation"}`)))
	}))
	defer srv.Close()

	c := New(Config{URL: srv.URL, Model: "local-7b"}, testLogger(t))
	res, err := c.Decide(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if res.Fallback {
		t.Fatal("clean reply must not be marked fallback")
	}
	if res.Direction != models.DirectionDown || res.Confidence != 72 {
		t.Fatalf("verdict = %+v", res)
	}
	if res.Reason != "bearish continuation" {
		t.Fatalf("reason = %q", res.Reason)
	}

	if gotPath != "/v1/chat/completions" {
		t.Fatalf("path = %s", gotPath)
	}
	if gotReq.Model != "local-7b" || gotReq.Temperature != 0 {
		t.Fatalf("request = %+v", gotReq)
	}
	for _, want := range []string{"EURUSD", "1.08452", "rsi: 28.4", "error memory: 2 losses", "confidence_penalty: -10%"} {
		if !strings.Contains(gotPrompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, gotPrompt)
		}
	}
}

func TestDecideStripsFencesAndProse(t *testing.T) {
	content := "Here is my estimate:\n```json\n{\"direction\": \"up\", \"confidence\": 250, \"reason\": \"momentum\"}\n```\nGood luck."
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(chatReply(content)))
	}))
	defer srv.Close()

	c := New(Config{URL: srv.URL, Model: "m"}, testLogger(t))
	res, err := c.Decide(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if res.Direction != models.DirectionUp {
		t.Fatalf("direction = %s, want UP from lowercase reply", res.Direction)
	}
	if res.Confidence != 100 {
		t.Fatalf("confidence = %v, want clamp to 100", res.Confidence)
	}
}

func TestDecideFallsBackOnTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := New(Config{URL: srv.URL, Model: "m"}, testLogger(t))
	res, err := c.Decide(context.Background(), sampleRequest())
	if err == nil {
		t.Fatal("expected transport error")
	}
	if !res.Fallback || res.Direction != models.DirectionNeutral || res.Confidence != 0 {
		t.Fatalf("fallback = %+v", res)
	}
}

func TestDecideFallsBackOnGarbage(t *testing.T) {
	cases := []string{
		"I cannot help with that.",
		`{"direction": "SIDEWAYS", "confidence": 50, "reason": "x"}`,
		`{"direction": }`,
	}
	for _, content := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(chatReply(content)))
		}))
		c := New(Config{URL: srv.URL, Model: "m"}, testLogger(t))
		res, err := c.Decide(context.Background(), sampleRequest())
		srv.Close()
		if err == nil {
			t.Fatalf("content %q: expected error", content)
		}
		if !res.Fallback || res.Direction != models.DirectionNeutral {
			t.Fatalf("content %q: fallback = %+v", content, res)
		}
	}
}

func TestHealthyProbesModels(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Write([]byte(`{"data": []}`))
	}))
	defer srv.Close()

	c := New(Config{URL: srv.URL + "/", Model: "m"}, testLogger(t))
	if !c.Healthy(context.Background()) {
		t.Fatal("expected healthy")
	}
	if path != "/v1/models" {
		t.Fatalf("path = %s", path)
	}

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()
	c2 := New(Config{URL: down.URL, Model: "m"}, testLogger(t))
	if c2.Healthy(context.Background()) {
		t.Fatal("503 must report unhealthy")
	}
}

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{`{"a":1}`, `{"a":1}`, true},
		{"```json\n{\"a\":1}\n```", "\n{\"a\":1}\n", true},
		{"noise {\"a\":{\"b\":2}} trailing", `{"a":{"b":2}}`, true},
		{"no object here", "", false},
		{"}{", "", false},
	}
	for _, tc := range cases {
		got, ok := extractJSON(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("extractJSON(%q) = %q, %v; want %q, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestPickEndpointSkipsDeadCandidates(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": []}`))
	}))
	defer up.Close()

	got := PickEndpoint(context.Background(), []string{down.URL, up.URL}, time.Second, testLogger(t))
	if got != up.URL {
		t.Fatalf("picked %s, want %s", got, up.URL)
	}
}

func TestPickEndpointFallsBackToFirst(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()

	got := PickEndpoint(context.Background(), []string{down.URL}, time.Second, testLogger(t))
	if got != down.URL {
		t.Fatalf("picked %s, want first candidate", got)
	}
	if got := PickEndpoint(context.Background(), nil, time.Second, testLogger(t)); got != "" {
		t.Fatalf("no candidates should give empty URL, got %q", got)
	}
}
