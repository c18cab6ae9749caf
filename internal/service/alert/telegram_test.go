package alert

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"FxPulse/internal/domain/models"
)

func advisory() *models.Advisory {
	return &models.Advisory{
		ID:           "a1",
		Time:         time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC),
		Symbol:       "EURUSD",
		Direction:    models.DirectionPut,
		Score:        38.2,
		Confidence:   68,
		Reason:       "bearish continuation under vwap",
		Price:        1.08452,
		MarketState:  string(models.ModeLive),
		Trigger:      "band_breach",
		Penalty:      10,
		RiskApproved: true,
	}
}

func TestTelegramNotifySendsMessage(t *testing.T) {
	var path string
	var payload map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		json.NewDecoder(r.Body).Decode(&payload)
		w.Write([]byte(`{"ok": true}`))
	}))
	defer srv.Close()

	s := NewTelegram(TelegramConfig{BotToken: "tok123", ChatID: "-99", BaseURL: srv.URL})
	if err := s.Notify(context.Background(), advisory()); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	if path != "/bottok123/sendMessage" {
		t.Fatalf("path = %s", path)
	}
	if payload["chat_id"] != "-99" || payload["parse_mode"] != "Markdown" {
		t.Fatalf("payload = %v", payload)
	}
	text, _ := payload["text"].(string)
	for _, want := range []string{"PUT EURUSD", "1.08452", "confidence 68%", "band_breach", "memory penalty -10%", "risk: approved"} {
		if !strings.Contains(text, want) {
			t.Fatalf("text missing %q:\n%s", want, text)
		}
	}
}

func TestTelegramNotifyReportsRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok": false, "description": "chat not found"}`))
	}))
	defer srv.Close()

	s := NewTelegram(TelegramConfig{BotToken: "tok", ChatID: "1", BaseURL: srv.URL})
	err := s.Notify(context.Background(), advisory())
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Fatalf("err = %v", err)
	}
}

func TestTelegramDisabledWithoutCredentials(t *testing.T) {
	s := NewTelegram(TelegramConfig{})
	if s.Enabled() {
		t.Fatal("empty credentials must disable the sink")
	}
	// must not attempt any network call
	if err := s.Notify(context.Background(), advisory()); err != nil {
		t.Fatalf("disabled Notify: %v", err)
	}
}

func TestFormatBlockedAdvisory(t *testing.T) {
	a := advisory()
	a.RiskApproved = false
	a.RiskReason = "confidence below floor (55.0%)"
	text := formatAdvisory(a)
	if !strings.Contains(text, "risk: blocked (confidence below floor") {
		t.Fatalf("text = %s", text)
	}
}
