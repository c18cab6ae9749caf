package capture

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

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

func TestNextReturnsLatestStoredSample(t *testing.T) {
	c := New(Config{StaleAfter: time.Minute}, testLogger(t))

	c.store(frame{Symbol: "EURUSD", Price: 1.0845, Quality: "VISUAL_LIVE", TS: time.Now().UnixMilli()})
	c.store(frame{Symbol: "EURUSD", Price: 1.0846, Quality: "VISUAL_LIVE", TS: time.Now().UnixMilli()})

	s, err := c.Next(context.Background(), "EURUSD")
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if s.Price != 1.0846 || s.Quality != models.QualityVisualLive {
		t.Fatalf("got %+v, want the newer frame", s)
	}
}

func TestNextRejectsMissingAndStale(t *testing.T) {
	c := New(Config{StaleAfter: 5 * time.Second}, testLogger(t))

	if _, err := c.Next(context.Background(), "EURUSD"); err == nil {
		t.Fatalf("expected error for unknown symbol")
	}

	c.store(frame{Symbol: "EURUSD", Price: 1.0845, TS: time.Now().Add(-time.Minute).UnixMilli()})
	if _, err := c.Next(context.Background(), "EURUSD"); err == nil {
		t.Fatalf("expected error for stale sample")
	}
}

func TestParseQualityDefaultsToVisualLive(t *testing.T) {
	if q := parseQuality("VISUAL_SYNTHETIC"); q != models.QualityVisualSynth {
		t.Fatalf("got %s", q)
	}
	if q := parseQuality("garbage"); q != models.QualityVisualLive {
		t.Fatalf("unknown quality mapped to %s, want VISUAL_LIVE", q)
	}
}

func TestConnectWatchesAndReceivesFrames(t *testing.T) {
	upgrader := websocket.Upgrader{}
	watched := make(chan string, 2)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		var watch struct {
			Type   string `json:"type"`
			Symbol string `json:"symbol"`
		}
		if err := conn.ReadJSON(&watch); err != nil {
			t.Errorf("read watch: %v", err)
			return
		}
		watched <- watch.Symbol

		f := frame{Type: "frame", Symbol: "EURUSD", Price: 1.08512, Quality: "VISUAL_LIVE", TS: time.Now().UnixMilli()}
		if err := conn.WriteJSON(f); err != nil {
			return
		}
		// Hold the connection open until the client walks away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	c := New(Config{
		URL:     "ws" + strings.TrimPrefix(srv.URL, "http"),
		Symbols: []string{"EURUSD"},
	}, testLogger(t))
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer c.Close()

	select {
	case sym := <-watched:
		if sym != "EURUSD" {
			t.Fatalf("watched %q", sym)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("server never saw the watch message")
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		s, err := c.Next(context.Background(), "EURUSD")
		if err == nil {
			if s.Price != 1.08512 {
				t.Fatalf("price = %v", s.Price)
			}
			if !c.IsConnected() {
				t.Fatalf("expected connected after successful read")
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("no frame delivered: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
