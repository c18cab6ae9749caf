package repository

import (
	"context"
	"time"

	"FxPulse/internal/domain/models"
)

// HistoryProvider returns an ordered candle window from the authoritative
// source. An empty slice is a valid, non-fatal response.
type HistoryProvider interface {
	History(ctx context.Context, symbol string, interval Interval, span time.Duration) ([]models.Candle, error)
}

// SampleProvider supplies one quality-tagged price sample on demand. It must
// never block indefinitely; callers tolerate failure by synthesizing a sample.
type SampleProvider interface {
	Connect(ctx context.Context) error
	Next(ctx context.Context, symbol string) (models.PriceSample, error)
	IsConnected() bool
	Close() error
}

// ContextStore persists per-symbol session context across mode switches and
// process restarts.
type ContextStore interface {
	SaveSessionContext(symbol string, candles []models.Candle) error
	LoadSessionContext(symbol string) ([]models.Candle, error)
	SaveDegradedSnapshot(symbol string, candles []models.Candle) error
	LoadDegradedSnapshot(symbol string) ([]models.Candle, error)
}

// RiskStore persists the daily risk state. Load returns nil when no state
// has been written yet.
type RiskStore interface {
	Load() (*models.DailyRiskState, error)
	Save(state *models.DailyRiskState) error
}

// Journal is the append-only advisory outcome log.
type Journal interface {
	Append(ctx context.Context, e *models.JournalEntry) error
	UpdateOutcome(ctx context.Context, id, action, outcome string, pnl float64, notes string) error
	Recent(ctx context.Context, symbol string, limit int) ([]models.JournalEntry, error)
	Window(ctx context.Context, since time.Time) ([]models.JournalEntry, error)
	Prune(ctx context.Context, keep time.Duration) (int, error)
	Close() error
}

// AdvisoryPublisher pushes emitted advisories to an external bus.
type AdvisoryPublisher interface {
	Publish(ctx context.Context, a *models.Advisory) error
	Close() error
}

// Metrics records operational measurements.
type Metrics interface {
	RecordMessageSent(sink, symbol string)
	RecordError(kind string)
	RecordLastPrice(symbol string, price float64)
	RecordLatency(op string, seconds float64)
	RecordFeedMode(symbol string, mode models.FeedMode)
	RecordBufferDepth(symbol, buffer string, depth int)
	RecordScore(symbol string, score, confidence float64)
	RecordPenalty(symbol string, penalty int)
}
