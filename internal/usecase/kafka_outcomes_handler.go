package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	drepo "FxPulse/internal/domain/repository"
	pkgkafka "FxPulse/pkg/kafka"
)

// KafkaOutcomesHandler consumes execution results published by the trading
// side and records them as confirmed outcomes.
type KafkaOutcomesHandler struct {
	topic   string
	watcher *OutcomeWatcher
	journal drepo.Journal
	metrics drepo.Metrics
}

func NewKafkaOutcomesHandler(topic string, watcher *OutcomeWatcher, journal drepo.Journal, metrics drepo.Metrics) *KafkaOutcomesHandler {
	return &KafkaOutcomesHandler{topic: topic, watcher: watcher, journal: journal, metrics: metrics}
}

func (h *KafkaOutcomesHandler) Topic() string { return h.topic }

// incoming message schema: {id, symbol, outcome, pnl, notes}
func (h *KafkaOutcomesHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		ID      string  `json:"id"`
		Symbol  string  `json:"symbol"`
		Outcome string  `json:"outcome"`
		PnL     float64 `json:"pnl"`
		Notes   string  `json:"notes"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("outcomes_unmarshal")
		return err
	}

	// Executions without an advisory id settle against the newest entry
	// for the symbol.
	if m.ID == "" {
		if m.Symbol == "" {
			h.metrics.RecordError("outcomes_unaddressed")
			return fmt.Errorf("outcome event carries neither id nor symbol")
		}
		entries, err := h.journal.Recent(ctx, m.Symbol, 1)
		if err != nil {
			h.metrics.RecordError("outcomes_lookup")
			return fmt.Errorf("resolve latest advisory for %s: %w", m.Symbol, err)
		}
		if len(entries) == 0 {
			h.metrics.RecordError("outcomes_unaddressed")
			return fmt.Errorf("no journal entry for %s to settle", m.Symbol)
		}
		m.ID = entries[0].ID
	}

	start := time.Now()
	if err := h.watcher.Record(ctx, m.ID, "executed", m.Outcome, m.PnL, m.Notes); err != nil {
		h.metrics.RecordError("outcomes_record")
		return err
	}
	h.metrics.RecordLatency("outcome_record", time.Since(start).Seconds())
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaOutcomesHandler)(nil)
