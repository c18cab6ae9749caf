package usecase

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"FxPulse/internal/domain/models"
	drepo "FxPulse/internal/domain/repository"
	"FxPulse/internal/repository"
	"FxPulse/internal/risk"
	"FxPulse/pkg/logger"
	"FxPulse/pkg/queue"
)

// JobValidateOutcome is the queue message type for delayed validations.
const JobValidateOutcome = "validate_outcome"

// PriceSource yields the most recent observed price for a symbol.
type PriceSource interface {
	LastPrice(symbol string) (float64, bool)
}

// outcomeProbe is the delayed validation payload.
type outcomeProbe struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol"`
	Direction string    `json:"direction"`
	Price     float64   `json:"price"`
	IssuedAt  time.Time `json:"issued_at"`
}

// WatcherConfig bounds outcome validation.
type WatcherConfig struct {
	Delay time.Duration
}

func (c WatcherConfig) withDefaults() WatcherConfig {
	if c.Delay <= 0 {
		c.Delay = 4 * time.Minute
	}
	return c
}

// OutcomeWatcher resolves advisory outcomes. Every dispatched advisory gets a
// delayed job that compares the then-current price against the advisory price
// and notes whether the direction validated. Confirmed results, human or from
// the executions bridge, go through Record and also feed the risk gate.
type OutcomeWatcher struct {
	cfg     WatcherConfig
	journal drepo.Journal
	risk    *risk.Gate
	prices  PriceSource
	queue   queue.QueueService
	metrics drepo.Metrics
	log     *logger.Logger
}

// NewOutcomeWatcher creates the watcher.
func NewOutcomeWatcher(
	cfg WatcherConfig,
	journal drepo.Journal,
	riskGate *risk.Gate,
	prices PriceSource,
	q queue.QueueService,
	metrics drepo.Metrics,
	log *logger.Logger,
) *OutcomeWatcher {
	return &OutcomeWatcher{
		cfg:     cfg.withDefaults(),
		journal: journal,
		risk:    riskGate,
		prices:  prices,
		queue:   q,
		metrics: metrics,
		log:     log,
	}
}

// Schedule queues the delayed validation for an emitted advisory.
func (w *OutcomeWatcher) Schedule(ctx context.Context, adv *models.Advisory) error {
	probe := outcomeProbe{
		ID:        adv.ID,
		Symbol:    adv.Symbol,
		Direction: adv.Direction,
		Price:     adv.Price,
		IssuedAt:  adv.Time,
	}
	return w.queue.PublishMessageIn(ctx, JobValidateOutcome, probe, w.cfg.Delay)
}

// Name implements queue.Job.
func (w *OutcomeWatcher) Name() string { return "outcome-validator" }

// Type implements queue.Job.
func (w *OutcomeWatcher) Type() string { return JobValidateOutcome }

// Handle runs the delayed validation. The result is journal-only; the risk
// gate counters move on confirmed trades, not on price probes.
func (w *OutcomeWatcher) Handle(ctx context.Context, payload interface{}) error {
	probe, err := queue.ParsePayload[outcomeProbe](payload)
	if err != nil {
		return fmt.Errorf("parse outcome probe: %w", err)
	}
	if probe.Direction != models.DirectionCall && probe.Direction != models.DirectionPut {
		w.log.Debug("probe without actionable direction dropped",
			logger.String("id", probe.ID))
		return nil
	}

	current, ok := w.prices.LastPrice(probe.Symbol)
	if !ok {
		return fmt.Errorf("no current price for %s", probe.Symbol)
	}

	outcome := models.OutcomeDraw
	switch {
	case probe.Direction == models.DirectionCall && current > probe.Price:
		outcome = models.OutcomeWin
	case probe.Direction == models.DirectionCall && current < probe.Price:
		outcome = models.OutcomeLoss
	case probe.Direction == models.DirectionPut && current < probe.Price:
		outcome = models.OutcomeWin
	case probe.Direction == models.DirectionPut && current > probe.Price:
		outcome = models.OutcomeLoss
	}

	note := fmt.Sprintf("auto validation: %.5f -> %.5f after %s",
		probe.Price, current, w.cfg.Delay)
	err = w.journal.UpdateOutcome(ctx, probe.ID, "", outcome, 0, note)
	if repository.IsNotFound(err) {
		w.log.Warn("validated advisory no longer in journal",
			logger.String("id", probe.ID))
		return nil
	}
	if err != nil {
		w.metrics.RecordError("outcome_validate")
		return fmt.Errorf("record validation: %w", err)
	}

	w.log.Info("advisory validated",
		logger.String("id", probe.ID),
		logger.String("symbol", probe.Symbol),
		logger.String("direction", probe.Direction),
		logger.String("outcome", outcome))
	return nil
}

// Record stores a confirmed trade result and updates the risk counters.
func (w *OutcomeWatcher) Record(ctx context.Context, id, action, outcome string, pnl float64, notes string) error {
	outcome = strings.ToUpper(strings.TrimSpace(outcome))
	switch outcome {
	case models.OutcomeWin, models.OutcomeLoss, models.OutcomeDraw, models.OutcomeExpired:
	default:
		return fmt.Errorf("outcome %q invalid", outcome)
	}

	if err := w.journal.UpdateOutcome(ctx, id, action, outcome, pnl, notes); err != nil {
		return fmt.Errorf("update outcome: %w", err)
	}

	amount := pnl
	if outcome == models.OutcomeLoss {
		amount = math.Abs(pnl)
	}
	w.risk.RecordResult(time.Now(), outcome, amount)

	w.log.Info("trade result recorded",
		logger.String("id", id),
		logger.String("outcome", outcome),
		logger.Float64("pnl", pnl))
	return nil
}

var _ queue.Job = (*OutcomeWatcher)(nil)
