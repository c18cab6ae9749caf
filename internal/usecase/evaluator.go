package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"FxPulse/internal/domain/models"
	drepo "FxPulse/internal/domain/repository"
	"FxPulse/internal/domain/service"
	"FxPulse/internal/feed"
	"FxPulse/internal/gate"
	"FxPulse/internal/memory"
	"FxPulse/internal/quant"
	"FxPulse/internal/risk"
	"FxPulse/pkg/logger"
)

// EvaluatorConfig bounds one evaluation cycle.
type EvaluatorConfig struct {
	MinCandles      int           // history floor before the gate is consulted
	DecisionTimeout time.Duration // budget for the external decision call
}

func (c EvaluatorConfig) withDefaults() EvaluatorConfig {
	if c.MinCandles <= 0 {
		c.MinCandles = 20
	}
	if c.DecisionTimeout <= 0 {
		c.DecisionTimeout = 45 * time.Second
	}
	return c
}

// Evaluation is the full output of one cycle. Advisory is nil when the gate
// slept or the history was below the evaluation floor.
type Evaluation struct {
	At         time.Time               `json:"at"`
	Symbol     string                  `json:"symbol"`
	Mode       models.FeedMode         `json:"mode"`
	Indicators models.IndicatorSet     `json:"indicators"`
	Regime     models.RegimeLabel      `json:"regime"`
	Score      models.ProbabilityScore `json:"score"`
	Gate       gate.Decision           `json:"gate"`
	Advisory   *models.Advisory        `json:"advisory,omitempty"`
}

// Evaluator runs one feed snapshot through indicators, regime, score and the
// signal gate; when the gate wakes it continues through the decision service,
// the error memory and the risk gate to a final advisory.
type Evaluator struct {
	cfg        EvaluatorConfig
	indicators *quant.IndicatorEngine
	scorer     *quant.ScoreEngine
	gate       *gate.SignalGate
	memory     *memory.ErrorMemory
	risk       *risk.Gate
	decision   service.DecisionService
	metrics    drepo.Metrics
	log        *logger.Logger
}

// NewEvaluator wires the pipeline stages.
func NewEvaluator(
	cfg EvaluatorConfig,
	indicators *quant.IndicatorEngine,
	scorer *quant.ScoreEngine,
	signalGate *gate.SignalGate,
	errMemory *memory.ErrorMemory,
	riskGate *risk.Gate,
	decision service.DecisionService,
	metrics drepo.Metrics,
	log *logger.Logger,
) *Evaluator {
	return &Evaluator{
		cfg:        cfg.withDefaults(),
		indicators: indicators,
		scorer:     scorer,
		gate:       signalGate,
		memory:     errMemory,
		risk:       riskGate,
		decision:   decision,
		metrics:    metrics,
		log:        log,
	}
}

// Evaluate processes one snapshot. It always returns the computed indicators
// and score; the advisory part only exists when the gate woke the pipeline.
func (e *Evaluator) Evaluate(ctx context.Context, now time.Time, view feed.View) *Evaluation {
	start := time.Now()

	ind := e.indicators.Compute(view.Symbol, view.Candles)
	regime := quant.ClassifyRegime(ind)
	score := e.scorer.Score(ind, regime)
	e.metrics.RecordScore(view.Symbol, score.Total, score.Confidence)

	ev := &Evaluation{
		At:         now,
		Symbol:     view.Symbol,
		Mode:       view.Mode,
		Indicators: ind,
		Regime:     regime,
		Score:      score,
	}
	ev.Gate.Trigger = gate.TriggerNone

	if len(view.Candles) < e.cfg.MinCandles {
		e.log.Debug("history below evaluation floor",
			logger.String("symbol", view.Symbol),
			logger.Int("candles", len(view.Candles)),
			logger.Int("floor", e.cfg.MinCandles))
		return ev
	}

	if view.Mode == models.ModeLive {
		ev.Gate = e.gate.EvaluateLive(ind)
	} else {
		ev.Gate = e.gate.EvaluateDegraded(ind, models.Closes(view.Candles), view.GapPct)
	}
	if !ev.Gate.Wake {
		return ev
	}

	// Memory context goes into the prompt before the proposal exists, so the
	// preliminary penalty is computed without a direction.
	snap := e.memory.Snapshot(ctx, now)
	pre := e.memory.Adjust(snap, "", string(view.Mode), ev.Gate.Trigger)

	req := &models.DecisionRequest{
		Symbol:        view.Symbol,
		Price:         view.LastPrice,
		MarketState:   string(view.Mode),
		Gap:           view.GapPct,
		Indicators:    ind,
		Regime:        regime,
		Score:         score,
		MemorySummary: snap.Summary,
		Penalty:       pre.Penalty,
	}

	dctx, cancel := context.WithTimeout(ctx, e.cfg.DecisionTimeout)
	res, err := e.decision.Decide(dctx, req)
	cancel()
	if err != nil {
		e.metrics.RecordError("decision")
		e.log.Warn("decision degraded to fallback",
			logger.String("symbol", view.Symbol), logger.Error(err))
	}
	res.Direction = mapDirection(res.Direction)

	adj := e.memory.Adjust(snap, res.Direction, string(view.Mode), ev.Gate.Trigger)
	res = memory.Apply(res, adj)
	e.metrics.RecordPenalty(view.Symbol, adj.Penalty)

	verdict := e.risk.Check(now, res.Direction, res.Confidence, ind.VolPct)

	ev.Advisory = &models.Advisory{
		ID:           uuid.NewString(),
		Time:         now,
		Symbol:       view.Symbol,
		Direction:    res.Direction,
		Score:        score.Total,
		Confidence:   res.Confidence,
		Reason:       res.Reason,
		Price:        view.LastPrice,
		MarketState:  string(view.Mode),
		Trigger:      ev.Gate.Trigger,
		Penalty:      adj.Penalty,
		RiskApproved: verdict.Approved,
		RiskReason:   verdict.Reason,
		RiskSeverity: verdict.Severity,
	}

	e.log.Info("advisory evaluated",
		logger.String("symbol", view.Symbol),
		logger.String("direction", res.Direction),
		logger.Float64("confidence", res.Confidence),
		logger.String("trigger", ev.Gate.Trigger),
		logger.Bool("risk_approved", verdict.Approved),
		logger.Bool("decision_fallback", res.Fallback))
	e.metrics.RecordLatency("evaluate", time.Since(start).Seconds())
	return ev
}

// mapDirection converts the decision vocabulary to the advisory one.
func mapDirection(dir string) string {
	switch dir {
	case models.DirectionUp:
		return models.DirectionCall
	case models.DirectionDown:
		return models.DirectionPut
	default:
		return models.DirectionNeutral
	}
}
