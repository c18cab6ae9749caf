package usecase

import (
	"context"
	"sync"
	"time"

	"FxPulse/internal/domain/models"
	drepo "FxPulse/internal/domain/repository"
	"FxPulse/internal/feed"
	mid "FxPulse/internal/middleware"
	"FxPulse/pkg/logger"
)

// FeedSet indexes the per-symbol feed controllers.
type FeedSet struct {
	order  []string
	byName map[string]*feed.Controller
}

// NewFeedSet builds the index. Symbol order is preserved for status output.
func NewFeedSet(controllers []*feed.Controller) *FeedSet {
	s := &FeedSet{byName: make(map[string]*feed.Controller, len(controllers))}
	for _, c := range controllers {
		s.order = append(s.order, c.Symbol())
		s.byName[c.Symbol()] = c
	}
	return s
}

// Get returns the controller for a symbol.
func (s *FeedSet) Get(symbol string) (*feed.Controller, bool) {
	c, ok := s.byName[symbol]
	return c, ok
}

// Symbols lists the tracked symbols in configuration order.
func (s *FeedSet) Symbols() []string {
	return append([]string(nil), s.order...)
}

// Each visits every controller in order.
func (s *FeedSet) Each(fn func(*feed.Controller)) {
	for _, sym := range s.order {
		fn(s.byName[sym])
	}
}

// Views snapshots every controller in order.
func (s *FeedSet) Views() []feed.View {
	out := make([]feed.View, 0, len(s.order))
	for _, sym := range s.order {
		out = append(out, s.byName[sym].View())
	}
	return out
}

// LastPrice reports the most recent observed price for a symbol.
func (s *FeedSet) LastPrice(symbol string) (float64, bool) {
	c, ok := s.byName[symbol]
	if !ok {
		return 0, false
	}
	p := c.View().LastPrice
	return p, p > 0
}

// AdvisorConfig drives the evaluation loop and the alert thresholds.
type AdvisorConfig struct {
	Interval      time.Duration
	AlertLive     float64
	AlertDegraded float64
}

func (c AdvisorConfig) withDefaults() AdvisorConfig {
	if c.Interval <= 0 {
		c.Interval = 30 * time.Second
	}
	if c.AlertLive <= 0 {
		c.AlertLive = 70
	}
	if c.AlertDegraded <= 0 {
		c.AlertDegraded = 65
	}
	return c
}

// Advisor runs the evaluation ticker per symbol and routes the advisories
// that clear the alert threshold: journal, dispatch pipeline, optional Kafka,
// delayed outcome validation.
type Advisor struct {
	cfg       AdvisorConfig
	feeds     *FeedSet
	eval      *Evaluator
	journal   drepo.Journal
	pipe      *mid.DispatchPipeline
	publisher drepo.AdvisoryPublisher // nil when Kafka alerts are disabled
	watcher   *OutcomeWatcher
	metrics   drepo.Metrics
	log       *logger.Logger

	mu   sync.RWMutex
	last map[string]*Evaluation

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewAdvisor wires the loop.
func NewAdvisor(
	cfg AdvisorConfig,
	feeds *FeedSet,
	eval *Evaluator,
	journal drepo.Journal,
	pipe *mid.DispatchPipeline,
	publisher drepo.AdvisoryPublisher,
	watcher *OutcomeWatcher,
	metrics drepo.Metrics,
	log *logger.Logger,
) *Advisor {
	return &Advisor{
		cfg:       cfg.withDefaults(),
		feeds:     feeds,
		eval:      eval,
		journal:   journal,
		pipe:      pipe,
		publisher: publisher,
		watcher:   watcher,
		metrics:   metrics,
		log:       log,
		last:      make(map[string]*Evaluation),
	}
}

// Start launches one evaluation loop per symbol.
func (a *Advisor) Start(ctx context.Context) {
	ctx, a.cancel = context.WithCancel(ctx)
	a.pipe.Start(ctx)
	a.feeds.Each(func(c *feed.Controller) {
		a.wg.Add(1)
		go a.run(ctx, c)
	})
	a.log.Info("advisor started",
		logger.Strings("symbols", a.feeds.Symbols()),
		logger.Duration("interval", a.cfg.Interval))
}

// Stop halts the loops and drains the dispatch pipeline.
func (a *Advisor) Stop() {
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()
	a.pipe.Stop()
}

func (a *Advisor) run(ctx context.Context, c *feed.Controller) {
	defer a.wg.Done()
	ticker := time.NewTicker(a.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			a.evaluateOnce(ctx, now, c)
		}
	}
}

func (a *Advisor) evaluateOnce(ctx context.Context, now time.Time, c *feed.Controller) {
	view := c.View()
	ev := a.eval.Evaluate(ctx, now, view)

	a.mu.Lock()
	a.last[view.Symbol] = ev
	a.mu.Unlock()

	if ev.Advisory != nil {
		a.emit(ctx, ev.Advisory)
	}
}

// LastEvaluation returns the most recent cycle output for a symbol.
func (a *Advisor) LastEvaluation(symbol string) (*Evaluation, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	ev, ok := a.last[symbol]
	return ev, ok
}

func (a *Advisor) emit(ctx context.Context, adv *models.Advisory) {
	threshold := a.cfg.AlertLive
	if adv.MarketState == string(models.ModeDegraded) {
		threshold = a.cfg.AlertDegraded
	}
	if adv.Direction == models.DirectionNeutral || adv.Confidence < threshold {
		a.log.Debug("advisory below alert threshold",
			logger.String("symbol", adv.Symbol),
			logger.String("direction", adv.Direction),
			logger.Float64("confidence", adv.Confidence),
			logger.Float64("threshold", threshold))
		return
	}

	if err := a.journal.Append(ctx, journalFromAdvisory(adv)); err != nil {
		a.metrics.RecordError("journal_append")
		a.log.Error("journal append failed",
			logger.String("id", adv.ID), logger.Error(err))
	}

	if !adv.RiskApproved {
		a.log.Warn("advisory blocked by risk gate",
			logger.String("symbol", adv.Symbol),
			logger.String("reason", adv.RiskReason),
			logger.String("severity", adv.RiskSeverity))
		return
	}

	if err := a.pipe.Dispatch(ctx, adv); err != nil {
		a.log.Warn("advisory dispatch incomplete",
			logger.String("id", adv.ID), logger.Error(err))
	}
	if a.publisher != nil {
		if err := a.publisher.Publish(ctx, adv); err != nil {
			a.metrics.RecordError("kafka_publish")
			a.log.Warn("advisory publish failed",
				logger.String("id", adv.ID), logger.Error(err))
		}
	}
	if a.watcher != nil {
		if err := a.watcher.Schedule(ctx, adv); err != nil {
			a.log.Warn("outcome validation not scheduled",
				logger.String("id", adv.ID), logger.Error(err))
		}
	}
}

func journalFromAdvisory(adv *models.Advisory) *models.JournalEntry {
	return &models.JournalEntry{
		ID:               adv.ID,
		Timestamp:        adv.Time,
		Symbol:           adv.Symbol,
		Direction:        adv.Direction,
		Score:            adv.Score,
		Confidence:       adv.Confidence,
		MarketState:      adv.MarketState,
		Trigger:          adv.Trigger,
		DecisionApproved: true,
		RiskApproved:     adv.RiskApproved,
		RiskScore:        float64(adv.Penalty),
		Outcome:          models.OutcomePending,
		Notes:            adv.Reason,
	}
}
