package feed

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"FxPulse/internal/domain/models"
	drepo "FxPulse/internal/domain/repository"
	"FxPulse/internal/session"
	"FxPulse/pkg/logger"
)

// Config tunes one symbol's feed loop.
type Config struct {
	LiveCycle        time.Duration
	DegradedCycle    time.Duration
	HistorySpan      time.Duration
	Interval         drepo.Interval
	LiveCapacity     int
	DegradedCapacity int
	SynthBasePrice   float64
	SynthJitter      float64
}

// DefaultConfig returns the standard feed tuning.
func DefaultConfig() Config {
	return Config{
		LiveCycle:        60 * time.Second,
		DegradedCycle:    5 * time.Second,
		HistorySpan:      24 * time.Hour,
		Interval:         drepo.Interval1m,
		LiveCapacity:     1200,
		DegradedCapacity: 500,
		SynthBasePrice:   1.08450,
		SynthJitter:      0.0001,
	}
}

// View is an immutable snapshot of one symbol's feed state.
type View struct {
	Symbol         string
	Mode           models.FeedMode
	Candles        []models.Candle
	LastPrice      float64
	ReferenceClose float64
	GapPct         float64
	LiveDepth      int
	DegradedDepth  int
}

// Controller runs the dual-mode feed for one symbol. While the market trades
// it refreshes an authoritative candle window on a slow cycle; outside market
// hours it falls back to fast visual sampling with synthetic fill-in. The two
// buffers are never merged.
type Controller struct {
	symbol  string
	cfg     Config
	history drepo.HistoryProvider
	samples drepo.SampleProvider
	store   drepo.ContextStore
	clock   *session.Clock
	metrics drepo.Metrics
	log     *logger.Logger

	mu        sync.Mutex
	mode      models.FeedMode
	live      *CandleRing
	degraded  *CandleRing
	lastPrice float64
	refClose  float64
}

// NewController creates a Controller for one symbol.
func NewController(
	symbol string,
	cfg Config,
	history drepo.HistoryProvider,
	samples drepo.SampleProvider,
	store drepo.ContextStore,
	clock *session.Clock,
	metrics drepo.Metrics,
	log *logger.Logger,
) *Controller {
	def := DefaultConfig()
	if cfg.LiveCycle <= 0 {
		cfg.LiveCycle = def.LiveCycle
	}
	if cfg.DegradedCycle <= 0 {
		cfg.DegradedCycle = def.DegradedCycle
	}
	if cfg.HistorySpan <= 0 {
		cfg.HistorySpan = def.HistorySpan
	}
	if cfg.Interval == "" {
		cfg.Interval = def.Interval
	}
	if cfg.LiveCapacity <= 0 {
		cfg.LiveCapacity = def.LiveCapacity
	}
	if cfg.DegradedCapacity <= 0 {
		cfg.DegradedCapacity = def.DegradedCapacity
	}
	if cfg.SynthBasePrice <= 0 {
		cfg.SynthBasePrice = def.SynthBasePrice
	}
	if cfg.SynthJitter <= 0 {
		cfg.SynthJitter = def.SynthJitter
	}
	return &Controller{
		symbol:   symbol,
		cfg:      cfg,
		history:  history,
		samples:  samples,
		store:    store,
		clock:    clock,
		metrics:  metrics,
		log:      log,
		mode:     models.ModeLive,
		live:     NewCandleRing(cfg.LiveCapacity),
		degraded: NewCandleRing(cfg.DegradedCapacity),
	}
}

// Symbol returns the symbol this controller feeds.
func (c *Controller) Symbol() string { return c.symbol }

// Start connects the sample provider and sets the initial mode from the
// calendar. Connect failure is tolerated; degraded cycles then synthesize.
func (c *Controller) Start(ctx context.Context) error {
	if err := c.samples.Connect(ctx); err != nil {
		c.log.Warn("capture connect failed, degraded cycles will synthesize",
			logger.String("symbol", c.symbol), logger.Error(err))
	}
	if c.clock.IsMarketOpen(time.Now()) {
		c.metrics.RecordFeedMode(c.symbol, models.ModeLive)
	} else {
		c.enterDegraded()
	}
	return nil
}

// Run drives the feed loop until ctx is cancelled. The sleep between cycles
// follows the current mode.
func (c *Controller) Run(ctx context.Context) {
	for {
		c.cycle(ctx, time.Now())

		c.mu.Lock()
		wait := c.cfg.LiveCycle
		if c.mode == models.ModeDegraded {
			wait = c.cfg.DegradedCycle
		}
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// cycle performs one feed iteration as of now.
func (c *Controller) cycle(ctx context.Context, now time.Time) {
	if c.clock.IsMarketOpen(now) {
		c.toLive()
		c.liveCycle(ctx, now)
		return
	}
	c.enterDegraded()
	c.degradedCycle(ctx, now)
}

func (c *Controller) liveCycle(ctx context.Context, now time.Time) {
	start := time.Now()
	candles, err := c.history.History(ctx, c.symbol, c.cfg.Interval, c.cfg.HistorySpan)
	if err != nil {
		c.metrics.RecordError("history")
		c.log.Warn("history fetch failed, keeping previous window",
			logger.String("symbol", c.symbol), logger.Error(err))
		return
	}
	c.metrics.RecordLatency("history", time.Since(start).Seconds())
	if len(candles) == 0 {
		c.metrics.RecordError("history_empty")
		return
	}

	last := candles[len(candles)-1]
	c.mu.Lock()
	c.live.Replace(candles)
	c.lastPrice = last.Close
	depth := c.live.Len()
	c.mu.Unlock()

	c.metrics.RecordLastPrice(c.symbol, last.Close)
	c.metrics.RecordBufferDepth(c.symbol, "live", depth)

	if c.clock.IsApproachingClose(now) {
		c.persistSessionContext()
	}
}

func (c *Controller) degradedCycle(ctx context.Context, now time.Time) {
	sample, err := c.samples.Next(ctx, c.symbol)
	if err != nil {
		c.metrics.RecordError("capture")
		sample = c.synthesize(now)
	}

	c.mu.Lock()
	c.degraded.Push(models.DegenerateCandle(sample))
	c.lastPrice = sample.Price
	depth := c.degraded.Len()
	c.mu.Unlock()

	c.metrics.RecordLastPrice(c.symbol, sample.Price)
	c.metrics.RecordBufferDepth(c.symbol, "degraded", depth)
}

// synthesize fabricates a sample by jittering the last known price. The seed
// base covers a cold start with no price at all.
func (c *Controller) synthesize(now time.Time) models.PriceSample {
	c.mu.Lock()
	base := c.lastPrice
	c.mu.Unlock()
	if base <= 0 {
		base = c.cfg.SynthBasePrice
	}
	return models.PriceSample{
		Symbol:    c.symbol,
		Timestamp: now,
		Price:     base + rand.NormFloat64()*c.cfg.SynthJitter,
		Quality:   models.QualityVisualSynth,
	}
}

// toLive switches to the authoritative feed. The degraded ring is kept as is;
// it is never folded into the live window.
func (c *Controller) toLive() {
	c.mu.Lock()
	if c.mode == models.ModeLive {
		c.mu.Unlock()
		return
	}
	c.mode = models.ModeLive
	c.mu.Unlock()

	c.metrics.RecordFeedMode(c.symbol, models.ModeLive)
	c.log.Info("feed live", logger.String("symbol", c.symbol))
}

// enterDegraded persists the closing session context, pins the reference
// close for gap tracking, restores any degraded snapshot from a previous
// run, and switches mode.
func (c *Controller) enterDegraded() {
	c.mu.Lock()
	if c.mode == models.ModeDegraded {
		c.mu.Unlock()
		return
	}

	if snap := c.live.Snapshot(); len(snap) > 0 {
		if err := c.store.SaveSessionContext(c.symbol, snap); err != nil {
			c.log.Warn("session context persist failed",
				logger.String("symbol", c.symbol), logger.Error(err))
		}
		c.refClose = snap[len(snap)-1].Close
	} else if prev, err := c.store.LoadSessionContext(c.symbol); err == nil && len(prev) > 0 {
		c.refClose = prev[len(prev)-1].Close
	}

	if c.degraded.Len() == 0 {
		if saved, err := c.store.LoadDegradedSnapshot(c.symbol); err == nil && len(saved) > 0 {
			c.degraded.Replace(saved)
			if last, ok := c.degraded.Last(); ok {
				c.lastPrice = last.Close
			}
		}
	}

	c.mode = models.ModeDegraded
	c.mu.Unlock()

	c.metrics.RecordFeedMode(c.symbol, models.ModeDegraded)
	c.log.Info("feed degraded",
		logger.String("symbol", c.symbol))
}

func (c *Controller) persistSessionContext() {
	snap := c.live.Snapshot()
	if len(snap) == 0 {
		return
	}
	if err := c.store.SaveSessionContext(c.symbol, snap); err != nil {
		c.log.Warn("session context persist failed",
			logger.String("symbol", c.symbol), logger.Error(err))
		return
	}
	c.log.Debug("session context persisted",
		logger.String("symbol", c.symbol), logger.Int("candles", len(snap)))
}

// View snapshots the active buffer and mode for evaluation.
func (c *Controller) View() View {
	c.mu.Lock()
	mode := c.mode
	last := c.lastPrice
	ref := c.refClose
	c.mu.Unlock()

	v := View{
		Symbol:         c.symbol,
		Mode:           mode,
		LastPrice:      last,
		ReferenceClose: ref,
		LiveDepth:      c.live.Len(),
		DegradedDepth:  c.degraded.Len(),
	}
	if mode == models.ModeLive {
		v.Candles = c.live.Snapshot()
	} else {
		v.Candles = c.degraded.Snapshot()
		if ref > 0 && last > 0 {
			v.GapPct = (last - ref) / ref * 100
		}
	}
	return v
}

// Shutdown flushes the degraded ring for the next run and closes the sample
// provider.
func (c *Controller) Shutdown(ctx context.Context) error {
	if snap := c.degraded.Snapshot(); len(snap) > 0 {
		if err := c.store.SaveDegradedSnapshot(c.symbol, snap); err != nil {
			c.log.Warn("degraded snapshot persist failed",
				logger.String("symbol", c.symbol), logger.Error(err))
		}
	}
	return c.samples.Close()
}
