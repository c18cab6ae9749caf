package risk

import (
	"fmt"
	"sync"
	"time"

	"FxPulse/internal/domain/models"
	drepo "FxPulse/internal/domain/repository"
	"FxPulse/pkg/logger"
	"FxPulse/pkg/util"
)

// Config bounds how much damage a single day is allowed to do.
type Config struct {
	MaxDailyLoss     float64
	MaxConsecutive   int
	MaxVolatilityPct float64
	MinConfidence    float64
	Cooldown         time.Duration
	HistorySize      int
}

// DefaultConfig returns the standard admission limits.
func DefaultConfig() Config {
	return Config{
		MaxDailyLoss:     100.0,
		MaxConsecutive:   3,
		MaxVolatilityPct: 2.0,
		MinConfidence:    60.0,
		Cooldown:         30 * time.Minute,
		HistorySize:      10,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MaxDailyLoss <= 0 {
		c.MaxDailyLoss = def.MaxDailyLoss
	}
	if c.MaxConsecutive <= 0 {
		c.MaxConsecutive = def.MaxConsecutive
	}
	if c.MaxVolatilityPct <= 0 {
		c.MaxVolatilityPct = def.MaxVolatilityPct
	}
	if c.MinConfidence <= 0 {
		c.MinConfidence = def.MinConfidence
	}
	if c.Cooldown <= 0 {
		c.Cooldown = def.Cooldown
	}
	if c.HistorySize <= 0 {
		c.HistorySize = def.HistorySize
	}
	return c
}

// Summary is the reporting view of the current risk state.
type Summary struct {
	Date              string               `json:"date"`
	DailyLoss         float64              `json:"daily_loss"`
	MaxDailyLoss      float64              `json:"max_daily_loss"`
	ConsecutiveLosses int                  `json:"consecutive_losses"`
	MaxConsecutive    int                  `json:"max_consecutive_losses"`
	TotalTrades       int                  `json:"total_trades_today"`
	Blocked           bool                 `json:"is_blocked"`
	BlockedUntil      *time.Time           `json:"blocked_until,omitempty"`
	Status            string               `json:"risk_status"`
	LastTrades        []models.TradeRecord `json:"last_trades"`
}

// Gate is the final admission control in front of the alert sinks. All state
// is per calendar day and survives restarts through the RiskStore.
type Gate struct {
	cfg   Config
	store drepo.RiskStore
	log   *logger.Logger

	mu    sync.Mutex
	state *models.DailyRiskState
}

// NewGate loads the persisted daily state, discarding it when it belongs to
// an earlier calendar day.
func NewGate(cfg Config, store drepo.RiskStore, log *logger.Logger) *Gate {
	g := &Gate{cfg: cfg.withDefaults(), store: store, log: log}
	if store != nil {
		if st, err := store.Load(); err != nil {
			log.Warn("risk state load failed", logger.Error(err))
		} else if st != nil {
			g.state = st
		}
	}
	return g
}

// Check runs the sequential admission checks. The first failing check wins
// and its verdict carries the severity of that specific limit.
func (g *Gate) Check(now time.Time, direction string, confidence, volatilityPct float64) models.RiskVerdict {
	g.mu.Lock()
	defer g.mu.Unlock()
	s := g.ensureDay(now)

	if s.BlockedUntil != nil && now.Before(*s.BlockedUntil) {
		return models.RiskVerdict{
			Reason:   fmt.Sprintf("cooldown active until %s", s.BlockedUntil.Format("15:04")),
			Severity: models.SeverityCritical,
		}
	}
	if s.TotalLoss >= g.cfg.MaxDailyLoss {
		return models.RiskVerdict{
			Reason:   fmt.Sprintf("daily loss limit reached (%.2f)", s.TotalLoss),
			Severity: models.SeverityCritical,
		}
	}
	if s.ConsecutiveLosses >= g.cfg.MaxConsecutive {
		// Arming the cooldown consumes the streak so evaluation resumes
		// normally once the block expires.
		until := now.Add(g.cfg.Cooldown)
		s.BlockedUntil = &until
		s.ConsecutiveLosses = 0
		g.persist(s)
		g.log.Warn("loss streak cooldown armed",
			logger.Int("streak", g.cfg.MaxConsecutive),
			logger.String("until", until.Format(time.RFC3339)))
		return models.RiskVerdict{
			Reason:   fmt.Sprintf("%d consecutive losses, cooling down", g.cfg.MaxConsecutive),
			Severity: models.SeverityHigh,
		}
	}
	if volatilityPct > g.cfg.MaxVolatilityPct {
		return models.RiskVerdict{
			Reason:   fmt.Sprintf("volatility too high (%.2f%%)", volatilityPct),
			Severity: models.SeverityHigh,
		}
	}
	if confidence < g.cfg.MinConfidence {
		return models.RiskVerdict{
			Reason:   fmt.Sprintf("confidence below floor (%.1f%%)", confidence),
			Severity: models.SeverityMedium,
		}
	}
	if direction != models.DirectionCall && direction != models.DirectionPut {
		return models.RiskVerdict{
			Reason:   "direction not actionable",
			Severity: models.SeverityLow,
		}
	}
	return models.RiskVerdict{Approved: true, Reason: "all risk checks passed", Severity: models.SeverityLow}
}

// RecordResult folds one settled trade into the daily counters and persists.
func (g *Gate) RecordResult(now time.Time, outcome string, amount float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s := g.ensureDay(now)

	s.TotalTrades++
	if outcome == models.OutcomeLoss {
		s.TotalLoss += amount
		s.ConsecutiveLosses++
	} else {
		s.ConsecutiveLosses = 0
	}

	s.LastTrades = append(s.LastTrades, models.TradeRecord{Time: now, Outcome: outcome, Amount: amount})
	if len(s.LastTrades) > g.cfg.HistorySize {
		s.LastTrades = s.LastTrades[len(s.LastTrades)-g.cfg.HistorySize:]
	}
	g.persist(s)
}

// Summary reports the current state for the status endpoints.
func (g *Gate) Summary(now time.Time) Summary {
	g.mu.Lock()
	defer g.mu.Unlock()
	s := g.ensureDay(now)

	blocked := s.BlockedUntil != nil && now.Before(*s.BlockedUntil)
	out := Summary{
		Date:              s.Date,
		DailyLoss:         s.TotalLoss,
		MaxDailyLoss:      g.cfg.MaxDailyLoss,
		ConsecutiveLosses: s.ConsecutiveLosses,
		MaxConsecutive:    g.cfg.MaxConsecutive,
		TotalTrades:       s.TotalTrades,
		Blocked:           blocked,
		BlockedUntil:      s.BlockedUntil,
		Status:            g.status(s, blocked),
		LastTrades:        append([]models.TradeRecord(nil), s.LastTrades...),
	}
	return out
}

func (g *Gate) status(s *models.DailyRiskState, blocked bool) string {
	switch {
	case blocked:
		return "blocked"
	case s.ConsecutiveLosses >= g.cfg.MaxConsecutive-1:
		return "caution"
	case s.TotalLoss > g.cfg.MaxDailyLoss*0.7:
		return "alert"
	default:
		return "safe"
	}
}

// ensureDay rolls the state over when the calendar date changed. Callers must
// hold the mutex.
func (g *Gate) ensureDay(now time.Time) *models.DailyRiskState {
	day := util.DayKey(now)
	if g.state == nil || g.state.Date != day {
		if g.state != nil {
			g.log.Info("daily risk state reset", logger.String("date", day))
		}
		g.state = &models.DailyRiskState{Date: day}
		g.persist(g.state)
	}
	return g.state
}

func (g *Gate) persist(s *models.DailyRiskState) {
	if g.store == nil {
		return
	}
	if err := g.store.Save(s); err != nil {
		g.log.Warn("risk state save failed", logger.Error(err))
	}
}
