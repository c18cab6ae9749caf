package alert

import (
	"context"

	"FxPulse/internal/domain/models"
	"FxPulse/internal/domain/service"
	"FxPulse/pkg/logger"
)

// LogSink writes advisories to the structured log. Always on; it is the
// fallback surface when no chat sink is configured.
type LogSink struct {
	log *logger.Logger
}

var _ service.AlertSink = (*LogSink)(nil)

func NewLogSink(log *logger.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Notify(_ context.Context, a *models.Advisory) error {
	s.log.Info("advisory",
		logger.String("id", a.ID),
		logger.String("symbol", a.Symbol),
		logger.String("direction", a.Direction),
		logger.Float64("price", a.Price),
		logger.Float64("score", a.Score),
		logger.Float64("confidence", a.Confidence),
		logger.String("market_state", a.MarketState),
		logger.String("trigger", a.Trigger),
		logger.Int("penalty", a.Penalty),
		logger.Bool("risk_approved", a.RiskApproved),
		logger.String("reason", a.Reason),
	)
	return nil
}
