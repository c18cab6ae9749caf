package service

import (
	"context"

	"FxPulse/internal/domain/models"
)

// AlertSink receives advisories that cleared the confidence threshold. What
// downstream does with them (popup, chat message, log row) is outside the core.
type AlertSink interface {
	Notify(ctx context.Context, a *models.Advisory) error
}
