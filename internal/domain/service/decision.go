package service

import (
	"context"

	"FxPulse/internal/domain/models"
)

// DecisionService maps a structured market snapshot to a directional decision.
// Implementations must degrade to a neutral fallback instead of failing hard.
type DecisionService interface {
	Decide(ctx context.Context, req *models.DecisionRequest) (models.DecisionResult, error)
	Healthy(ctx context.Context) bool
}
