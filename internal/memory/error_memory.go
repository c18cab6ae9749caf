package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"FxPulse/internal/domain/models"
	drepo "FxPulse/internal/domain/repository"
	"FxPulse/pkg/logger"
)

// Hand-tuned pattern thresholds and penalty weights. Calibration values,
// not derived from anything.
const (
	dominantSignalAt   = 3
	repeatedSignalAt   = 2
	degradedFailuresAt = 2
	triggerFailuresAt  = 2
	overconfidenceAt   = 2

	manyLossesAt = 5
	someLossesAt = 3

	penaltyManyLosses     = 15
	penaltySomeLosses     = 10
	penaltyRepeatedSignal = 20
	penaltyDegradedState  = 15
	penaltyTriggerRepeat  = 12
	penaltyOverconfidence = 8

	penaltyCap       = 40
	neutralThreshold = 30

	highConfidenceFloor = 85.0
	adjustedFloor       = 45.0
	neutralCeiling      = 55.0
)

// Config controls the lookback window over the outcome journal.
type Config struct {
	Lookback time.Duration
}

// DefaultConfig returns the standard 24h lookback.
func DefaultConfig() Config {
	return Config{Lookback: 24 * time.Hour}
}

// ErrorMemory turns the recent loss history into confidence penalties for
// proposals that resemble past failures. Snapshots are regenerated from the
// journal each cycle; nothing here is mutated in place.
type ErrorMemory struct {
	cfg     Config
	journal drepo.Journal
	log     *logger.Logger
}

// New creates an ErrorMemory over the given journal.
func New(cfg Config, journal drepo.Journal, log *logger.Logger) *ErrorMemory {
	if cfg.Lookback <= 0 {
		cfg.Lookback = DefaultConfig().Lookback
	}
	return &ErrorMemory{cfg: cfg, journal: journal, log: log}
}

// Snapshot tallies the losses recorded inside the lookback window ending at
// now. Journal failures degrade to an empty snapshot instead of erroring.
func (m *ErrorMemory) Snapshot(ctx context.Context, now time.Time) models.ErrorMemorySnapshot {
	hours := int(m.cfg.Lookback / time.Hour)
	entries, err := m.journal.Window(ctx, now.Add(-m.cfg.Lookback))
	if err != nil {
		m.log.Warn("error memory window read failed", logger.Error(err))
		return models.ErrorMemorySnapshot{
			Summary: fmt.Sprintf("error memory unavailable: %v", err),
		}
	}

	snap := models.ErrorMemorySnapshot{
		LossesBySignal:      map[string]int{},
		LossesByMarketState: map[string]int{},
		LossesByTrigger:     map[string]int{},
	}
	for _, e := range entries {
		if e.Outcome != models.OutcomeLoss {
			continue
		}
		snap.TotalLosses++
		snap.LossesBySignal[e.Direction]++
		snap.LossesByMarketState[e.MarketState]++
		snap.LossesByTrigger[e.Trigger]++
		if e.Confidence >= highConfidenceFloor {
			snap.HighConfidenceFailures++
		}
	}

	if snap.TotalLosses == 0 {
		snap.Summary = fmt.Sprintf("no losses in the last %dh", hours)
		return snap
	}

	var warnings []string
	if sig, n := dominantKey(snap.LossesBySignal); n >= dominantSignalAt {
		warnings = append(warnings, fmt.Sprintf("lost %d times with %s in %dh", n, sig, hours))
		snap.RiskFactors = append(snap.RiskFactors, fmt.Sprintf("repeated_%s_failures", strings.ToLower(sig)))
	}
	if n := snap.LossesByMarketState[string(models.ModeDegraded)]; n >= degradedFailuresAt {
		warnings = append(warnings, fmt.Sprintf("%d losses on degraded data", n))
		snap.RiskFactors = append(snap.RiskFactors, "degraded_feed_failures")
	}
	if trg, n := dominantKey(snap.LossesByTrigger); n >= triggerFailuresAt {
		warnings = append(warnings, fmt.Sprintf("%d losses after %s", n, trg))
		snap.RiskFactors = append(snap.RiskFactors, fmt.Sprintf("trigger_%s_failures", strings.ToLower(trg)))
	}
	if snap.HighConfidenceFailures >= overconfidenceAt {
		warnings = append(warnings, fmt.Sprintf("%d losses at confidence >= %.0f%%", snap.HighConfidenceFailures, highConfidenceFloor))
		snap.RiskFactors = append(snap.RiskFactors, "overconfidence_bias")
	}

	snap.Summary = fmt.Sprintf("error memory: %d losses in %dh", snap.TotalLosses, hours)
	if len(warnings) > 0 {
		snap.Summary += ". " + strings.Join(warnings, " | ")
	}
	return snap
}

// Adjust scores a concrete proposal against the snapshot. The penalty is
// capped, and past the neutral threshold the proposal should not keep its
// direction at all.
func (m *ErrorMemory) Adjust(snap models.ErrorMemorySnapshot, direction, marketState, trigger string) models.RiskAdjustment {
	penalty := 0
	var reasons []string

	switch {
	case snap.TotalLosses >= manyLossesAt:
		penalty += penaltyManyLosses
		reasons = append(reasons, fmt.Sprintf("%d recent losses", snap.TotalLosses))
	case snap.TotalLosses >= someLossesAt:
		penalty += penaltySomeLosses
		reasons = append(reasons, fmt.Sprintf("%d recent losses", snap.TotalLosses))
	}

	if snap.LossesBySignal[direction] >= repeatedSignalAt {
		penalty += penaltyRepeatedSignal
		reasons = append(reasons, fmt.Sprintf("repeated %s failures", direction))
	}
	if marketState == string(models.ModeDegraded) && snap.LossesByMarketState[marketState] >= degradedFailuresAt {
		penalty += penaltyDegradedState
		reasons = append(reasons, "prior losses on degraded data")
	}
	if snap.LossesByTrigger[trigger] >= triggerFailuresAt {
		penalty += penaltyTriggerRepeat
		reasons = append(reasons, fmt.Sprintf("prior losses after %s", trigger))
	}
	if snap.HighConfidenceFailures >= overconfidenceAt {
		penalty += penaltyOverconfidence
		reasons = append(reasons, "overconfidence bias")
	}

	return models.RiskAdjustment{
		Penalty:         clampPenalty(penalty),
		ShouldBeNeutral: penalty >= neutralThreshold,
		Reasons:         reasons,
	}
}

// Apply folds an adjustment into a decision result: subtract the penalty
// down to a floor, and force neutral past the threshold.
func Apply(res models.DecisionResult, adj models.RiskAdjustment) models.DecisionResult {
	res.Confidence = math.Max(res.Confidence-float64(adj.Penalty), adjustedFloor)
	if adj.ShouldBeNeutral {
		res.Direction = models.DirectionNeutral
		res.Confidence = math.Min(res.Confidence, neutralCeiling)
	}
	if len(adj.Reasons) > 0 {
		res.Reason += " | memory: " + strings.Join(adj.Reasons, ", ")
	}
	return res
}

func clampPenalty(p int) int {
	if p > penaltyCap {
		return penaltyCap
	}
	return p
}

// dominantKey returns the most frequent key; ties break lexicographically
// so snapshots are deterministic.
func dominantKey(counts map[string]int) (string, int) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	best, bestN := "", 0
	for _, k := range keys {
		if counts[k] > bestN {
			best, bestN = k, counts[k]
		}
	}
	return best, bestN
}
