package models

// ErrorMemorySnapshot summarizes recorded failures inside the lookback window.
// Recomputed from the journal each cycle; never mutated, only regenerated.
type ErrorMemorySnapshot struct {
	Summary                string         `json:"summary"`
	RiskFactors            []string       `json:"risk_factors,omitempty"`
	LossesBySignal         map[string]int `json:"losses_by_signal,omitempty"`
	LossesByMarketState    map[string]int `json:"losses_by_market_state,omitempty"`
	LossesByTrigger        map[string]int `json:"losses_by_trigger,omitempty"`
	HighConfidenceFailures int            `json:"high_confidence_failures"`
	TotalLosses            int            `json:"total_losses"`
}

// RiskAdjustment is the penalty derived from a snapshot for a concrete proposal.
type RiskAdjustment struct {
	Penalty         int
	ShouldBeNeutral bool
	Reasons         []string
}
