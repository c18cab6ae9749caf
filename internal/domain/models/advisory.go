package models

import "time"

// Decision-service verdict vocabulary.
const (
	DirectionUp   = "UP"
	DirectionDown = "DOWN"
)

// Advisory directions. UP maps to CALL, DOWN maps to PUT before dispatch.
const (
	DirectionCall    = "CALL"
	DirectionPut     = "PUT"
	DirectionNeutral = "NEUTRAL"
)

// Outcome values recorded against an advisory.
const (
	OutcomePending = "PENDING"
	OutcomeWin     = "WIN"
	OutcomeLoss    = "LOSS"
	OutcomeDraw    = "DRAW"
	OutcomeExpired = "EXPIRED"
)

// Advisory is the final record handed to alert and journal sinks. The system
// never executes it; a human accepts or rejects.
type Advisory struct {
	ID           string    `json:"id"`
	Time         time.Time `json:"time"`
	Symbol       string    `json:"symbol"`
	Direction    string    `json:"direction"` // CALL, PUT or NEUTRAL
	Score        float64   `json:"score"`
	Confidence   float64   `json:"confidence"`
	Reason       string    `json:"reason"`
	Price        float64   `json:"price"`
	MarketState  string    `json:"market_state"` // live or degraded
	Trigger      string    `json:"trigger"`
	Penalty      int       `json:"penalty"`
	RiskApproved bool      `json:"risk_approved"`
	RiskReason   string    `json:"risk_reason,omitempty"`
	RiskSeverity string    `json:"risk_severity,omitempty"`
}

// DecisionRequest is the structured snapshot sent to the external decision service.
type DecisionRequest struct {
	Symbol        string
	Price         float64
	MarketState   string
	Gap           float64
	Indicators    IndicatorSet
	Regime        RegimeLabel
	Score         ProbabilityScore
	MemorySummary string
	Penalty       int
}

// DecisionResult is the decision-service verdict. Direction is UP, DOWN or NEUTRAL.
// Fallback marks a neutral default substituted for a failed or malformed response.
type DecisionResult struct {
	Direction  string
	Confidence float64
	Reason     string
	Fallback   bool
}

// JournalEntry is one row of the append-only outcome log. The column set is
// stable across restarts; the error memory and the risk gate both reload it.
type JournalEntry struct {
	ID               string    `json:"id"`
	Timestamp        time.Time `json:"timestamp"`
	Symbol           string    `json:"symbol"`
	Direction        string    `json:"direction"`
	Score            float64   `json:"score"`
	Confidence       float64   `json:"confidence"`
	MarketState      string    `json:"market_state"`
	Trigger          string    `json:"trigger"`
	DecisionApproved bool      `json:"decision_approved"`
	RiskApproved     bool      `json:"risk_approved"`
	RiskScore        float64   `json:"risk_score"`
	UserAction       string    `json:"user_action"`
	Outcome          string    `json:"outcome"`
	PnL              float64   `json:"pnl"`
	Notes            string    `json:"notes"`
}
