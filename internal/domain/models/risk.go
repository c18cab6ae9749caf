package models

import "time"

// Severity grades for risk gate verdicts.
const (
	SeverityCritical = "CRITICAL"
	SeverityHigh     = "HIGH"
	SeverityMedium   = "MEDIUM"
	SeverityLow      = "LOW"
)

// TradeRecord is one completed trade in the bounded daily history.
type TradeRecord struct {
	Time    time.Time `json:"time"`
	Outcome string    `json:"outcome"`
	Amount  float64   `json:"amount"`
}

// DailyRiskState carries the per-day counters the risk gate enforces. It
// persists across restarts for the current calendar day and is reset on
// day rollover.
type DailyRiskState struct {
	Date              string        `json:"date"` // 2006-01-02
	TotalLoss         float64       `json:"total_loss"`
	ConsecutiveLosses int           `json:"consecutive_losses"`
	TotalTrades       int           `json:"total_trades"`
	BlockedUntil      *time.Time    `json:"blocked_until,omitempty"`
	LastTrades        []TradeRecord `json:"last_trades"`
}

// RiskVerdict is the result of the sequential admission checks.
type RiskVerdict struct {
	Approved bool
	Reason   string
	Severity string
}
