package models

// Requests for the status/journal HTTP endpoints. Defined in domain for reuse.

type SnapshotRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
}

type AdvisoriesRequest struct {
	Symbol string `query:"symbol" json:"symbol"`
	Limit  int    `query:"limit" json:"limit" default:"20" validate:"gte=1,lte=500"`
	Since  string `query:"since" json:"since"` // RFC3339 or unix seconds, optional
}

type JournalSummaryRequest struct {
	Days int `query:"days" json:"days" default:"7" validate:"gte=1,lte=90"`
}

type OutcomeRequest struct {
	ID      string  `json:"id" validate:"required"`
	Outcome string  `json:"outcome" validate:"required,oneof=WIN LOSS DRAW EXPIRED"`
	Action  string  `json:"action" default:"reported" validate:"omitempty,oneof=accepted rejected reported expired"`
	PnL     float64 `json:"pnl"`
	Notes   string  `json:"notes"`
}
