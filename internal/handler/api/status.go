package api

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"

	"FxPulse/internal/domain/models"
	domrepo "FxPulse/internal/domain/repository"
	"FxPulse/internal/domain/service"
	"FxPulse/internal/feed"
	"FxPulse/internal/memory"
	"FxPulse/internal/repository"
	"FxPulse/internal/risk"
	"FxPulse/internal/usecase"
	xhttp "FxPulse/pkg/http"
	xlogger "FxPulse/pkg/logger"
)

// FeedSource walks the tracked feed views.
type FeedSource interface {
	Views() []feed.View
}

// SnapshotSource yields the latest per-symbol evaluation.
type SnapshotSource interface {
	LastEvaluation(symbol string) (*usecase.Evaluation, bool)
}

// OutcomeRecorder stores a confirmed trade result.
type OutcomeRecorder interface {
	Record(ctx context.Context, id, action, outcome string, pnl float64, notes string) error
}

// StatusHandler serves the observation API: pipeline state, per-symbol
// snapshots, the advisory journal and outcome reporting.
type StatusHandler struct {
	log      *xlogger.Logger
	feeds    FeedSource
	snaps    SnapshotSource
	journal  domrepo.Journal
	risk     *risk.Gate
	memory   *memory.ErrorMemory
	outcomes OutcomeRecorder
	decision service.DecisionService
	started  time.Time
}

func NewStatusHandler(
	log *xlogger.Logger,
	feeds FeedSource,
	snaps SnapshotSource,
	journal domrepo.Journal,
	riskGate *risk.Gate,
	errMemory *memory.ErrorMemory,
	outcomes OutcomeRecorder,
	decision service.DecisionService,
) *StatusHandler {
	return &StatusHandler{
		log:      log,
		feeds:    feeds,
		snaps:    snaps,
		journal:  journal,
		risk:     riskGate,
		memory:   errMemory,
		outcomes: outcomes,
		decision: decision,
		started:  time.Now(),
	}
}

func (h *StatusHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/status", h.Status)
	g.GET("/snapshot", h.Snapshot)
	g.GET("/advisories", h.Advisories)
	g.GET("/risk", h.Risk)
	g.GET("/journal/summary", h.JournalSummary)
	g.GET("/errors", h.Errors)
	g.GET("/memory", h.Memory)
	g.POST("/outcome", h.Outcome)
}

type symbolStatus struct {
	Symbol        string  `json:"symbol"`
	Mode          string  `json:"mode"`
	LastPrice     float64 `json:"last_price"`
	GapPct        float64 `json:"gap_pct"`
	LiveCandles   int     `json:"live_candles"`
	DegradedTicks int     `json:"degraded_samples"`
}

type statusResponse struct {
	Uptime     string         `json:"uptime"`
	Symbols    []symbolStatus `json:"symbols"`
	DecisionOK bool           `json:"decision_ok"`
	Risk       risk.Summary   `json:"risk"`
}

func (h *StatusHandler) Status(c echo.Context) error {
	res := statusResponse{
		Uptime: time.Since(h.started).Round(time.Second).String(),
		Risk:   h.risk.Summary(time.Now()),
	}
	for _, v := range h.feeds.Views() {
		res.Symbols = append(res.Symbols, symbolStatus{
			Symbol:        v.Symbol,
			Mode:          string(v.Mode),
			LastPrice:     v.LastPrice,
			GapPct:        v.GapPct,
			LiveCandles:   v.LiveDepth,
			DegradedTicks: v.DegradedDepth,
		})
	}
	res.DecisionOK = h.decision.Healthy(c.Request().Context())
	return xhttp.SuccessResponse(c, res)
}

func (h *StatusHandler) Snapshot(c echo.Context) error {
	req := &models.SnapshotRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ev, ok := h.snaps.LastEvaluation(req.Symbol)
	if !ok {
		return xhttp.NotFoundResponse(c, "no evaluation yet for "+req.Symbol)
	}
	return xhttp.SuccessResponse(c, ev)
}

func (h *StatusHandler) Advisories(c echo.Context) error {
	req := &models.AdvisoriesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	entries, err := h.journal.Recent(c.Request().Context(), req.Symbol, req.Limit)
	if err != nil {
		h.log.Error("journal read failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	if since := xhttp.ParseTimeDefault(req.Since, time.Time{}); !since.IsZero() {
		kept := entries[:0]
		for _, e := range entries {
			if !e.Timestamp.Before(since) {
				kept = append(kept, e)
			}
		}
		entries = kept
	}
	return xhttp.ListResponse(c, entries, int64(len(entries)))
}

func (h *StatusHandler) Risk(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.risk.Summary(time.Now()))
}

type journalSummary struct {
	Days      int            `json:"days"`
	Total     int            `json:"total"`
	Wins      int            `json:"wins"`
	Losses    int            `json:"losses"`
	Draws     int            `json:"draws"`
	Expired   int            `json:"expired"`
	Pending   int            `json:"pending"`
	WinRate   float64        `json:"win_rate"` // settled advisories only
	NetPnL    float64        `json:"net_pnl"`
	ByTrigger map[string]int `json:"by_trigger,omitempty"`
}

func (h *StatusHandler) JournalSummary(c echo.Context) error {
	req := &models.JournalSummaryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	since := time.Now().AddDate(0, 0, -req.Days)
	entries, err := h.journal.Window(c.Request().Context(), since)
	if err != nil {
		h.log.Error("journal window read failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}

	sum := journalSummary{Days: req.Days, ByTrigger: map[string]int{}}
	for _, e := range entries {
		sum.Total++
		sum.NetPnL += e.PnL
		sum.ByTrigger[e.Trigger]++
		switch e.Outcome {
		case models.OutcomeWin:
			sum.Wins++
		case models.OutcomeLoss:
			sum.Losses++
		case models.OutcomeDraw:
			sum.Draws++
		case models.OutcomeExpired:
			sum.Expired++
		default:
			sum.Pending++
		}
	}
	if settled := sum.Wins + sum.Losses; settled > 0 {
		sum.WinRate = float64(sum.Wins) / float64(settled) * 100
	}
	return xhttp.SuccessResponse(c, sum)
}

func (h *StatusHandler) Errors(c echo.Context) error {
	limit := xhttp.ParseIntDefault(c.QueryParam("limit"), 50)
	return xhttp.SuccessResponse(c, h.log.RecentErrors(limit))
}

func (h *StatusHandler) Memory(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.memory.Snapshot(c.Request().Context(), time.Now()))
}

func (h *StatusHandler) Outcome(c echo.Context) error {
	req := &models.OutcomeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	err := h.outcomes.Record(c.Request().Context(), req.ID, req.Action, req.Outcome, req.PnL, req.Notes)
	if repository.IsNotFound(err) {
		return xhttp.NotFoundResponse(c, "advisory "+req.ID+" not found")
	}
	if err != nil {
		h.log.Error("outcome record failed",
			xlogger.String("id", req.ID), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, map[string]string{"id": req.ID, "outcome": req.Outcome})
}
