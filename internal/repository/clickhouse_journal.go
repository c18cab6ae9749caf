package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"FxPulse/internal/domain/models"
	drepo "FxPulse/internal/domain/repository"
	pkgch "FxPulse/pkg/clickhouse"
	applogger "FxPulse/pkg/logger"
)

const journalTable = "fxpulse.advisory_journal"

// JournalSchema returns the idempotent DDL for the ClickHouse journal.
// Rows are versioned; outcome updates insert a newer version and reads
// collapse them with FINAL.
func JournalSchema() []string {
	return []string{
		`CREATE DATABASE IF NOT EXISTS fxpulse`,
		`CREATE TABLE IF NOT EXISTS ` + journalTable + ` (
            id String,
            ts DateTime64(3, 'UTC'),
            symbol LowCardinality(String),
            direction LowCardinality(String),
            score Float64,
            confidence Float64,
            market_state LowCardinality(String),
            trigger LowCardinality(String),
            decision_approved UInt8,
            risk_approved UInt8,
            risk_score Float64,
            user_action LowCardinality(String),
            outcome LowCardinality(String),
            pnl Float64,
            notes String,
            version UInt64
        ) ENGINE = ReplacingMergeTree(version)
        ORDER BY (id)
        TTL toDateTime(ts) + INTERVAL 90 DAY`,
	}
}

// CHJournal implements the outcome journal on ClickHouse.
type CHJournal struct {
	db *sql.DB
	l  *applogger.Logger
}

var _ drepo.Journal = (*CHJournal)(nil)

func NewCHJournal(ch *pkgch.Client) *CHJournal {
	return &CHJournal{db: ch.DB()}
}

// SetLogger injects a structured logger.
func (j *CHJournal) SetLogger(l *applogger.Logger) { j.l = l }

func (j *CHJournal) Append(ctx context.Context, e *models.JournalEntry) error {
	const qtpl = `
        INSERT INTO %s
            (id, ts, symbol, direction, score, confidence, market_state, trigger,
             decision_approved, risk_approved, risk_score, user_action, outcome, pnl, notes, version)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	q := fmt.Sprintf(qtpl, journalTable)
	_, err := j.db.ExecContext(ctx, q,
		e.ID,
		e.Timestamp.UTC(),
		e.Symbol,
		e.Direction,
		e.Score,
		e.Confidence,
		e.MarketState,
		e.Trigger,
		boolToU8(e.DecisionApproved),
		boolToU8(e.RiskApproved),
		e.RiskScore,
		e.UserAction,
		e.Outcome,
		e.PnL,
		e.Notes,
		uint64(time.Now().UnixNano()),
	)
	if err != nil {
		if j.l != nil {
			j.l.Error("clickhouse journal insert error",
				applogger.String("id", e.ID),
				applogger.String("symbol", e.Symbol),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("journal insert: %w", err)
	}
	return nil
}

func (j *CHJournal) UpdateOutcome(ctx context.Context, id, action, outcome string, pnl float64, notes string) error {
	e, err := j.byID(ctx, id)
	if err != nil {
		return err
	}
	if action != "" {
		e.UserAction = action
	}
	e.Outcome = outcome
	e.PnL = pnl
	if notes != "" {
		e.Notes = notes
	}
	return j.Append(ctx, e)
}

// Recent returns up to limit entries newest first, optionally filtered by symbol.
func (j *CHJournal) Recent(ctx context.Context, symbol string, limit int) ([]models.JournalEntry, error) {
	start := time.Now()
	q := fmt.Sprintf(`%s WHERE 1 = 1`, journalSelect())
	args := []interface{}{}
	if symbol != "" {
		q += ` AND symbol = ?`
		args = append(args, symbol)
	}
	q += ` ORDER BY ts DESC LIMIT ?`
	args = append(args, limit)

	out, err := j.queryEntries(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("journal recent: %w", err)
	}
	if j.l != nil {
		j.l.Debug("clickhouse journal recent ok",
			applogger.String("symbol", symbol),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

// Window returns entries at or after since, oldest first.
func (j *CHJournal) Window(ctx context.Context, since time.Time) ([]models.JournalEntry, error) {
	q := fmt.Sprintf(`%s WHERE ts >= ? ORDER BY ts ASC`, journalSelect())
	out, err := j.queryEntries(ctx, q, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("journal window: %w", err)
	}
	return out, nil
}

// Prune issues a delete mutation for entries older than keep and reports how
// many rows it covered at the time of the call.
func (j *CHJournal) Prune(ctx context.Context, keep time.Duration) (int, error) {
	cutoff := time.Now().Add(-keep).UTC()

	var n uint64
	countQ := fmt.Sprintf(`SELECT count() FROM %s FINAL WHERE ts < ?`, journalTable)
	if err := j.db.QueryRowContext(ctx, countQ, cutoff).Scan(&n); err != nil {
		return 0, fmt.Errorf("journal prune count: %w", err)
	}
	if n == 0 {
		return 0, nil
	}
	delQ := fmt.Sprintf(`ALTER TABLE %s DELETE WHERE ts < ?`, journalTable)
	if _, err := j.db.ExecContext(ctx, delQ, cutoff); err != nil {
		return 0, fmt.Errorf("journal prune: %w", err)
	}
	return int(n), nil
}

func (j *CHJournal) Close() error {
	return nil // pool owned by pkg client
}

func (j *CHJournal) byID(ctx context.Context, id string) (*models.JournalEntry, error) {
	q := fmt.Sprintf(`%s WHERE id = ? LIMIT 1`, journalSelect())
	rows, err := j.queryEntries(ctx, q, id)
	if err != nil {
		return nil, fmt.Errorf("journal by id: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("journal entry %s: %w", id, ErrNotFound)
	}
	return &rows[0], nil
}

func journalSelect() string {
	return fmt.Sprintf(`
        SELECT id, ts, symbol, direction, score, confidence, market_state, trigger,
               decision_approved, risk_approved, risk_score, user_action, outcome, pnl, notes
        FROM %s FINAL`, journalTable)
}

func (j *CHJournal) queryEntries(ctx context.Context, q string, args ...interface{}) ([]models.JournalEntry, error) {
	rows, err := j.db.QueryContext(ctx, q, args...)
	if err != nil {
		if j.l != nil {
			j.l.Error("clickhouse journal query error", applogger.Error(err))
		}
		return nil, err
	}
	defer rows.Close()

	var out []models.JournalEntry
	for rows.Next() {
		var (
			e            models.JournalEntry
			ts           time.Time
			decApproved  uint8
			riskApproved uint8
		)
		if err := rows.Scan(&e.ID, &ts, &e.Symbol, &e.Direction, &e.Score, &e.Confidence,
			&e.MarketState, &e.Trigger, &decApproved, &riskApproved, &e.RiskScore,
			&e.UserAction, &e.Outcome, &e.PnL, &e.Notes); err != nil {
			if j.l != nil {
				j.l.Error("clickhouse journal scan error", applogger.Error(err))
			}
			return nil, err
		}
		e.Timestamp = ts
		e.DecisionApproved = decApproved != 0
		e.RiskApproved = riskApproved != 0
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func boolToU8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// IsNotFound reports whether err is the journal miss sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
