package repository

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"FxPulse/internal/domain/models"
	drepo "FxPulse/internal/domain/repository"
)

// ErrNotFound is returned when a journal entry id does not exist.
var ErrNotFound = errors.New("not found")

var journalHeader = []string{
	"id", "timestamp", "symbol", "direction", "score", "confidence",
	"market_state", "trigger", "decision_approved", "risk_approved",
	"risk_score", "user_action", "outcome", "pnl", "notes",
}

// CSVJournal is the file-backed outcome log. One row per advisory, updated in
// place when an outcome is reported. The column set is stable; rewriting is
// atomic so a crash never corrupts the history.
type CSVJournal struct {
	path string
	mu   sync.Mutex
}

var _ drepo.Journal = (*CSVJournal)(nil)

// NewCSVJournal opens (or creates) the journal file at path.
func NewCSVJournal(path string) (*CSVJournal, error) {
	j := &CSVJournal{path: path}
	st, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) || (err == nil && st.Size() == 0) {
		if err := j.rewrite(nil); err != nil {
			return nil, err
		}
		return j, nil
	}
	if err != nil {
		return nil, fmt.Errorf("stat journal: %w", err)
	}
	return j, nil
}

func (j *CSVJournal) Append(ctx context.Context, e *models.JournalEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	f, err := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(encodeJournalRow(e)); err != nil {
		return fmt.Errorf("append journal row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush journal: %w", err)
	}
	return nil
}

func (j *CSVJournal) UpdateOutcome(ctx context.Context, id, action, outcome string, pnl float64, notes string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	entries, err := j.readAll()
	if err != nil {
		return err
	}
	found := false
	for i := range entries {
		if entries[i].ID != id {
			continue
		}
		if action != "" {
			entries[i].UserAction = action
		}
		entries[i].Outcome = outcome
		entries[i].PnL = pnl
		if notes != "" {
			entries[i].Notes = notes
		}
		found = true
		break
	}
	if !found {
		return fmt.Errorf("journal entry %s: %w", id, ErrNotFound)
	}
	return j.rewrite(entries)
}

// Recent returns up to limit entries newest first, optionally filtered by symbol.
func (j *CSVJournal) Recent(ctx context.Context, symbol string, limit int) ([]models.JournalEntry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	entries, err := j.readAll()
	if err != nil {
		return nil, err
	}
	var filtered []models.JournalEntry
	for _, e := range entries {
		if symbol == "" || e.Symbol == symbol {
			filtered = append(filtered, e)
		}
	}
	if limit > 0 && len(filtered) > limit {
		filtered = filtered[len(filtered)-limit:]
	}
	for i, k := 0, len(filtered)-1; i < k; i, k = i+1, k-1 {
		filtered[i], filtered[k] = filtered[k], filtered[i]
	}
	return filtered, nil
}

// Window returns entries at or after since, oldest first.
func (j *CSVJournal) Window(ctx context.Context, since time.Time) ([]models.JournalEntry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	entries, err := j.readAll()
	if err != nil {
		return nil, err
	}
	var out []models.JournalEntry
	for _, e := range entries {
		if !e.Timestamp.Before(since) {
			out = append(out, e)
		}
	}
	return out, nil
}

// Prune drops entries older than keep, backing up the previous file first.
func (j *CSVJournal) Prune(ctx context.Context, keep time.Duration) (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	entries, err := j.readAll()
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().Add(-keep)
	kept := entries[:0]
	for _, e := range entries {
		if !e.Timestamp.Before(cutoff) {
			kept = append(kept, e)
		}
	}
	removed := len(entries) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	if raw, err := os.ReadFile(j.path); err == nil {
		_ = os.WriteFile(j.path+".bak", raw, 0o644)
	}
	if err := j.rewrite(kept); err != nil {
		return 0, err
	}
	return removed, nil
}

func (j *CSVJournal) Close() error { return nil }

// readAll parses the whole file. Callers must hold the mutex.
func (j *CSVJournal) readAll() ([]models.JournalEntry, error) {
	b, err := os.ReadFile(j.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	rows, err := csv.NewReader(bytes.NewReader(b)).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse journal: %w", err)
	}
	if len(rows) <= 1 {
		return nil, nil
	}
	out := make([]models.JournalEntry, 0, len(rows)-1)
	for _, row := range rows[1:] {
		e, err := decodeJournalRow(row)
		if err != nil {
			return nil, fmt.Errorf("decode journal row: %w", err)
		}
		out = append(out, e)
	}
	return out, nil
}

// rewrite replaces the whole file. Callers must hold the mutex.
func (j *CSVJournal) rewrite(entries []models.JournalEntry) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(journalHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i := range entries {
		if err := w.Write(encodeJournalRow(&entries[i])); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush journal: %w", err)
	}
	return writeAtomic(j.path, buf.Bytes())
}

func encodeJournalRow(e *models.JournalEntry) []string {
	return []string{
		e.ID,
		e.Timestamp.UTC().Format(time.RFC3339),
		e.Symbol,
		e.Direction,
		formatFloat(e.Score),
		formatFloat(e.Confidence),
		e.MarketState,
		e.Trigger,
		strconv.FormatBool(e.DecisionApproved),
		strconv.FormatBool(e.RiskApproved),
		formatFloat(e.RiskScore),
		e.UserAction,
		e.Outcome,
		formatFloat(e.PnL),
		e.Notes,
	}
}

func decodeJournalRow(row []string) (models.JournalEntry, error) {
	if len(row) != len(journalHeader) {
		return models.JournalEntry{}, fmt.Errorf("row has %d columns, want %d", len(row), len(journalHeader))
	}
	ts, err := time.Parse(time.RFC3339, row[1])
	if err != nil {
		return models.JournalEntry{}, fmt.Errorf("timestamp: %w", err)
	}
	score, err := strconv.ParseFloat(row[4], 64)
	if err != nil {
		return models.JournalEntry{}, fmt.Errorf("score: %w", err)
	}
	conf, err := strconv.ParseFloat(row[5], 64)
	if err != nil {
		return models.JournalEntry{}, fmt.Errorf("confidence: %w", err)
	}
	decApproved, err := strconv.ParseBool(row[8])
	if err != nil {
		return models.JournalEntry{}, fmt.Errorf("decision_approved: %w", err)
	}
	riskApproved, err := strconv.ParseBool(row[9])
	if err != nil {
		return models.JournalEntry{}, fmt.Errorf("risk_approved: %w", err)
	}
	riskScore, err := strconv.ParseFloat(row[10], 64)
	if err != nil {
		return models.JournalEntry{}, fmt.Errorf("risk_score: %w", err)
	}
	pnl, err := strconv.ParseFloat(row[13], 64)
	if err != nil {
		return models.JournalEntry{}, fmt.Errorf("pnl: %w", err)
	}
	return models.JournalEntry{
		ID:               row[0],
		Timestamp:        ts,
		Symbol:           row[2],
		Direction:        row[3],
		Score:            score,
		Confidence:       conf,
		MarketState:      row[6],
		Trigger:          row[7],
		DecisionApproved: decApproved,
		RiskApproved:     riskApproved,
		RiskScore:        riskScore,
		UserAction:       row[11],
		Outcome:          row[12],
		PnL:              pnl,
		Notes:            row[14],
	}, nil
}
