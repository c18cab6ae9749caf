package repository

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"FxPulse/internal/domain/models"
	drepo "FxPulse/internal/domain/repository"
)

var candleHeader = []string{"timestamp", "open", "high", "low", "close", "volume", "source"}

// FileContextStore keeps per-symbol candle snapshots as small CSV files under
// one directory: <symbol>_session.csv for the pre-close context and
// <symbol>_degraded.csv for the degraded-session buffer.
type FileContextStore struct {
	dir string
	mu  sync.Mutex
}

var _ drepo.ContextStore = (*FileContextStore)(nil)

// NewFileContextStore creates a store rooted at dir.
func NewFileContextStore(dir string) *FileContextStore {
	return &FileContextStore{dir: dir}
}

func (s *FileContextStore) SaveSessionContext(symbol string, candles []models.Candle) error {
	return s.save(symbol, "session", candles)
}

func (s *FileContextStore) LoadSessionContext(symbol string) ([]models.Candle, error) {
	return s.load(symbol, "session")
}

func (s *FileContextStore) SaveDegradedSnapshot(symbol string, candles []models.Candle) error {
	return s.save(symbol, "degraded", candles)
}

func (s *FileContextStore) LoadDegradedSnapshot(symbol string) ([]models.Candle, error) {
	return s.load(symbol, "degraded")
}

func (s *FileContextStore) path(symbol, kind string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_%s.csv", safeName(symbol), kind))
}

func (s *FileContextStore) save(symbol, kind string, candles []models.Candle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(candleHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, c := range candles {
		row := []string{
			c.Timestamp.UTC().Format(time.RFC3339),
			formatFloat(c.Open),
			formatFloat(c.High),
			formatFloat(c.Low),
			formatFloat(c.Close),
			formatFloat(c.Volume),
			string(c.Source),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write candle: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return writeAtomic(s.path(symbol, kind), buf.Bytes())
}

func (s *FileContextStore) load(symbol, kind string) ([]models.Candle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.path(symbol, kind))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s context: %w", kind, err)
	}

	rows, err := csv.NewReader(bytes.NewReader(b)).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse %s context: %w", kind, err)
	}
	if len(rows) <= 1 {
		return nil, nil
	}

	out := make([]models.Candle, 0, len(rows)-1)
	for _, row := range rows[1:] {
		c, err := decodeCandleRow(symbol, row)
		if err != nil {
			return nil, fmt.Errorf("decode %s context: %w", kind, err)
		}
		out = append(out, c)
	}
	return out, nil
}

func decodeCandleRow(symbol string, row []string) (models.Candle, error) {
	if len(row) != len(candleHeader) {
		return models.Candle{}, fmt.Errorf("row has %d columns, want %d", len(row), len(candleHeader))
	}
	ts, err := time.Parse(time.RFC3339, row[0])
	if err != nil {
		return models.Candle{}, fmt.Errorf("timestamp: %w", err)
	}
	vals := make([]float64, 5)
	for i := 0; i < 5; i++ {
		v, err := strconv.ParseFloat(row[i+1], 64)
		if err != nil {
			return models.Candle{}, fmt.Errorf("column %s: %w", candleHeader[i+1], err)
		}
		vals[i] = v
	}
	return models.Candle{
		Symbol:    symbol,
		Timestamp: ts,
		Open:      vals[0],
		High:      vals[1],
		Low:       vals[2],
		Close:     vals[3],
		Volume:    vals[4],
		Source:    models.Quality(row[6]),
	}, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
