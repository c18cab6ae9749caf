package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"FxPulse/internal/domain/models"
	drepo "FxPulse/internal/domain/repository"
)

// FileRiskStore persists the daily risk state as one JSON document.
type FileRiskStore struct {
	path string
	mu   sync.Mutex
}

var _ drepo.RiskStore = (*FileRiskStore)(nil)

// NewFileRiskStore creates a store writing to path.
func NewFileRiskStore(path string) *FileRiskStore {
	return &FileRiskStore{path: path}
}

func (s *FileRiskStore) Load() (*models.DailyRiskState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read risk state: %w", err)
	}
	var st models.DailyRiskState
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, fmt.Errorf("decode risk state: %w", err)
	}
	return &st, nil
}

func (s *FileRiskStore) Save(state *models.DailyRiskState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode risk state: %w", err)
	}
	return writeAtomic(s.path, b)
}
