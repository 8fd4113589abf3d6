package memory

import (
	"context"
	"sort"
	"sync"

	"modquant-lab/internal/domain"
	"modquant-lab/internal/storage"
)

// BacktestRunStore is an in-memory implementation of storage.BacktestRunStore.
type BacktestRunStore struct {
	mu   sync.RWMutex
	data map[string]*domain.BacktestRun // keyed by run_id
}

// NewBacktestRunStore creates a new in-memory backtest run store.
func NewBacktestRunStore() *BacktestRunStore {
	return &BacktestRunStore{
		data: make(map[string]*domain.BacktestRun),
	}
}

// Insert adds a run. Returns ErrDuplicateKey if run_id exists.
func (s *BacktestRunStore) Insert(_ context.Context, run *domain.BacktestRun) error {
	if run == nil || run.RunID == "" || run.LedgerID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[run.RunID]; exists {
		return storage.ErrDuplicateKey
	}
	s.data[run.RunID] = copyRun(run)
	return nil
}

// GetByID retrieves a run by ID. Returns ErrNotFound if not exists.
func (s *BacktestRunStore) GetByID(_ context.Context, runID string) (*domain.BacktestRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, exists := s.data[runID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyRun(run), nil
}

// GetByLedger retrieves all runs for a ledger, ordered by created_at ASC, run_id ASC.
func (s *BacktestRunStore) GetByLedger(_ context.Context, ledgerID string) ([]*domain.BacktestRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.BacktestRun
	for _, run := range s.data {
		if run.LedgerID == ledgerID {
			result = append(result, copyRun(run))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt != result[j].CreatedAt {
			return result[i].CreatedAt < result[j].CreatedAt
		}
		return result[i].RunID < result[j].RunID
	})
	return result, nil
}

// copyRun deep-copies the streaks and the target pointer.
func copyRun(run *domain.BacktestRun) *domain.BacktestRun {
	c := *run
	if run.Config.TargetWinRate != nil {
		v := *run.Config.TargetWinRate
		c.Config.TargetWinRate = &v
	}
	c.Streaks = make([]domain.Streak, len(run.Streaks))
	for i, st := range run.Streaks {
		c.Streaks[i] = st
		c.Streaks[i].Members = append([]int(nil), st.Members...)
	}
	return &c
}

var _ storage.BacktestRunStore = (*BacktestRunStore)(nil)
