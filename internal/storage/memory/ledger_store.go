package memory

import (
	"context"
	"sort"
	"sync"

	"modquant-lab/internal/domain"
	"modquant-lab/internal/storage"
)

// LedgerStore is an in-memory implementation of storage.LedgerStore.
type LedgerStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Ledger // keyed by ledger_id
}

// NewLedgerStore creates a new in-memory ledger store.
func NewLedgerStore() *LedgerStore {
	return &LedgerStore{
		data: make(map[string]*domain.Ledger),
	}
}

// Insert adds a ledger. Returns ErrDuplicateKey if ledger_id exists.
func (s *LedgerStore) Insert(_ context.Context, l *domain.Ledger) error {
	if l == nil || l.LedgerID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[l.LedgerID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *l
	s.data[l.LedgerID] = &copy
	return nil
}

// GetByID retrieves a ledger by ID. Returns ErrNotFound if not exists.
func (s *LedgerStore) GetByID(_ context.Context, ledgerID string) (*domain.Ledger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, exists := s.data[ledgerID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	copy := *l
	return &copy, nil
}

// List returns all ledgers ordered by ingested_at ASC, ledger_id ASC.
func (s *LedgerStore) List(_ context.Context) ([]*domain.Ledger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Ledger, 0, len(s.data))
	for _, l := range s.data {
		copy := *l
		result = append(result, &copy)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].IngestedAt != result[j].IngestedAt {
			return result[i].IngestedAt < result[j].IngestedAt
		}
		return result[i].LedgerID < result[j].LedgerID
	})
	return result, nil
}

var _ storage.LedgerStore = (*LedgerStore)(nil)
