package memory

import (
	"context"
	"sort"
	"sync"

	"modquant-lab/internal/domain"
	"modquant-lab/internal/storage"
)

type tradeKey struct {
	ledgerID string
	seq      int
}

// TradeStore is an in-memory implementation of storage.TradeStore.
type TradeStore struct {
	mu   sync.RWMutex
	data map[tradeKey]*domain.Trade
}

// NewTradeStore creates a new in-memory trade store.
func NewTradeStore() *TradeStore {
	return &TradeStore{
		data: make(map[tradeKey]*domain.Trade),
	}
}

// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
func (s *TradeStore) InsertBulk(_ context.Context, trades []*domain.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track keys in this batch to detect intra-batch duplicates
	batchKeys := make(map[tradeKey]struct{}, len(trades))

	// First pass: check for duplicates (existing + intra-batch)
	for _, t := range trades {
		if t == nil || t.LedgerID == "" || t.Seq < 0 {
			return storage.ErrInvalidInput
		}
		key := tradeKey{t.LedgerID, t.Seq}
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	// Second pass: insert all
	for _, t := range trades {
		copy := *t
		s.data[tradeKey{t.LedgerID, t.Seq}] = &copy
	}

	return nil
}

// GetByLedger retrieves all trades of a ledger, ordered by seq ASC.
func (s *TradeStore) GetByLedger(_ context.Context, ledgerID string) ([]*domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Trade
	for k, t := range s.data {
		if k.ledgerID == ledgerID {
			copy := *t
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Seq < result[j].Seq
	})

	return result, nil
}

var _ storage.TradeStore = (*TradeStore)(nil)
