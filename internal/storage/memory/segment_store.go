package memory

import (
	"context"
	"sort"
	"sync"

	"modquant-lab/internal/domain"
	"modquant-lab/internal/storage"
)

type segmentKey struct {
	ledgerID     string
	segmentation string
	index        int
}

// SegmentStore is an in-memory implementation of storage.SegmentStore.
type SegmentStore struct {
	mu   sync.RWMutex
	data map[segmentKey]*domain.Segment
}

// NewSegmentStore creates a new in-memory segment store.
func NewSegmentStore() *SegmentStore {
	return &SegmentStore{
		data: make(map[segmentKey]*domain.Segment),
	}
}

func keyOf(s *domain.Segment) segmentKey {
	return segmentKey{s.LedgerID, s.Segmentation, s.Index}
}

// InsertBulk adds segments atomically. Fails entire batch on any duplicate.
func (s *SegmentStore) InsertBulk(_ context.Context, segments []*domain.Segment) error {
	if len(segments) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[segmentKey]struct{}, len(segments))
	for _, seg := range segments {
		if seg == nil || seg.LedgerID == "" || seg.Segmentation == "" || seg.Index < 0 {
			return storage.ErrInvalidInput
		}
		key := keyOf(seg)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, seg := range segments {
		copy := *seg
		s.data[keyOf(seg)] = &copy
	}
	return nil
}

// GetByLedger retrieves the segments of a ledger under one policy, ordered by index ASC.
func (s *SegmentStore) GetByLedger(_ context.Context, ledgerID, segmentation string) ([]*domain.Segment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Segment
	for k, seg := range s.data {
		if k.ledgerID == ledgerID && k.segmentation == segmentation {
			copy := *seg
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Index < result[j].Index
	})
	return result, nil
}

var _ storage.SegmentStore = (*SegmentStore)(nil)
