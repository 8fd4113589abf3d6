package segmentation

import (
	"github.com/shopspring/decimal"

	"modquant-lab/internal/domain"
	"modquant-lab/internal/ledger"
)

// Builder turns an ordered trade list into ordered segments.
// It holds no mutable state and is safe for concurrent use.
type Builder struct {
	policy Policy
}

// NewBuilder creates a Builder for the given policy.
func NewBuilder(policy Policy) *Builder {
	return &Builder{policy: policy}
}

// Policy returns the configured policy.
func (b *Builder) Policy() Policy {
	return b.policy
}

// Build partitions trades into segments. Every trade belongs to exactly one
// segment and segment indices are contiguous from 0.
// Returns ledger.ErrEmptyInput for an empty trade list.
func (b *Builder) Build(trades []*domain.Trade) ([]*domain.Segment, error) {
	if len(trades) == 0 {
		return nil, ledger.ErrEmptyInput
	}

	dirs := make([]domain.Direction, len(trades))
	for i, t := range trades {
		dirs[i] = t.Direction
	}
	starts := b.policy.Boundaries(dirs)

	segments := make([]*domain.Segment, 0, len(starts))
	for i, start := range starts {
		end := len(trades)
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		segments = append(segments, newSegment(b.policy.ID(), i, trades[start:end]))
	}
	return segments, nil
}

// newSegment aggregates a non-empty run of trades.
func newSegment(policyID string, index int, members []*domain.Trade) *domain.Segment {
	first := members[0]
	last := members[len(members)-1]

	seg := &domain.Segment{
		LedgerID:     first.LedgerID,
		Segmentation: policyID,
		Index:        index,
		Direction:    first.Direction,
		StartTime:    first.EntryTime,
		EndTime:      last.ExitTime,
		FirstTrade:   first.Seq,
		TradeCount:   len(members),
		TotalPnL:     decimal.Zero,
	}
	for _, t := range members {
		switch {
		case t.IsWin():
			seg.WinTrades++
		case t.IsLoss():
			seg.LossTrades++
		}
		seg.TotalPnL = seg.TotalPnL.Add(t.PnL)
	}
	seg.Outcome = domain.OutcomeFromPnL(seg.TotalPnL)
	return seg
}
