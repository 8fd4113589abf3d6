package storage

import (
	"context"

	"modquant-lab/internal/domain"
)

// LedgerStore provides access to ingested ledger metadata.
type LedgerStore interface {
	// Insert adds a ledger. Returns ErrDuplicateKey if ledger_id exists.
	Insert(ctx context.Context, l *domain.Ledger) error

	// GetByID retrieves a ledger by ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, ledgerID string) (*domain.Ledger, error)

	// List returns all ledgers ordered by ingested_at ASC, ledger_id ASC.
	List(ctx context.Context) ([]*domain.Ledger, error)
}

// TradeStore provides access to parsed trades.
type TradeStore interface {
	// InsertBulk adds the trades of one or more ledgers atomically.
	// Fails entire batch on any duplicate (ledger_id, seq).
	InsertBulk(ctx context.Context, trades []*domain.Trade) error

	// GetByLedger retrieves all trades of a ledger, ordered by seq ASC.
	GetByLedger(ctx context.Context, ledgerID string) ([]*domain.Trade, error)
}

// SegmentStore provides access to built segments.
// Segments are keyed by (ledger_id, segmentation, index): the same ledger
// segmented under different policies yields independent sequences.
type SegmentStore interface {
	// InsertBulk adds segments atomically. Fails entire batch on any duplicate key.
	InsertBulk(ctx context.Context, segments []*domain.Segment) error

	// GetByLedger retrieves the segments of a ledger under one policy, ordered by index ASC.
	GetByLedger(ctx context.Context, ledgerID, segmentation string) ([]*domain.Segment, error)
}

// BacktestRunStore provides access to backtest results.
type BacktestRunStore interface {
	// Insert adds a run with its streaks. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, run *domain.BacktestRun) error

	// GetByID retrieves a run with its streaks. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID string) (*domain.BacktestRun, error)

	// GetByLedger retrieves all runs for a ledger, ordered by created_at ASC, run_id ASC.
	GetByLedger(ctx context.Context, ledgerID string) ([]*domain.BacktestRun, error)
}
