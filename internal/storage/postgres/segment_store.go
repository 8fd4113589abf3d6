package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"modquant-lab/internal/domain"
	"modquant-lab/internal/storage"
)

// SegmentStore implements storage.SegmentStore using PostgreSQL.
type SegmentStore struct {
	pool *Pool
}

// NewSegmentStore creates a new SegmentStore.
func NewSegmentStore(pool *Pool) *SegmentStore {
	return &SegmentStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SegmentStore = (*SegmentStore)(nil)

// InsertBulk adds segments atomically. Fails entire batch on any duplicate.
func (s *SegmentStore) InsertBulk(ctx context.Context, segments []*domain.Segment) (err error) {
	if len(segments) == 0 {
		return nil
	}
	defer func(start time.Time) { observe("insert_segments", start, err) }(time.Now())

	for _, seg := range segments {
		if seg == nil || seg.LedgerID == "" || seg.Segmentation == "" || seg.Index < 0 {
			return storage.ErrInvalidInput
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO segments (
			ledger_id, segmentation, idx, direction,
			start_time, end_time, first_trade,
			trade_count, win_trades, loss_trades,
			total_pnl, outcome
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7,
			$8, $9, $10,
			CAST($11::text AS NUMERIC), $12
		)
	`

	for _, seg := range segments {
		_, err := tx.Exec(ctx, query,
			seg.LedgerID, seg.Segmentation, seg.Index, string(seg.Direction),
			seg.StartTime, seg.EndTime, seg.FirstTrade,
			seg.TradeCount, seg.WinTrades, seg.LossTrades,
			seg.TotalPnL.String(), string(seg.Outcome),
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert segment in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByLedger retrieves the segments of a ledger under one policy, ordered by index ASC.
func (s *SegmentStore) GetByLedger(ctx context.Context, ledgerID, segmentation string) (_ []*domain.Segment, err error) {
	defer func(start time.Time) { observe("get_segments", start, err) }(time.Now())

	query := `
		SELECT
			ledger_id, segmentation, idx, direction,
			start_time, end_time, first_trade,
			trade_count, win_trades, loss_trades,
			total_pnl::text, outcome
		FROM segments
		WHERE ledger_id = $1 AND segmentation = $2
		ORDER BY idx ASC
	`

	rows, err := s.pool.Query(ctx, query, ledgerID, segmentation)
	if err != nil {
		return nil, fmt.Errorf("get segments by ledger: %w", err)
	}
	defer rows.Close()

	return scanSegments(rows)
}

// scanSegments scans multiple rows into a slice of Segment.
func scanSegments(rows pgx.Rows) ([]*domain.Segment, error) {
	var segments []*domain.Segment

	for rows.Next() {
		var seg domain.Segment
		var direction, outcome, totalPnL string

		if err := rows.Scan(
			&seg.LedgerID, &seg.Segmentation, &seg.Index, &direction,
			&seg.StartTime, &seg.EndTime, &seg.FirstTrade,
			&seg.TradeCount, &seg.WinTrades, &seg.LossTrades,
			&totalPnL, &outcome,
		); err != nil {
			return nil, fmt.Errorf("scan segment row: %w", err)
		}

		pnl, err := parseNumeric(totalPnL)
		if err != nil {
			return nil, err
		}
		seg.TotalPnL = pnl
		seg.Direction = domain.Direction(direction)
		seg.Outcome = domain.Outcome(outcome)

		segments = append(segments, &seg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate segment rows: %w", err)
	}

	return segments, nil
}
