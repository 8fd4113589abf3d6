package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"modquant-lab/internal/domain"
	"modquant-lab/internal/storage"
)

// TradeStore implements storage.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *Pool
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(pool *Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
func (s *TradeStore) InsertBulk(ctx context.Context, trades []*domain.Trade) (err error) {
	if len(trades) == 0 {
		return nil
	}
	defer func(start time.Time) { observe("insert_trades", start, err) }(time.Now())

	for _, t := range trades {
		if t == nil || t.LedgerID == "" || t.Seq < 0 {
			return storage.ErrInvalidInput
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO trades (
			ledger_id, seq, entry_time, exit_time,
			entry_price, exit_price, direction, pnl
		) VALUES (
			$1, $2, $3, $4,
			CAST($5::text AS NUMERIC), CAST($6::text AS NUMERIC), $7, CAST($8::text AS NUMERIC)
		)
	`

	batch := &pgx.Batch{}
	for _, t := range trades {
		batch.Queue(query,
			t.LedgerID, t.Seq, t.EntryTime, t.ExitTime,
			t.EntryPrice.String(), t.ExitPrice.String(), string(t.Direction), t.PnL.String(),
		)
	}

	br := tx.SendBatch(ctx, batch)
	for range trades {
		if _, err := br.Exec(); err != nil {
			br.Close()
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert trade in bulk: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByLedger retrieves all trades of a ledger, ordered by seq ASC.
func (s *TradeStore) GetByLedger(ctx context.Context, ledgerID string) (_ []*domain.Trade, err error) {
	defer func(start time.Time) { observe("get_trades", start, err) }(time.Now())

	query := `
		SELECT
			ledger_id, seq, entry_time, exit_time,
			entry_price::text, exit_price::text, direction, pnl::text
		FROM trades
		WHERE ledger_id = $1
		ORDER BY seq ASC
	`

	rows, err := s.pool.Query(ctx, query, ledgerID)
	if err != nil {
		return nil, fmt.Errorf("get trades by ledger: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// scanTrades scans multiple rows into a slice of Trade.
func scanTrades(rows pgx.Rows) ([]*domain.Trade, error) {
	var trades []*domain.Trade

	for rows.Next() {
		var t domain.Trade
		var entryPrice, exitPrice, pnl, direction string

		if err := rows.Scan(
			&t.LedgerID, &t.Seq, &t.EntryTime, &t.ExitTime,
			&entryPrice, &exitPrice, &direction, &pnl,
		); err != nil {
			return nil, fmt.Errorf("scan trade row: %w", err)
		}

		var err error
		if t.EntryPrice, err = parseNumeric(entryPrice); err != nil {
			return nil, err
		}
		if t.ExitPrice, err = parseNumeric(exitPrice); err != nil {
			return nil, err
		}
		if t.PnL, err = parseNumeric(pnl); err != nil {
			return nil, err
		}
		t.Direction = domain.Direction(direction)

		trades = append(trades, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade rows: %w", err)
	}

	return trades, nil
}
