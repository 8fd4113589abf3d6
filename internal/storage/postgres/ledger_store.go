package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"modquant-lab/internal/domain"
	"modquant-lab/internal/storage"
)

// LedgerStore implements storage.LedgerStore using PostgreSQL.
type LedgerStore struct {
	pool *Pool
}

// NewLedgerStore creates a new LedgerStore.
func NewLedgerStore(pool *Pool) *LedgerStore {
	return &LedgerStore{pool: pool}
}

// Compile-time interface check.
var _ storage.LedgerStore = (*LedgerStore)(nil)

// Insert adds a ledger. Returns ErrDuplicateKey if ledger_id exists.
func (s *LedgerStore) Insert(ctx context.Context, l *domain.Ledger) (err error) {
	defer func(start time.Time) { observe("insert_ledger", start, err) }(time.Now())

	query := `
		INSERT INTO ledgers (ledger_id, name, kind, format, record_count, skipped, ingested_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = s.pool.Exec(ctx, query,
		l.LedgerID, l.Name, string(l.Kind), l.Format, l.RecordCount, l.Skipped, l.IngestedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert ledger: %w", err)
	}
	return nil
}

// GetByID retrieves a ledger by ID. Returns ErrNotFound if not exists.
func (s *LedgerStore) GetByID(ctx context.Context, ledgerID string) (_ *domain.Ledger, err error) {
	defer func(start time.Time) { observe("get_ledger", start, err) }(time.Now())

	query := `
		SELECT ledger_id, name, kind, format, record_count, skipped, ingested_at
		FROM ledgers
		WHERE ledger_id = $1
	`

	l, err := scanLedger(s.pool.QueryRow(ctx, query, ledgerID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get ledger by id: %w", err)
	}
	return l, nil
}

// List returns all ledgers ordered by ingested_at ASC, ledger_id ASC.
func (s *LedgerStore) List(ctx context.Context) (_ []*domain.Ledger, err error) {
	defer func(start time.Time) { observe("list_ledgers", start, err) }(time.Now())

	query := `
		SELECT ledger_id, name, kind, format, record_count, skipped, ingested_at
		FROM ledgers
		ORDER BY ingested_at ASC, ledger_id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list ledgers: %w", err)
	}
	defer rows.Close()

	var ledgers []*domain.Ledger
	for rows.Next() {
		l, err := scanLedger(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ledger row: %w", err)
		}
		ledgers = append(ledgers, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger rows: %w", err)
	}
	return ledgers, nil
}

// scanLedger scans a single row into a Ledger.
func scanLedger(row pgx.Row) (*domain.Ledger, error) {
	var l domain.Ledger
	var kind string
	if err := row.Scan(&l.LedgerID, &l.Name, &kind, &l.Format, &l.RecordCount, &l.Skipped, &l.IngestedAt); err != nil {
		return nil, err
	}
	l.Kind = domain.LedgerKind(kind)
	return &l, nil
}
