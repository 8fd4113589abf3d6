package pipeline

import (
	"context"
	"fmt"

	"modquant-lab/internal/config"
	chstore "modquant-lab/internal/storage/clickhouse"
	"modquant-lab/internal/storage/migrations"
	pgstore "modquant-lab/internal/storage/postgres"
)

// OpenStores creates the stores selected by the storage config.
// In db mode ledgers, trades and segments live in PostgreSQL and runs in
// ClickHouse; migrate applies the embedded schema first.
// The returned cleanup closes every connection.
func OpenStores(ctx context.Context, cfg config.Storage, migrate bool) (Stores, func(), error) {
	if cfg.Mode != config.StorageDB {
		return MemoryStores(), func() {}, nil
	}

	// PostgreSQL
	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return Stores{}, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if migrate {
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return Stores{}, nil, fmt.Errorf("postgres migrations: %w", err)
		}
	}

	// ClickHouse
	var chConn *chstore.Conn
	if migrate {
		chConn, err = migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
	} else {
		chConn, err = chstore.NewConn(ctx, cfg.ClickhouseDSN)
	}
	if err != nil {
		pool.Close()
		return Stores{}, nil, fmt.Errorf("connect to clickhouse: %w", err)
	}

	stores := Stores{
		Ledgers:  pgstore.NewLedgerStore(pool),
		Trades:   pgstore.NewTradeStore(pool),
		Segments: pgstore.NewSegmentStore(pool),
		Runs:     chstore.NewBacktestRunStore(chConn),
	}
	cleanup := func() {
		chConn.Close()
		pool.Close()
	}
	return stores, cleanup, nil
}
