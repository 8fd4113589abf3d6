package pipeline

import (
	"context"
	"testing"

	"modquant-lab/internal/config"
)

func TestOpenStores_Memory(t *testing.T) {
	stores, cleanup, err := OpenStores(context.Background(), config.Storage{Mode: config.StorageMemory}, false)
	if err != nil {
		t.Fatalf("OpenStores failed: %v", err)
	}
	defer cleanup()

	if stores.Ledgers == nil || stores.Trades == nil || stores.Segments == nil || stores.Runs == nil {
		t.Errorf("expected every store to be set, got %+v", stores)
	}
}

func TestOpenStores_BadDSN(t *testing.T) {
	cfg := config.Storage{Mode: config.StorageDB, PostgresDSN: "not a dsn", ClickhouseDSN: "clickhouse://localhost/x"}
	if _, _, err := OpenStores(context.Background(), cfg, false); err == nil {
		t.Error("expected error for malformed postgres DSN")
	}
}
