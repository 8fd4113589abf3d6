package postgres

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modquant-lab/internal/domain"
	"modquant-lab/internal/storage"
)

func TestLedgerStore_InsertGetList(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewLedgerStore(pool)

	l := &domain.Ledger{
		LedgerID:    "ledger-a",
		Name:        "ag_250424.txt",
		Kind:        domain.LedgerKindTrades,
		Format:      "price-sign",
		RecordCount: 42,
		Skipped:     1,
		IngestedAt:  1000,
	}
	require.NoError(t, store.Insert(ctx, l))

	err := store.Insert(ctx, l)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	got, err := store.GetByID(ctx, "ledger-a")
	require.NoError(t, err)
	assert.Equal(t, l, got)

	_, err = store.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.Insert(ctx, &domain.Ledger{
		LedgerID: "ledger-0", Name: "seq.txt", Kind: domain.LedgerKindLabels, RecordCount: 3, IngestedAt: 500,
	}))
	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "ledger-0", list[0].LedgerID)
	assert.Equal(t, "ledger-a", list[1].LedgerID)
}

func TestTradeStore_InsertBulkAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTradeStore(pool)

	trades := []*domain.Trade{
		{
			LedgerID: "l1", Seq: 0, EntryTime: "2025/04/01 09:05", ExitTime: "2025/04/01 10:30",
			EntryPrice: decimal.RequireFromString("8120.5"), ExitPrice: decimal.RequireFromString("8150"),
			Direction: domain.DirectionLong, PnL: decimal.RequireFromString("300.125"),
		},
		{
			LedgerID: "l1", Seq: 1, EntryTime: "2025/04/01 10:31", ExitTime: "2025/04/01 11:00",
			EntryPrice: decimal.RequireFromString("-8150"), ExitPrice: decimal.RequireFromString("8130"),
			Direction: domain.DirectionShort, PnL: decimal.RequireFromString("-0.000001"),
		},
	}
	require.NoError(t, store.InsertBulk(ctx, trades))

	got, err := store.GetByLedger(ctx, "l1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	for i := range trades {
		assert.Equal(t, trades[i].Seq, got[i].Seq)
		assert.Equal(t, trades[i].Direction, got[i].Direction)
		assert.True(t, trades[i].PnL.Equal(got[i].PnL), "pnl %s != %s", trades[i].PnL, got[i].PnL)
		assert.True(t, trades[i].EntryPrice.Equal(got[i].EntryPrice))
	}

	// Batch with one duplicate is rejected entirely
	err = store.InsertBulk(ctx, []*domain.Trade{
		{LedgerID: "l1", Seq: 2, Direction: domain.DirectionLong},
		{LedgerID: "l1", Seq: 0, Direction: domain.DirectionLong},
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	got, err = store.GetByLedger(ctx, "l1")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestSegmentStore_InsertBulkAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewSegmentStore(pool)

	segments := []*domain.Segment{
		{
			LedgerID: "l1", Segmentation: "OSCILLATION_run3", Index: 0, Direction: domain.DirectionLong,
			StartTime: "a", EndTime: "b", FirstTrade: 0, TradeCount: 3, WinTrades: 2, LossTrades: 1,
			TotalPnL: decimal.RequireFromString("12.75"), Outcome: domain.OutcomeWin,
		},
		{
			LedgerID: "l1", Segmentation: "OSCILLATION_run3", Index: 1, Direction: domain.DirectionShort,
			StartTime: "c", EndTime: "d", FirstTrade: 3, TradeCount: 1, LossTrades: 1,
			TotalPnL: decimal.RequireFromString("0"), Outcome: domain.OutcomeLoss,
		},
	}
	require.NoError(t, store.InsertBulk(ctx, segments))

	got, err := store.GetByLedger(ctx, "l1", "OSCILLATION_run3")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, domain.OutcomeWin, got[0].Outcome)
	assert.True(t, got[0].TotalPnL.Equal(decimal.RequireFromString("12.75")))
	assert.Equal(t, 3, got[1].FirstTrade)

	other, err := store.GetByLedger(ctx, "l1", "STRICT")
	require.NoError(t, err)
	assert.Empty(t, other)

	err = store.InsertBulk(ctx, segments[:1])
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}
