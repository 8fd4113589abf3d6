package clickhouse

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modquant-lab/internal/domain"
	"modquant-lab/internal/storage"
)

func makeRun(runID, ledgerID string, createdAt int64) *domain.BacktestRun {
	return &domain.BacktestRun{
		RunID:        runID,
		LedgerID:     ledgerID,
		Segmentation: domain.SegmentationOscillation,
		ReversalRun:  3,
		Config: domain.FollowConfig{
			LossThreshold: 2,
			StopPolicy:    domain.StopPolicyWinRate,
			TargetWinRate: ptr(50.0),
		},
		Labels:       "LLLWW",
		SegmentCount: 5,
		Selected: domain.StatSummary{
			Count:                3,
			Wins:                 1,
			Losses:               2,
			WinRate:              1.0 / 3,
			WinPnL:               decimal.RequireFromString("120.5"),
			LossPnL:              decimal.RequireFromString("-80"),
			TotalPnL:             decimal.RequireFromString("40.5"),
			PayoutRatio:          domain.Some(1.50625),
			MedianWin:            domain.Some(decimal.RequireFromString("120.5")),
			MedianLoss:           domain.Some(decimal.RequireFromString("-40")),
			MaxConsecutiveLosses: 2,
		},
		Baseline: domain.StatSummary{
			Count:                5,
			Wins:                 2,
			Losses:               3,
			WinRate:              0.4,
			WinPnL:               decimal.RequireFromString("150"),
			LossPnL:              decimal.Zero,
			TotalPnL:             decimal.RequireFromString("150"),
			MedianWin:            domain.Some(decimal.RequireFromString("75")),
			MaxConsecutiveLosses: 3,
		},
		Streaks: []domain.Streak{
			{Number: 1, Members: []int{1, 2, 3}, Wins: 1, Losses: 2, Labels: "LLW", WinRate: 100.0 / 3},
			{Number: 2, Members: []int{4}, Wins: 1, Labels: "W", WinRate: 100, Completed: true},
		},
		CreatedAt: createdAt,
	}
}

func TestBacktestRunStore_InsertAndGet(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewBacktestRunStore(conn)
	ctx := context.Background()

	run := makeRun("run-1", "ledger-a", 1700000000000)
	require.NoError(t, store.Insert(ctx, run))

	got, err := store.GetByID(ctx, "run-1")
	require.NoError(t, err)

	assert.Equal(t, run.LedgerID, got.LedgerID)
	assert.Equal(t, run.Segmentation, got.Segmentation)
	assert.Equal(t, 50.0, *got.Config.TargetWinRate)
	assert.Equal(t, "LLLWW", got.Labels)
	assert.True(t, run.Selected.TotalPnL.Equal(got.Selected.TotalPnL))

	payout, ok := got.Selected.PayoutRatio.Get()
	assert.True(t, ok)
	assert.InDelta(t, 1.50625, payout, 1e-12)

	// Undefined statistics come back undefined
	assert.False(t, got.Baseline.PayoutRatio.Defined())
	assert.False(t, got.Baseline.MedianLoss.Defined())

	require.Len(t, got.Streaks, 2)
	assert.Equal(t, []int{1, 2, 3}, got.Streaks[0].Members)
	assert.False(t, got.Streaks[0].Completed)
	assert.Equal(t, []int{4}, got.Streaks[1].Members)
	assert.True(t, got.Streaks[1].Completed)
}

func TestBacktestRunStore_Duplicate(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewBacktestRunStore(conn)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, makeRun("run-1", "ledger-a", 1)))
	assert.ErrorIs(t, store.Insert(ctx, makeRun("run-1", "ledger-a", 2)), storage.ErrDuplicateKey)
}

func TestBacktestRunStore_NotFound(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := NewBacktestRunStore(conn).GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestBacktestRunStore_GetByLedger(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewBacktestRunStore(conn)
	ctx := context.Background()

	noStreaks := makeRun("run-b", "ledger-a", 100)
	noStreaks.Streaks = nil
	require.NoError(t, store.Insert(ctx, noStreaks))
	require.NoError(t, store.Insert(ctx, makeRun("run-a", "ledger-a", 100)))
	require.NoError(t, store.Insert(ctx, makeRun("run-c", "ledger-a", 50)))
	require.NoError(t, store.Insert(ctx, makeRun("run-x", "ledger-b", 10)))

	runs, err := store.GetByLedger(ctx, "ledger-a")
	require.NoError(t, err)
	require.Len(t, runs, 3)

	assert.Equal(t, "run-c", runs[0].RunID)
	assert.Equal(t, "run-a", runs[1].RunID)
	assert.Equal(t, "run-b", runs[2].RunID)
	assert.Len(t, runs[1].Streaks, 2)
	assert.Empty(t, runs[2].Streaks)
}
