package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"modquant-lab/internal/domain"
	"modquant-lab/internal/storage"
)

// BacktestRunStore implements storage.BacktestRunStore using ClickHouse.
// Runs and streaks live in separate ReplacingMergeTree tables; reads use FINAL.
type BacktestRunStore struct {
	conn *Conn
}

// NewBacktestRunStore creates a new BacktestRunStore.
func NewBacktestRunStore(conn *Conn) *BacktestRunStore {
	return &BacktestRunStore{conn: conn}
}

// Compile-time interface check.
var _ storage.BacktestRunStore = (*BacktestRunStore)(nil)

const runColumns = `
	run_id, ledger_id, segmentation, reversal_run,
	loss_threshold, stop_policy, target_win_rate,
	labels, segment_count,
	sel_count, sel_wins, sel_losses, sel_win_rate,
	sel_win_pnl, sel_loss_pnl, sel_total_pnl,
	sel_payout_ratio, sel_median_win, sel_median_loss, sel_max_consecutive_losses,
	base_count, base_wins, base_losses, base_win_rate,
	base_win_pnl, base_loss_pnl, base_total_pnl,
	base_payout_ratio, base_median_win, base_median_loss, base_max_consecutive_losses,
	created_at`

const streakColumns = `
	run_id, number, start_index, end_index,
	wins, losses, labels, win_rate, completed`

// Insert adds a run and its streaks. Returns ErrDuplicateKey if run_id exists.
func (s *BacktestRunStore) Insert(ctx context.Context, run *domain.BacktestRun) (err error) {
	defer func(start time.Time) { observe("backtest_run_insert", start, err) }(time.Now())

	if run == nil || run.RunID == "" || run.LedgerID == "" {
		return storage.ErrInvalidInput
	}

	// Check if exists (ReplacingMergeTree will replace, but we want append-only semantics)
	exists, err := s.exists(ctx, run.RunID)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	// Streaks first: a run row without its streaks must never be visible.
	if len(run.Streaks) > 0 {
		batch, err := s.conn.PrepareBatch(ctx, "INSERT INTO backtest_streaks ("+streakColumns+")")
		if err != nil {
			return fmt.Errorf("prepare streak batch: %w", err)
		}
		for _, st := range run.Streaks {
			if len(st.Members) == 0 {
				return storage.ErrInvalidInput
			}
			err = batch.Append(
				run.RunID, uint32(st.Number), uint32(st.Start()), uint32(st.End()),
				uint32(st.Wins), uint32(st.Losses), st.Labels, st.WinRate, st.Completed,
			)
			if err != nil {
				return fmt.Errorf("append streak: %w", err)
			}
		}
		if err := batch.Send(); err != nil {
			return fmt.Errorf("send streak batch: %w", err)
		}
	}

	args := []any{
		run.RunID, run.LedgerID, string(run.Segmentation), uint32(run.ReversalRun),
		uint32(run.Config.LossThreshold), string(run.Config.StopPolicy), run.Config.TargetWinRate,
		run.Labels, uint32(run.SegmentCount),
	}
	args = append(args, summaryArgs(&run.Selected)...)
	args = append(args, summaryArgs(&run.Baseline)...)
	args = append(args, run.CreatedAt)

	if err := s.conn.Exec(ctx, "INSERT INTO backtest_runs ("+runColumns+") VALUES ("+placeholders(len(args))+")", args...); err != nil {
		return fmt.Errorf("insert backtest run: %w", err)
	}
	return nil
}

// GetByID retrieves a run with its streaks. Returns ErrNotFound if not exists.
func (s *BacktestRunStore) GetByID(ctx context.Context, runID string) (run *domain.BacktestRun, err error) {
	defer func(start time.Time) { observe("backtest_run_get", start, err) }(time.Now())

	rows, err := s.conn.Query(ctx, "SELECT "+runColumns+" FROM backtest_runs FINAL WHERE run_id = ? LIMIT 1", runID)
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}
	runs, err := scanRuns(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, storage.ErrNotFound
	}

	if err := s.attachStreaks(ctx, runs); err != nil {
		return nil, err
	}
	return runs[0], nil
}

// GetByLedger retrieves all runs for a ledger, ordered by created_at ASC, run_id ASC.
func (s *BacktestRunStore) GetByLedger(ctx context.Context, ledgerID string) (runs []*domain.BacktestRun, err error) {
	defer func(start time.Time) { observe("backtest_run_get_by_ledger", start, err) }(time.Now())

	rows, err := s.conn.Query(ctx, "SELECT "+runColumns+` FROM backtest_runs FINAL
		WHERE ledger_id = ?
		ORDER BY created_at ASC, run_id ASC`, ledgerID)
	if err != nil {
		return nil, fmt.Errorf("query runs by ledger: %w", err)
	}
	runs, err = scanRuns(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	if err := s.attachStreaks(ctx, runs); err != nil {
		return nil, err
	}
	return runs, nil
}

// attachStreaks loads the streaks of every run in one query.
func (s *BacktestRunStore) attachStreaks(ctx context.Context, runs []*domain.BacktestRun) error {
	if len(runs) == 0 {
		return nil
	}
	ids := make([]string, len(runs))
	byID := make(map[string]*domain.BacktestRun, len(runs))
	for i, r := range runs {
		ids[i] = r.RunID
		byID[r.RunID] = r
		r.Streaks = []domain.Streak{}
	}

	rows, err := s.conn.Query(ctx, "SELECT "+streakColumns+` FROM backtest_streaks FINAL
		WHERE has(?, run_id)
		ORDER BY run_id ASC, number ASC`, ids)
	if err != nil {
		return fmt.Errorf("query streaks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var runID string
		var number, start, end, wins, losses uint32
		var st domain.Streak
		if err := rows.Scan(&runID, &number, &start, &end, &wins, &losses, &st.Labels, &st.WinRate, &st.Completed); err != nil {
			return fmt.Errorf("scan streak: %w", err)
		}
		st.Number = int(number)
		st.Wins = int(wins)
		st.Losses = int(losses)
		// Streak members are contiguous, so the range is stored rather than the list.
		st.Members = make([]int, 0, end-start+1)
		for i := start; i <= end; i++ {
			st.Members = append(st.Members, int(i))
		}
		if r, ok := byID[runID]; ok {
			r.Streaks = append(r.Streaks, st)
		}
	}
	return rows.Err()
}

// exists checks if a run with the given ID exists.
func (s *BacktestRunStore) exists(ctx context.Context, runID string) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, "SELECT count() FROM backtest_runs FINAL WHERE run_id = ?", runID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// summaryArgs flattens a summary in column order.
func summaryArgs(sm *domain.StatSummary) []any {
	return []any{
		uint32(sm.Count), uint32(sm.Wins), uint32(sm.Losses), sm.WinRate,
		sm.WinPnL, sm.LossPnL, sm.TotalPnL,
		sm.PayoutRatio.Ptr(), sm.MedianWin.Ptr(), sm.MedianLoss.Ptr(), uint32(sm.MaxConsecutiveLosses),
	}
}

// summaryRow receives the scanned columns of one summary.
type summaryRow struct {
	count, wins, losses    uint32
	winRate                float64
	winPnL, lossPnL, total decimal.Decimal
	payout                 *float64
	medianWin, medianLoss  *decimal.Decimal
	maxLosses              uint32
}

func (r *summaryRow) dest() []any {
	return []any{
		&r.count, &r.wins, &r.losses, &r.winRate,
		&r.winPnL, &r.lossPnL, &r.total,
		&r.payout, &r.medianWin, &r.medianLoss, &r.maxLosses,
	}
}

func (r *summaryRow) summary() domain.StatSummary {
	return domain.StatSummary{
		Count:                int(r.count),
		Wins:                 int(r.wins),
		Losses:               int(r.losses),
		WinRate:              r.winRate,
		WinPnL:               r.winPnL,
		LossPnL:              r.lossPnL,
		TotalPnL:             r.total,
		PayoutRatio:          domain.FromPtr(r.payout),
		MedianWin:            domain.FromPtr(r.medianWin),
		MedianLoss:           domain.FromPtr(r.medianLoss),
		MaxConsecutiveLosses: int(r.maxLosses),
	}
}

// scanRuns scans rows into runs; streaks are attached separately.
func scanRuns(rows chRows) ([]*domain.BacktestRun, error) {
	var runs []*domain.BacktestRun
	for rows.Next() {
		var r domain.BacktestRun
		var segmentation, stopPolicy string
		var reversalRun, threshold, segments uint32
		var sel, base summaryRow
		dest := []any{
			&r.RunID, &r.LedgerID, &segmentation, &reversalRun,
			&threshold, &stopPolicy, &r.Config.TargetWinRate,
			&r.Labels, &segments,
		}
		dest = append(dest, sel.dest()...)
		dest = append(dest, base.dest()...)
		dest = append(dest, &r.CreatedAt)

		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Segmentation = domain.SegmentationPolicy(segmentation)
		r.ReversalRun = int(reversalRun)
		r.Config.LossThreshold = int(threshold)
		r.Config.StopPolicy = domain.StopPolicy(stopPolicy)
		r.SegmentCount = int(segments)
		r.Selected = sel.summary()
		r.Baseline = base.summary()
		if r.Segmentation == domain.SegmentationLabels {
			r.Selected.NoPnL = true
			r.Baseline.NoPnL = true
		}
		runs = append(runs, &r)
	}
	return runs, rows.Err()
}

func placeholders(n int) string {
	b := make([]byte, 0, n*3)
	for i := 0; i < n; i++ {
		if i > 0 {
			b = append(b, ", "...)
		}
		b = append(b, '?')
	}
	return string(b)
}
