package reporting

import (
	"context"
	"errors"
	"time"

	"modquant-lab/internal/backtest"
	"modquant-lab/internal/decision"
	"modquant-lab/internal/domain"
	"modquant-lab/internal/follow"
	"modquant-lab/internal/metrics"
	"modquant-lab/internal/segmentation"
	"modquant-lab/internal/storage"
)

// Generator produces reports from backtest results or stored runs.
type Generator struct {
	runStore    storage.BacktestRunStore
	ledgerStore storage.LedgerStore
	evaluator   *decision.Evaluator
	now         func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
// The stores are only needed by Generate; nil stores are fine for FromResults.
func NewGenerator(runStore storage.BacktestRunStore, ledgerStore storage.LedgerStore) *Generator {
	return &Generator{
		runStore:    runStore,
		ledgerStore: ledgerStore,
		evaluator:   decision.NewEvaluator(0),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// WithMinSelected sets the verdict threshold used for stored runs.
func (g *Generator) WithMinSelected(n int) *Generator {
	g.evaluator = decision.NewEvaluator(n)
	return g
}

// FromResults builds a report for a fresh backtest.
func (g *Generator) FromResults(res *backtest.Results, ledgerName string) *Report {
	cfg := res.Config()
	streaks := streakRows(res.Selection.Streaks)

	r := &Report{
		GeneratedAt: g.now(),
		RunID:       res.RunID(),
		LedgerID:    res.LedgerID,
		LedgerName:  ledgerName,
		Parameters: Parameters{
			Input:          res.Input,
			Format:         string(res.Format),
			SegmentationID: res.SegmentationID,
			LossThreshold:  cfg.Follow.LossThreshold,
			StopPolicyID:   res.StopPolicyID,
			StopPolicy:     cfg.Follow.StopPolicy,
			TargetWinRate:  domain.FromPtr(cfg.Follow.TargetWinRate),
		},
		DataSummary: DataSummary{
			Trades:         len(res.Trades),
			Segments:       len(res.Outcomes),
			Skipped:        len(res.Warnings),
			Streaks:        len(streaks),
			Unfinished:     unfinished(streaks),
			OverallWinRate: res.Baseline.WinRate,
		},
		Labels:     res.Labels,
		Selected:   res.Selected,
		Baseline:   res.Baseline,
		Comparison: res.Comparison,
		Directions: res.Directions,
		Streaks:    streaks,
		Decision:   res.Decision,
	}
	for _, w := range res.Warnings {
		r.Warnings = append(r.Warnings, w.Error())
	}
	return r
}

// Generate builds a report for a stored run.
// Trade counts and direction breakdown are not stored with runs and stay empty.
func (g *Generator) Generate(ctx context.Context, runID string) (*Report, error) {
	if g.runStore == nil {
		return nil, errors.New("report generator has no run store")
	}
	run, err := g.runStore.GetByID(ctx, runID)
	if err != nil {
		return nil, err
	}

	name := ""
	input := inputOf(run.Segmentation)
	if g.ledgerStore != nil {
		l, err := g.ledgerStore.GetByID(ctx, run.LedgerID)
		switch {
		case err == nil:
			name = l.Name
			input = l.Kind
		case !errors.Is(err, storage.ErrNotFound):
			return nil, err
		}
	}

	streaks := streakRows(run.Streaks)
	return &Report{
		GeneratedAt: g.now(),
		RunID:       run.RunID,
		LedgerID:    run.LedgerID,
		LedgerName:  name,
		Parameters: Parameters{
			Input:          input,
			SegmentationID: segmentationID(run),
			LossThreshold:  run.Config.LossThreshold,
			StopPolicyID:   stopPolicyID(run.Config),
			StopPolicy:     run.Config.StopPolicy,
			TargetWinRate:  domain.FromPtr(run.Config.TargetWinRate),
		},
		DataSummary: DataSummary{
			Segments:       run.SegmentCount,
			Streaks:        len(streaks),
			Unfinished:     unfinished(streaks),
			OverallWinRate: run.Baseline.WinRate,
		},
		Labels:     run.Labels,
		Selected:   run.Selected,
		Baseline:   run.Baseline,
		Comparison: metrics.Compare(run.Selected, run.Baseline),
		Streaks:    streaks,
		Decision:   g.evaluator.Evaluate(decision.InputFromRun(run)),
	}, nil
}

func inputOf(p domain.SegmentationPolicy) domain.LedgerKind {
	switch p {
	case domain.SegmentationLabels:
		return domain.LedgerKindLabels
	case domain.SegmentationLedger:
		return domain.LedgerKindSegments
	default:
		return domain.LedgerKindTrades
	}
}

func segmentationID(run *domain.BacktestRun) string {
	if p, err := segmentation.FromConfig(run.Segmentation, run.ReversalRun); err == nil {
		return p.ID()
	}
	return string(run.Segmentation)
}

func stopPolicyID(cfg domain.FollowConfig) string {
	if p, err := follow.PolicyFromConfig(cfg); err == nil {
		return p.ID()
	}
	return string(cfg.StopPolicy)
}
