package metrics

import (
	"context"
	"errors"
	"sort"

	"modquant-lab/internal/domain"
	"modquant-lab/internal/storage"
)

// ErrNoSegments is returned when no segments are stored for aggregation.
var ErrNoSegments = errors.New("no segments available for aggregation")

// Aggregator computes ledger statistics and cross-run sensitivity tables
// from stored segments and runs.
type Aggregator struct {
	segmentStore storage.SegmentStore
	runStore     storage.BacktestRunStore
}

// NewAggregator creates a new metrics aggregator.
func NewAggregator(segmentStore storage.SegmentStore, runStore storage.BacktestRunStore) *Aggregator {
	return &Aggregator{
		segmentStore: segmentStore,
		runStore:     runStore,
	}
}

// LedgerAggregate is the baseline of one ledger under one segmentation.
type LedgerAggregate struct {
	LedgerID     string
	Segmentation string
	Labels       string
	Baseline     domain.StatSummary
	Directions   []domain.DirectionSummary
}

// ComputeAggregate loads the stored segments of a ledger and summarizes them.
// Returns ErrNoSegments if none are stored under that segmentation.
func (a *Aggregator) ComputeAggregate(ctx context.Context, ledgerID, segmentation string) (*LedgerAggregate, error) {
	segments, err := a.segmentStore.GetByLedger(ctx, ledgerID, segmentation)
	if err != nil {
		return nil, err
	}
	if len(segments) == 0 {
		return nil, ErrNoSegments
	}

	return &LedgerAggregate{
		LedgerID:     ledgerID,
		Segmentation: segmentation,
		Labels:       domain.LabelString(domain.Outcomes(segments)),
		Baseline:     SummarizeSegments(segments),
		Directions:   DirectionBreakdown(segments),
	}, nil
}

// SensitivityRow is one stored run of a ledger, reduced to its parameters
// and selected statistics.
type SensitivityRow struct {
	RunID         string
	Segmentation  domain.SegmentationPolicy
	ReversalRun   int
	LossThreshold int
	StopPolicy    domain.StopPolicy
	TargetWinRate domain.Optional[float64]
	Selected      domain.StatSummary
	Comparison    domain.Comparison
}

// Sensitivity lists every stored run of a ledger, ordered by segmentation,
// reversal run, loss threshold, stop policy, target and run ID, so the
// effect of each parameter reads top to bottom.
func (a *Aggregator) Sensitivity(ctx context.Context, ledgerID string) ([]SensitivityRow, error) {
	runs, err := a.runStore.GetByLedger(ctx, ledgerID)
	if err != nil {
		return nil, err
	}

	rows := make([]SensitivityRow, len(runs))
	for i, run := range runs {
		rows[i] = SensitivityRow{
			RunID:         run.RunID,
			Segmentation:  run.Segmentation,
			ReversalRun:   run.ReversalRun,
			LossThreshold: run.Config.LossThreshold,
			StopPolicy:    run.Config.StopPolicy,
			TargetWinRate: domain.FromPtr(run.Config.TargetWinRate),
			Selected:      run.Selected,
			Comparison:    Compare(run.Selected, run.Baseline),
		}
	}

	sort.Slice(rows, func(i, j int) bool {
		x, y := rows[i], rows[j]
		if x.Segmentation != y.Segmentation {
			return x.Segmentation < y.Segmentation
		}
		if x.ReversalRun != y.ReversalRun {
			return x.ReversalRun < y.ReversalRun
		}
		if x.LossThreshold != y.LossThreshold {
			return x.LossThreshold < y.LossThreshold
		}
		if x.StopPolicy != y.StopPolicy {
			return x.StopPolicy < y.StopPolicy
		}
		xt, xok := x.TargetWinRate.Get()
		yt, yok := y.TargetWinRate.Get()
		if xok != yok {
			return !xok
		}
		if xt != yt {
			return xt < yt
		}
		return x.RunID < y.RunID
	})
	return rows, nil
}
