package verification

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"modquant-lab/internal/backtest"
	"modquant-lab/internal/domain"
	"modquant-lab/internal/ledger"
	"modquant-lab/internal/segmentation"
	"modquant-lab/internal/storage"
)

var (
	// ErrRunNotFound is returned when run ID doesn't exist.
	ErrRunNotFound = errors.New("run not found")

	// ErrSegmentsNotFound is returned when the segments a run was computed from are not stored.
	ErrSegmentsNotFound = errors.New("segments not found")
)

// ReplayVerifier implements Verifier over a run store and a segment store.
type ReplayVerifier struct {
	runStore     storage.BacktestRunStore
	segmentStore storage.SegmentStore
	log          logrus.FieldLogger
}

// NewReplayVerifier creates a new ReplayVerifier.
func NewReplayVerifier(runStore storage.BacktestRunStore, segmentStore storage.SegmentStore, log logrus.FieldLogger) *ReplayVerifier {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ReplayVerifier{runStore: runStore, segmentStore: segmentStore, log: log}
}

var _ Verifier = (*ReplayVerifier)(nil)

// VerifyRun verifies a single run by replaying it.
func (v *ReplayVerifier) VerifyRun(ctx context.Context, runID string) (*VerificationResult, error) {
	stored, err := v.runStore.GetByID(ctx, runID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}

	replayed, err := v.replay(ctx, stored)
	if err != nil {
		return nil, err
	}

	divergences := CompareRuns(stored, replayed)
	if len(divergences) > 0 {
		v.log.WithFields(logrus.Fields{
			"run_id":      runID,
			"divergences": len(divergences),
		}).Warn("stored run does not reproduce")
	}

	return &VerificationResult{
		RunID:       runID,
		Match:       len(divergences) == 0,
		Divergences: divergences,
	}, nil
}

// VerifyLedger verifies all runs stored for a ledger.
// A run that cannot be replayed is reported as divergent, not returned as an error.
func (v *ReplayVerifier) VerifyLedger(ctx context.Context, ledgerID string) (*VerificationReport, error) {
	runs, err := v.runStore.GetByLedger(ctx, ledgerID)
	if err != nil {
		return nil, err
	}

	report := &VerificationReport{
		TotalRuns: len(runs),
		Results:   make([]VerificationResult, 0, len(runs)),
	}

	for _, run := range runs {
		result, err := v.VerifyRun(ctx, run.RunID)
		if err != nil {
			report.Results = append(report.Results, VerificationResult{
				RunID: run.RunID,
				Divergences: []FieldDivergence{
					{Field: "Error", Expected: nil, Actual: err.Error()},
				},
			})
			report.DivergentRuns++
			continue
		}

		report.Results = append(report.Results, *result)
		if result.Match {
			report.MatchedRuns++
		} else {
			report.DivergentRuns++
		}
	}

	return report, nil
}

// replay re-runs the stored run's input with its parameters.
func (v *ReplayVerifier) replay(ctx context.Context, stored *domain.BacktestRun) (*domain.BacktestRun, error) {
	runner, err := backtest.NewRunner(backtest.ConfigFromRun(stored), v.log)
	if err != nil {
		return nil, fmt.Errorf("rebuild runner: %w", err)
	}

	var res *backtest.Results
	switch stored.Segmentation {
	case domain.SegmentationLabels:
		parsed, err := ledger.ReadLabels(strings.NewReader(stored.Labels), ledger.Options{})
		if err != nil {
			return nil, fmt.Errorf("parse stored labels: %w", err)
		}
		res, err = runner.RunOutcomes(ctx, stored.LedgerID, parsed.Outcomes)
		if err != nil {
			return nil, err
		}

	default:
		segID, err := segmentationID(stored)
		if err != nil {
			return nil, err
		}
		segments, err := v.segmentStore.GetByLedger(ctx, stored.LedgerID, segID)
		if err != nil {
			return nil, fmt.Errorf("load segments: %w", err)
		}
		if len(segments) == 0 {
			return nil, fmt.Errorf("%w: ledger %s, %s", ErrSegmentsNotFound, stored.LedgerID, segID)
		}
		res, err = runner.RunStoredSegments(ctx, stored.LedgerID, segments)
		if err != nil {
			return nil, err
		}
	}

	return res.Run(stored.CreatedAt), nil
}

// segmentationID is the key the run's segments were stored under.
func segmentationID(run *domain.BacktestRun) (string, error) {
	if run.Segmentation == domain.SegmentationLedger {
		return string(domain.SegmentationLedger), nil
	}
	policy, err := segmentation.FromConfig(run.Segmentation, run.ReversalRun)
	if err != nil {
		return "", err
	}
	return policy.ID(), nil
}
