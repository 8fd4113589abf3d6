// Package orchestrator sweeps stored ledgers across a grid of backtest
// configurations. It coordinates: segmentation -> backtest -> run storage.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"modquant-lab/internal/backtest"
	"modquant-lab/internal/domain"
	"modquant-lab/internal/ledger"
	"modquant-lab/internal/segmentation"
	"modquant-lab/internal/storage"
)

// Orchestrator runs every (ledger, config) combination over stored input.
// Flow: segment trade ledgers under each policy -> backtest -> store runs
type Orchestrator struct {
	// Stores
	ledgerStore  storage.LedgerStore
	tradeStore   storage.TradeStore
	segmentStore storage.SegmentStore
	runStore     storage.BacktestRunStore

	configs   []backtest.Config
	ledgerIDs []string // empty: every stored ledger

	clock func() time.Time
	log   logrus.FieldLogger
}

// Options for creating an Orchestrator.
type Options struct {
	LedgerStore  storage.LedgerStore
	TradeStore   storage.TradeStore
	SegmentStore storage.SegmentStore
	RunStore     storage.BacktestRunStore

	// Configs is the parameter grid; see Grid.
	Configs []backtest.Config
	// LedgerIDs restricts the sweep; empty means all stored ledgers.
	LedgerIDs []string

	Clock func() time.Time
	Log   logrus.FieldLogger
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		ledgerStore:  opts.LedgerStore,
		tradeStore:   opts.TradeStore,
		segmentStore: opts.SegmentStore,
		runStore:     opts.RunStore,
		configs:      opts.Configs,
		ledgerIDs:    opts.LedgerIDs,
		clock:        opts.Clock,
		log:          opts.Log,
	}
	if o.clock == nil {
		o.clock = time.Now
	}
	if o.log == nil {
		o.log = logrus.StandardLogger()
	}
	return o
}

// Grid expands a base config into one config per loss threshold under the
// single-win policy plus one per (threshold, target) under the win-rate policy.
func Grid(base backtest.Config, thresholds []int, targets []float64) []backtest.Config {
	if len(thresholds) == 0 {
		thresholds = []int{base.Follow.LossThreshold}
	}
	var out []backtest.Config
	for _, n := range thresholds {
		cfg := base
		cfg.Follow.LossThreshold = n
		cfg.Follow.StopPolicy = domain.StopPolicySingleWin
		cfg.Follow.TargetWinRate = nil
		out = append(out, cfg)

		for _, target := range targets {
			t := target
			cfg := base
			cfg.Follow.LossThreshold = n
			cfg.Follow.StopPolicy = domain.StopPolicyWinRate
			cfg.Follow.TargetWinRate = &t
			out = append(out, cfg)
		}
	}
	return out
}

// RunResult contains results from orchestrator execution.
type RunResult struct {
	LedgersProcessed   int
	SegmentationsBuilt int
	RunsCreated        int
	RunsExisting       int
	Errors             []string
}

// Run executes the sweep.
// Phases:
//  1. Load ledgers
//  2. Segment each trade ledger under every segmentation in the grid
//  3. Backtest each (ledger, config) combination and store the run
func (o *Orchestrator) Run(ctx context.Context) (*RunResult, error) {
	result := &RunResult{}

	// Phase 1: Load ledgers
	ledgers, err := o.loadLedgers(ctx)
	if err != nil {
		return nil, fmt.Errorf("phase 1 (load ledgers) failed: %w", err)
	}
	result.LedgersProcessed = len(ledgers)
	o.log.WithField("ledgers", len(ledgers)).Info("sweep: ledgers loaded")

	if len(ledgers) == 0 || len(o.configs) == 0 {
		return result, nil
	}

	// Phase 2: Segmentation
	built, segErrs := o.runSegmentation(ctx, ledgers)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result.SegmentationsBuilt = built
	result.Errors = append(result.Errors, segErrs...)

	// Phase 3: Backtests
	created, existing, runErrs := o.runBacktests(ctx, ledgers)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result.RunsCreated = created
	result.RunsExisting = existing
	result.Errors = append(result.Errors, runErrs...)

	o.log.WithFields(logrus.Fields{
		"ledgers":       result.LedgersProcessed,
		"segmentations": result.SegmentationsBuilt,
		"runs_created":  result.RunsCreated,
		"runs_existing": result.RunsExisting,
		"errors":        len(result.Errors),
	}).Info("sweep completed")

	return result, nil
}

func (o *Orchestrator) loadLedgers(ctx context.Context) ([]*domain.Ledger, error) {
	if len(o.ledgerIDs) == 0 {
		return o.ledgerStore.List(ctx)
	}
	out := make([]*domain.Ledger, 0, len(o.ledgerIDs))
	for _, id := range o.ledgerIDs {
		l, err := o.ledgerStore.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("ledger %s: %w", id, err)
		}
		out = append(out, l)
	}
	return out, nil
}

// runSegmentation stores the segments of every trade ledger under every
// segmentation policy of the grid that it is not yet stored under.
func (o *Orchestrator) runSegmentation(ctx context.Context, ledgers []*domain.Ledger) (int, []string) {
	var built int
	var errs []string

	for _, l := range ledgers {
		if l.Kind != domain.LedgerKindTrades {
			continue
		}
		var trades []*domain.Trade
		done := map[string]bool{}

		for _, cfg := range o.configs {
			if ctx.Err() != nil {
				return built, errs
			}
			policy, err := segmentation.FromConfig(cfg.Segmentation, cfg.ReversalRun)
			if err != nil {
				errs = append(errs, fmt.Sprintf("segment %s: %v", l.LedgerID, err))
				continue
			}
			if done[policy.ID()] {
				continue
			}
			done[policy.ID()] = true

			existing, err := o.segmentStore.GetByLedger(ctx, l.LedgerID, policy.ID())
			if err != nil {
				errs = append(errs, fmt.Sprintf("segment %s/%s: %v", l.LedgerID, policy.ID(), err))
				continue
			}
			if len(existing) > 0 {
				continue
			}

			if trades == nil {
				trades, err = o.tradeStore.GetByLedger(ctx, l.LedgerID)
				if err != nil {
					errs = append(errs, fmt.Sprintf("load trades %s: %v", l.LedgerID, err))
					break
				}
			}
			runner, err := backtest.NewRunner(cfg, o.log)
			if err != nil {
				errs = append(errs, fmt.Sprintf("segment %s/%s: %v", l.LedgerID, policy.ID(), err))
				continue
			}
			res, err := runner.RunParsedTrades(ctx, l.LedgerID, trades)
			if err != nil {
				errs = append(errs, fmt.Sprintf("segment %s/%s: %v", l.LedgerID, policy.ID(), err))
				continue
			}
			if err := o.segmentStore.InsertBulk(ctx, res.Segments); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
				errs = append(errs, fmt.Sprintf("store segments %s/%s: %v", l.LedgerID, policy.ID(), err))
				continue
			}
			built++
		}
	}

	return built, errs
}

// runBacktests runs every config over every ledger's stored input.
func (o *Orchestrator) runBacktests(ctx context.Context, ledgers []*domain.Ledger) (int, int, []string) {
	var created, existing int
	var errs []string

	for _, l := range ledgers {
		var labels []domain.Outcome
		if l.Kind == domain.LedgerKindLabels {
			var err error
			labels, err = o.storedLabels(ctx, l.LedgerID)
			if err != nil {
				errs = append(errs, fmt.Sprintf("labels %s: %v", l.LedgerID, err))
				continue
			}
		}

		for _, cfg := range o.configs {
			if ctx.Err() != nil {
				return created, existing, errs
			}
			res, err := o.backtest(ctx, l, labels, cfg)
			if err != nil {
				errs = append(errs, fmt.Sprintf("backtest %s: %v", l.LedgerID, err))
				continue
			}

			switch err := o.runStore.Insert(ctx, res.Run(o.clock().UnixMilli())); {
			case err == nil:
				created++
			case errors.Is(err, storage.ErrDuplicateKey):
				existing++
			default:
				errs = append(errs, fmt.Sprintf("store run %s: %v", res.RunID(), err))
			}
		}
	}

	return created, existing, errs
}

func (o *Orchestrator) backtest(ctx context.Context, l *domain.Ledger, labels []domain.Outcome, cfg backtest.Config) (*backtest.Results, error) {
	runner, err := backtest.NewRunner(cfg, o.log)
	if err != nil {
		return nil, err
	}

	switch l.Kind {
	case domain.LedgerKindLabels:
		return runner.RunOutcomes(ctx, l.LedgerID, labels)

	case domain.LedgerKindSegments:
		segments, err := o.segmentStore.GetByLedger(ctx, l.LedgerID, string(domain.SegmentationLedger))
		if err != nil {
			return nil, err
		}
		return runner.RunStoredSegments(ctx, l.LedgerID, segments)

	default:
		policy, err := segmentation.FromConfig(cfg.Segmentation, cfg.ReversalRun)
		if err != nil {
			return nil, err
		}
		segments, err := o.segmentStore.GetByLedger(ctx, l.LedgerID, policy.ID())
		if err != nil {
			return nil, err
		}
		return runner.RunStoredSegments(ctx, l.LedgerID, segments)
	}
}

// storedLabels recovers a label ledger's sequence from any of its runs;
// label ledgers persist no segments.
func (o *Orchestrator) storedLabels(ctx context.Context, ledgerID string) ([]domain.Outcome, error) {
	runs, err := o.runStore.GetByLedger(ctx, ledgerID)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, ledger.ErrEmptyInput
	}
	parsed, err := ledger.ReadLabels(strings.NewReader(runs[0].Labels), ledger.Options{})
	if err != nil {
		return nil, err
	}
	return parsed.Outcomes, nil
}
