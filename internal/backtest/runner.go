package backtest

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"modquant-lab/internal/decision"
	"modquant-lab/internal/domain"
	"modquant-lab/internal/follow"
	"modquant-lab/internal/idhash"
	"modquant-lab/internal/ledger"
	"modquant-lab/internal/metrics"
	"modquant-lab/internal/observability"
	"modquant-lab/internal/segmentation"
)

// Runner executes backtests with a fixed configuration.
// It holds no mutable state and may serve concurrent callers.
type Runner struct {
	cfg       Config
	builder   *segmentation.Builder
	stop      follow.StopPolicy
	evaluator *decision.Evaluator
	log       logrus.FieldLogger
}

// NewRunner validates cfg and creates a runner.
// A nil log discards output.
func NewRunner(cfg Config, log logrus.FieldLogger) (*Runner, error) {
	seg, stop, err := cfg.validate()
	if err != nil {
		return nil, err
	}
	if cfg.Follow.TargetWinRate != nil {
		v := *cfg.Follow.TargetWinRate
		cfg.Follow.TargetWinRate = &v
	}
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Runner{
		cfg:       cfg,
		builder:   segmentation.NewBuilder(seg),
		stop:      stop,
		evaluator: decision.NewEvaluator(cfg.MinSelected),
		log:       log,
	}, nil
}

// Config returns a copy of the runner's configuration.
func (r *Runner) Config() Config {
	cfg := r.cfg
	if cfg.Follow.TargetWinRate != nil {
		v := *cfg.Follow.TargetWinRate
		cfg.Follow.TargetWinRate = &v
	}
	return cfg
}

// RunTrades backtests a raw trade ledger.
func (r *Runner) RunTrades(ctx context.Context, content []byte) (res *Results, err error) {
	defer r.record(domain.LedgerKindTrades, time.Now(), &res, &err)

	ledgerID := idhash.ComputeLedgerID(domain.LedgerKindTrades, content)
	log := r.log.WithField("ledger_id", ledgerID)

	parsed, err := ledger.ReadTrades(bytes.NewReader(content), ledger.Options{
		Format:    r.cfg.Format,
		Delimiter: r.cfg.Delimiter,
		LedgerID:  ledgerID,
		OnWarning: warnLogger(log),
	})
	if err != nil {
		return nil, err
	}
	observability.RecordTradesParsed(len(parsed.Trades), len(parsed.Warnings))

	res, err = r.RunParsedTrades(ctx, ledgerID, parsed.Trades)
	if err != nil {
		return nil, err
	}
	res.Format = parsed.Format
	res.Warnings = parsed.Warnings
	return res, nil
}

// RunParsedTrades backtests trades that were already parsed (e.g. read from a store).
func (r *Runner) RunParsedTrades(ctx context.Context, ledgerID string, trades []*domain.Trade) (*Results, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	segments, err := r.builder.Build(trades)
	if err != nil {
		return nil, err
	}
	policyID := r.builder.Policy().ID()
	observability.RecordSegmentsBuilt(policyID, len(segments))
	r.log.WithFields(logrus.Fields{
		"ledger_id": ledgerID,
		"policy":    policyID,
		"trades":    len(trades),
		"segments":  len(segments),
	}).Debug("segments built")

	res, err := r.evaluateSegments(ctx, ledgerID, policyID, segments)
	if err != nil {
		return nil, err
	}
	res.Input = domain.LedgerKindTrades
	res.Trades = trades
	return res, nil
}

// RunSegments backtests a pre-aggregated segment ledger.
func (r *Runner) RunSegments(ctx context.Context, content []byte) (res *Results, err error) {
	defer r.record(domain.LedgerKindSegments, time.Now(), &res, &err)

	ledgerID := idhash.ComputeLedgerID(domain.LedgerKindSegments, content)
	log := r.log.WithField("ledger_id", ledgerID)

	parsed, err := ledger.ReadSegments(bytes.NewReader(content), ledger.Options{
		LedgerID:  ledgerID,
		OnWarning: warnLogger(log),
	})
	if err != nil {
		return nil, err
	}
	observability.RecordParseWarnings("segments", len(parsed.Warnings))
	observability.RecordSegmentsBuilt(string(domain.SegmentationLedger), len(parsed.Segments))

	res, err = r.RunStoredSegments(ctx, ledgerID, parsed.Segments)
	if err != nil {
		return nil, err
	}
	res.Warnings = parsed.Warnings
	return res, nil
}

// RunStoredSegments backtests segments read from a segment ledger or a store.
// Segments built from trades keep their policy ID; the results then describe
// a trade-ledger run without the trades themselves.
func (r *Runner) RunStoredSegments(ctx context.Context, ledgerID string, segments []*domain.Segment) (*Results, error) {
	if len(segments) == 0 {
		return nil, ledger.ErrEmptyInput
	}
	policyID := segments[0].Segmentation
	if policyID == "" {
		policyID = string(domain.SegmentationLedger)
	}
	res, err := r.evaluateSegments(ctx, ledgerID, policyID, segments)
	if err != nil {
		return nil, err
	}
	res.Input = domain.LedgerKindSegments
	if policyID != string(domain.SegmentationLedger) {
		res.Input = domain.LedgerKindTrades
	}
	return res, nil
}

// RunLabels backtests a bare W/L label sequence.
// Without P&L the summaries carry counts, win rates and losing runs only.
func (r *Runner) RunLabels(ctx context.Context, content []byte) (res *Results, err error) {
	defer r.record(domain.LedgerKindLabels, time.Now(), &res, &err)

	ledgerID := idhash.ComputeLedgerID(domain.LedgerKindLabels, content)
	log := r.log.WithField("ledger_id", ledgerID)

	parsed, err := ledger.ReadLabels(bytes.NewReader(content), ledger.Options{
		LedgerID:  ledgerID,
		OnWarning: warnLogger(log),
	})
	if err != nil {
		return nil, err
	}
	observability.RecordParseWarnings("labels", len(parsed.Warnings))
	observability.RecordLabelsIngested(len(parsed.Outcomes))

	res, err = r.RunOutcomes(ctx, ledgerID, parsed.Outcomes)
	if err != nil {
		return nil, err
	}
	res.Warnings = parsed.Warnings
	return res, nil
}

// RunOutcomes backtests an outcome sequence with no P&L attached.
func (r *Runner) RunOutcomes(ctx context.Context, ledgerID string, outcomes []domain.Outcome) (*Results, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(outcomes) == 0 {
		return nil, ledger.ErrEmptyInput
	}

	sel, err := follow.Select(outcomes, r.cfg.Follow)
	if err != nil {
		return nil, err
	}

	selected := metrics.SummarizeOutcomes(metrics.SelectOutcomes(outcomes, sel))
	baseline := metrics.SummarizeOutcomes(outcomes)
	return &Results{
		LedgerID:       ledgerID,
		Input:          domain.LedgerKindLabels,
		SegmentationID: string(domain.SegmentationLabels),
		StopPolicyID:   r.stop.ID(),
		Outcomes:       outcomes,
		Labels:         domain.LabelString(outcomes),
		Selection:      sel,
		Selected:       selected,
		Baseline:       baseline,
		Comparison:     metrics.Compare(selected, baseline),
		Decision:       r.evaluator.Evaluate(decision.Input{Selected: selected, Baseline: baseline}),
		cfg:            r.Config(),
	}, nil
}

// evaluateSegments runs the trigger and both summaries over segments.
func (r *Runner) evaluateSegments(ctx context.Context, ledgerID, segmentationID string, segments []*domain.Segment) (*Results, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sel, err := follow.SelectSegments(segments, r.cfg.Follow)
	if err != nil {
		return nil, err
	}

	outcomes := domain.Outcomes(segments)
	selected := metrics.SummarizeSelection(segments, sel)
	baseline := metrics.SummarizeSegments(segments)
	return &Results{
		LedgerID:       ledgerID,
		SegmentationID: segmentationID,
		StopPolicyID:   r.stop.ID(),
		Segments:       segments,
		Outcomes:       outcomes,
		Labels:         domain.LabelString(outcomes),
		Selection:      sel,
		Selected:       selected,
		Baseline:       baseline,
		Comparison:     metrics.Compare(selected, baseline),
		Directions:     metrics.DirectionBreakdown(segments),
		Decision:       r.evaluator.Evaluate(decision.Input{Selected: selected, Baseline: baseline}),
		cfg:            r.Config(),
	}, nil
}

// record logs and counts a finished entry point.
func (r *Runner) record(input domain.LedgerKind, start time.Time, res **Results, err *error) {
	elapsed := time.Since(start).Seconds()
	if *err != nil {
		observability.RecordPipelineRun(string(input), "error", elapsed)
		observability.RecordBacktest(string(r.cfg.Follow.StopPolicy), "error", 0, 0, 0)
		r.log.WithError(*err).WithField("input", input).Error("backtest failed")
		return
	}

	completed, unfinished := 0, 0
	for _, st := range (*res).Selection.Streaks {
		if st.Completed {
			completed++
		} else {
			unfinished++
		}
	}
	observability.RecordPipelineRun(string(input), "success", elapsed)
	observability.RecordBacktest(string(r.cfg.Follow.StopPolicy), "success", len((*res).Selection.Indices), completed, unfinished)
	observability.RecordVerdict(string((*res).Decision.Verdict))

	r.log.WithFields(logrus.Fields{
		"ledger_id": (*res).LedgerID,
		"input":     input,
		"segments":  len((*res).Outcomes),
		"selected":  len((*res).Selection.Indices),
		"streaks":   len((*res).Selection.Streaks),
		"verdict":   (*res).Decision.Verdict,
	}).Info("backtest complete")
}

func warnLogger(log logrus.FieldLogger) func(*ledger.InputParseError) {
	return func(w *ledger.InputParseError) {
		log.WithField("line", w.Line).Warn(w.Reason)
	}
}
