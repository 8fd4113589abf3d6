// Package pipeline ingests one ledger end to end: parse, segment, persist,
// backtest, persist the run and write the report files.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"modquant-lab/internal/backtest"
	"modquant-lab/internal/decision"
	"modquant-lab/internal/domain"
	"modquant-lab/internal/ledger"
	"modquant-lab/internal/observability"
	"modquant-lab/internal/reporting"
	"modquant-lab/internal/storage"
	"modquant-lab/internal/storage/memory"
)

// Output file names
const (
	ReportFile   = "REPORT.md"
	SegmentsFile = "segments.csv"
	StreaksFile  = "streaks.csv"
	SummaryFile  = "summary.csv"
)

// Stores groups the stores a Pipeline persists to.
type Stores struct {
	Ledgers  storage.LedgerStore
	Trades   storage.TradeStore
	Segments storage.SegmentStore
	Runs     storage.BacktestRunStore
}

// MemoryStores returns a fresh set of in-memory stores.
func MemoryStores() Stores {
	return Stores{
		Ledgers:  memory.NewLedgerStore(),
		Trades:   memory.NewTradeStore(),
		Segments: memory.NewSegmentStore(),
		Runs:     memory.NewBacktestRunStore(),
	}
}

// Output is what one Run produced.
type Output struct {
	Ledger  *domain.Ledger
	Results *backtest.Results
	Run     *domain.BacktestRun
	Report  *reporting.Report

	// Sufficiency is nil unless a checker is configured.
	Sufficiency *SufficiencyResult

	// Reused is true when the ledger had been ingested before.
	Reused bool
	// RunStored is false when an identical run was already stored.
	RunStored bool
	// Files written, in write order
	Files []string
}

// Pipeline runs ledgers through a fixed backtest configuration.
type Pipeline struct {
	cfg       backtest.Config
	stores    Stores
	reportGen *reporting.Generator
	checker   *SufficiencyChecker // optional
	outputDir string              // empty: no files
	clock     func() time.Time
	log       logrus.FieldLogger
}

// New creates a pipeline. The config is validated by the first Run.
func New(cfg backtest.Config, stores Stores, outputDir string, log logrus.FieldLogger) *Pipeline {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Pipeline{
		cfg:       cfg,
		stores:    stores,
		reportGen: reporting.NewGenerator(stores.Runs, stores.Ledgers).WithMinSelected(cfg.MinSelected),
		outputDir: outputDir,
		clock:     func() time.Time { return time.Now().UTC() },
		log:       log,
	}
}

// WithClock sets a custom clock function for deterministic output.
func (p *Pipeline) WithClock(clock func() time.Time) *Pipeline {
	p.clock = clock
	p.reportGen = p.reportGen.WithClock(clock)
	return p
}

// WithSufficiencyChecker adds data sufficiency checks. A failed check turns
// the report verdict into INSUFFICIENT_DATA.
func (p *Pipeline) WithSufficiencyChecker(c *SufficiencyChecker) *Pipeline {
	p.checker = c
	return p
}

// Run executes the full pipeline for one ledger and writes:
// - REPORT.md
// - segments.csv (not for label input)
// - streaks.csv
// - summary.csv
// - <name>_win_lose_seq.txt
func (p *Pipeline) Run(ctx context.Context, name string, kind domain.LedgerKind, r io.Reader) (*Output, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}

	runner, err := backtest.NewRunner(p.cfg, p.log)
	if err != nil {
		return nil, err
	}

	// 1. Parse and backtest
	var res *backtest.Results
	switch kind {
	case domain.LedgerKindTrades:
		res, err = runner.RunTrades(ctx, content)
	case domain.LedgerKindSegments:
		res, err = runner.RunSegments(ctx, content)
	case domain.LedgerKindLabels:
		res, err = runner.RunLabels(ctx, content)
	default:
		return nil, fmt.Errorf("unknown ledger kind %q", kind)
	}
	if err != nil {
		return nil, err
	}
	log := p.log.WithField("ledger_id", res.LedgerID)

	out := &Output{Results: res}

	// 2. Persist the ledger, reusing a stored one
	out.Ledger, out.Reused, err = p.persistLedger(ctx, name, kind, res)
	if err != nil {
		return nil, err
	}
	if out.Reused {
		log.Info("ledger already ingested, reusing stored ledger")
	}

	// 3. Persist trades and segments
	if !out.Reused && len(res.Trades) > 0 {
		if err := p.stores.Trades.InsertBulk(ctx, res.Trades); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
			return nil, fmt.Errorf("store trades: %w", err)
		}
	}
	if err := p.persistSegments(ctx, res); err != nil {
		return nil, err
	}

	// 4. Persist the run; identical runs are already stored
	out.Run = res.Run(p.clock().UnixMilli())
	switch err := p.stores.Runs.Insert(ctx, out.Run); {
	case err == nil:
		out.RunStored = true
	case errors.Is(err, storage.ErrDuplicateKey):
		log.WithField("run_id", out.Run.RunID).Info("run already stored")
	default:
		return nil, fmt.Errorf("store run: %w", err)
	}

	// 5. Report
	out.Report = p.reportGen.FromResults(res, name)
	if p.checker != nil {
		out.Sufficiency, err = p.checker.Check(ctx, out)
		if err != nil {
			return nil, err
		}
		applySufficiency(out.Report, out.Sufficiency)
	}
	if p.outputDir != "" {
		out.Files, err = p.writeFiles(name, out)
		if err != nil {
			return nil, err
		}
		observability.RecordReportGenerated()
	}

	observability.MarkRunSucceeded(p.clock().Unix())
	log.WithFields(logrus.Fields{
		"run_id":  out.Run.RunID,
		"verdict": res.Decision.Verdict,
		"files":   len(out.Files),
	}).Info("pipeline complete")
	return out, nil
}

// applySufficiency attaches the checks to the report. The backtest results
// keep their own verdict.
func applySufficiency(report *reporting.Report, result *SufficiencyResult) {
	dq := &reporting.DataQuality{
		AllPassed: result.AllPass,
		Errors:    result.Errors,
	}
	for _, c := range result.Checks {
		dq.Checks = append(dq.Checks, reporting.QualityCheckRow{
			Name:      c.Name,
			Threshold: c.Threshold,
			Actual:    c.Actual,
			Pass:      c.Pass,
		})
	}
	report.DataQuality = dq

	if !result.AllPass && report.Decision != nil {
		d := *report.Decision
		d.Verdict = decision.VerdictInsufficientData
		report.Decision = &d
	}
}

func (p *Pipeline) persistLedger(ctx context.Context, name string, kind domain.LedgerKind, res *backtest.Results) (*domain.Ledger, bool, error) {
	l := &domain.Ledger{
		LedgerID:    res.LedgerID,
		Name:        name,
		Kind:        kind,
		Format:      string(res.Format),
		RecordCount: recordCount(res),
		Skipped:     len(res.Warnings),
		IngestedAt:  p.clock().UnixMilli(),
	}

	err := p.stores.Ledgers.Insert(ctx, l)
	if err == nil {
		return l, false, nil
	}
	if !errors.Is(err, storage.ErrDuplicateKey) {
		return nil, false, fmt.Errorf("store ledger: %w", err)
	}

	stored, err := p.stores.Ledgers.GetByID(ctx, res.LedgerID)
	if err != nil {
		return nil, false, fmt.Errorf("load ledger: %w", err)
	}
	return stored, true, nil
}

// persistSegments stores the segments of a policy once per ledger.
// A reused ledger may be segmented under a policy it has not seen yet.
func (p *Pipeline) persistSegments(ctx context.Context, res *backtest.Results) error {
	if len(res.Segments) == 0 {
		return nil
	}
	existing, err := p.stores.Segments.GetByLedger(ctx, res.LedgerID, res.SegmentationID)
	if err != nil {
		return fmt.Errorf("load segments: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}
	if err := p.stores.Segments.InsertBulk(ctx, res.Segments); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		return fmt.Errorf("store segments: %w", err)
	}
	return nil
}

func (p *Pipeline) writeFiles(name string, out *Output) ([]string, error) {
	if err := os.MkdirAll(p.outputDir, 0755); err != nil {
		return nil, err
	}
	res := out.Results

	var files []string
	write := func(file string, data []byte) error {
		path := filepath.Join(p.outputDir, file)
		if err := os.WriteFile(path, data, 0644); err != nil {
			return err
		}
		files = append(files, path)
		return nil
	}

	if err := write(ReportFile, []byte(reporting.RenderMarkdown(out.Report))); err != nil {
		return nil, err
	}

	if len(res.Segments) > 0 {
		var buf bytes.Buffer
		if err := ledger.WriteSegments(&buf, res.Segments); err != nil {
			return nil, err
		}
		if err := write(SegmentsFile, buf.Bytes()); err != nil {
			return nil, err
		}
	}

	if err := write(StreaksFile, []byte(reporting.RenderStreaksCSV(out.Report.Streaks))); err != nil {
		return nil, err
	}
	if err := write(SummaryFile, []byte(reporting.RenderSummaryCSV(out.Report))); err != nil {
		return nil, err
	}

	var labels bytes.Buffer
	if err := ledger.WriteLabels(&labels, res.Outcomes); err != nil {
		return nil, err
	}
	if err := write(LabelsFileName(name), labels.Bytes()); err != nil {
		return nil, err
	}

	return files, nil
}

// LabelsFileName names the label sequence file of a ledger.
func LabelsFileName(name string) string {
	return BaseName(name) + "_win_lose_seq.txt"
}

// BaseName strips directory and extension from a ledger name.
func BaseName(name string) string {
	base := filepath.Base(name)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "ledger"
	}
	return base
}

func recordCount(res *backtest.Results) int {
	if len(res.Trades) > 0 {
		return len(res.Trades)
	}
	return len(res.Outcomes)
}
