// Command pipeline ingests ledgers end to end: parse, segment, persist,
// backtest, verify and write the report files.
//
//	pipeline [flags] <ledger>...
//
// With more than one ledger each one gets its own directory under --output-dir.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"modquant-lab/internal/config"
	"modquant-lab/internal/domain"
	"modquant-lab/internal/logging"
	"modquant-lab/internal/orchestrator"
	"modquant-lab/internal/pipeline"
	"modquant-lab/internal/verification"
)

func main() {
	configPath := flag.String("config", "", "YAML config file")
	kindFlag := flag.String("kind", "", "Ledger kind: trades, segments, labels (default: from file name)")
	outputDir := flag.String("output-dir", "", "Output directory (default: output_dir from config)")
	storageMode := flag.String("storage", "", "Storage mode: memory, db (default: from config)")
	migrate := flag.Bool("migrate", false, "Apply database migrations before running")
	minSegments := flag.Int("min-segments", pipeline.DefaultMinSegments, "Sufficiency: minimum segments")
	maxSkipped := flag.Float64("max-skipped", pipeline.DefaultMaxSkippedRatio, "Sufficiency: maximum skipped record ratio")
	sweepThresholds := flag.String("sweep-thresholds", "", "Comma-separated loss thresholds to sweep after ingesting, e.g. 1,2,3")
	sweepTargets := flag.String("sweep-targets", "", "Comma-separated win-rate targets to add to the sweep, e.g. 50,60")
	btFlags := config.BindBacktestFlags(flag.CommandLine)
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: pipeline [flags] <ledger>...")
		flag.PrintDefaults()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal(err)
	}
	if *storageMode != "" {
		cfg.Storage.Mode = *storageMode
	}
	if *outputDir != "" {
		cfg.OutputDir = *outputDir
	}
	if err := btFlags.Apply(cfg); err != nil {
		fatal(err)
	}

	logger, closer, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		fatal(err)
	}
	defer closer.Close()

	var kind domain.LedgerKind
	if *kindFlag != "" {
		k, ok := domain.ParseLedgerKind(*kindFlag)
		if !ok {
			fatal(fmt.Errorf("unknown ledger kind %q", *kindFlag))
		}
		kind = k
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Infof("received signal %v, cancelling pipeline", sig)
		cancel()
	}()

	stores, cleanup, err := pipeline.OpenStores(ctx, cfg.Storage, *migrate)
	if err != nil {
		fatal(err)
	}
	defer cleanup()

	bc, err := cfg.BacktestConfig()
	if err != nil {
		fatal(err)
	}
	checker := pipeline.NewSufficiencyChecker(verification.NewReplayVerifier(stores.Runs, stores.Segments, logger)).
		WithThresholds(*minSegments, *maxSkipped)

	thresholds, err := parseInts(*sweepThresholds)
	if err != nil {
		fatal(fmt.Errorf("--sweep-thresholds: %w", err))
	}
	targets, err := parseFloats(*sweepTargets)
	if err != nil {
		fatal(fmt.Errorf("--sweep-targets: %w", err))
	}

	failed := 0
	var ledgerIDs []string
	for _, path := range flag.Args() {
		dir := cfg.OutputDir
		if flag.NArg() > 1 {
			dir = filepath.Join(dir, pipeline.BaseName(path))
		}
		k := kind
		if k == "" {
			k = domain.GuessLedgerKind(path)
		}

		p := pipeline.New(bc, stores, dir, logger).WithSufficiencyChecker(checker)
		out, err := runOne(ctx, p, path, k, logger)
		if err != nil {
			logger.WithField("ledger", path).WithError(err).Error("pipeline failed")
			failed++
		} else {
			ledgerIDs = append(ledgerIDs, out.Ledger.LedgerID)
		}
		if ctx.Err() != nil {
			break
		}
	}

	if (len(thresholds) > 0 || len(targets) > 0) && len(ledgerIDs) > 0 && ctx.Err() == nil {
		sweep := orchestrator.New(orchestrator.Options{
			LedgerStore:  stores.Ledgers,
			TradeStore:   stores.Trades,
			SegmentStore: stores.Segments,
			RunStore:     stores.Runs,
			Configs:      orchestrator.Grid(bc, thresholds, targets),
			LedgerIDs:    ledgerIDs,
			Log:          logger,
		})
		result, err := sweep.Run(ctx)
		if err != nil {
			logger.WithError(err).Error("sweep failed")
			failed++
		} else {
			fmt.Printf("Sweep: %d runs created, %d already stored\n", result.RunsCreated, result.RunsExisting)
			for _, e := range result.Errors {
				fmt.Printf("  error: %s\n", e)
			}
		}
	}
	if failed > 0 {
		cleanup()
		os.Exit(1)
	}
}

func runOne(ctx context.Context, p *pipeline.Pipeline, path string, kind domain.LedgerKind, log logrus.FieldLogger) (*pipeline.Output, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	out, err := p.Run(ctx, path, kind, file)
	if err != nil {
		return nil, err
	}

	verdict := out.Results.Decision.Verdict
	if out.Report.Decision != nil {
		verdict = out.Report.Decision.Verdict
	}
	fmt.Printf("%s\n", path)
	fmt.Printf("  Ledger:   %s (reused=%v)\n", out.Ledger.LedgerID, out.Reused)
	fmt.Printf("  Run:      %s (stored=%v)\n", out.Run.RunID, out.RunStored)
	fmt.Printf("  Selected: %d of %d\n", out.Results.Selected.Count, out.Results.Baseline.Count)
	fmt.Printf("  Verdict:  %s\n", verdict)
	for _, f := range out.Files {
		fmt.Printf("  Wrote:    %s\n", f)
	}
	if out.Sufficiency != nil && !out.Sufficiency.AllPass {
		log.WithField("ledger", path).Warn("data sufficiency checks failed")
	}
	return out, nil
}

func parseInts(s string) ([]int, error) {
	var out []int
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f == "" {
			continue
		}
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func parseFloats(s string) ([]float64, error) {
	var out []float64
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f == "" {
			continue
		}
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "pipeline: %v\n", err)
	os.Exit(1)
}
