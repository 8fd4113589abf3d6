// Command report regenerates the report files of a stored run, or the
// parameter sensitivity table of a stored ledger.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"modquant-lab/internal/config"
	"modquant-lab/internal/logging"
	"modquant-lab/internal/metrics"
	"modquant-lab/internal/observability"
	"modquant-lab/internal/pipeline"
	"modquant-lab/internal/reporting"
)

// SensitivityFile is written by --sensitivity.
const SensitivityFile = "SENSITIVITY.md"

func main() {
	configPath := flag.String("config", "", "YAML config file")
	runID := flag.String("run-id", "", "Run to report on")
	ledgerID := flag.String("ledger-id", "", "Ledger for --sensitivity")
	sensitivity := flag.Bool("sensitivity", false, "Write the sensitivity table of every run of --ledger-id")
	outputDir := flag.String("output-dir", "", "Output directory (default: output_dir from config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal(err)
	}
	if *outputDir != "" {
		cfg.OutputDir = *outputDir
	}
	if cfg.Storage.Mode != config.StorageDB {
		fatal(fmt.Errorf("report needs storage mode %q, got %q", config.StorageDB, cfg.Storage.Mode))
	}
	logger, closer, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		fatal(err)
	}
	defer closer.Close()

	ctx := context.Background()
	stores, cleanup, err := pipeline.OpenStores(ctx, cfg.Storage, false)
	if err != nil {
		fatal(err)
	}
	defer cleanup()

	files := map[string]string{}
	switch {
	case *sensitivity:
		if *ledgerID == "" {
			cleanup()
			fatal(fmt.Errorf("--sensitivity requires --ledger-id"))
		}
		rows, err := metrics.NewAggregator(stores.Segments, stores.Runs).Sensitivity(ctx, *ledgerID)
		if err != nil {
			cleanup()
			fatal(err)
		}
		files[SensitivityFile] = reporting.RenderSensitivityMarkdown(*ledgerID, rows)

	case *runID != "":
		gen := reporting.NewGenerator(stores.Runs, stores.Ledgers).WithMinSelected(cfg.Backtest.MinSelected)
		report, err := gen.Generate(ctx, *runID)
		if err != nil {
			cleanup()
			fatal(err)
		}
		files[pipeline.ReportFile] = reporting.RenderMarkdown(report)
		files[pipeline.StreaksFile] = reporting.RenderStreaksCSV(report.Streaks)
		files[pipeline.SummaryFile] = reporting.RenderSummaryCSV(report)

	default:
		cleanup()
		fatal(fmt.Errorf("one of --run-id or --sensitivity --ledger-id is required"))
	}

	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		cleanup()
		fatal(err)
	}
	for name, content := range files {
		path := filepath.Join(cfg.OutputDir, name)
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			cleanup()
			fatal(err)
		}
		logger.WithField("file", path).Info("written")
	}
	observability.RecordReportGenerated()
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "report: %v\n", err)
	os.Exit(1)
}
