// Command segment splits a trade ledger into direction segments and writes
// <base>_analysis.csv and <base>_win_lose_seq.txt next to it (or to --output-dir).
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"modquant-lab/internal/backtest"
	"modquant-lab/internal/config"
	"modquant-lab/internal/domain"
	"modquant-lab/internal/ledger"
	"modquant-lab/internal/logging"
	"modquant-lab/internal/pipeline"
)

func main() {
	configPath := flag.String("config", "", "YAML config file")
	outputDir := flag.String("output-dir", "", "Output directory (default: next to the ledger)")
	btFlags := config.BindBacktestFlags(flag.CommandLine)
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: segment [flags] <trade ledger>")
		flag.PrintDefaults()
		os.Exit(2)
	}
	path := flag.Arg(0)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal(err)
	}
	if err := btFlags.Apply(cfg); err != nil {
		fatal(err)
	}
	logger, closer, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		fatal(err)
	}
	defer closer.Close()

	bc, err := cfg.BacktestConfig()
	if err != nil {
		fatal(err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		fatal(err)
	}

	runner, err := backtest.NewRunner(bc, logger)
	if err != nil {
		fatal(err)
	}
	res, err := runner.RunTrades(context.Background(), content)
	if err != nil {
		fatal(err)
	}

	dir := *outputDir
	if dir == "" {
		dir = filepath.Dir(path)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		fatal(err)
	}
	base := pipeline.BaseName(path)

	var segs bytes.Buffer
	if err := ledger.WriteSegments(&segs, res.Segments); err != nil {
		fatal(err)
	}
	segFile := filepath.Join(dir, base+"_analysis.csv")
	if err := os.WriteFile(segFile, segs.Bytes(), 0644); err != nil {
		fatal(err)
	}

	var labels bytes.Buffer
	if err := ledger.WriteLabels(&labels, res.Outcomes); err != nil {
		fatal(err)
	}
	labelFile := filepath.Join(dir, pipeline.LabelsFileName(path))
	if err := os.WriteFile(labelFile, labels.Bytes(), 0644); err != nil {
		fatal(err)
	}

	logger.WithField("segments", len(res.Segments)).Infof("wrote %s and %s", segFile, labelFile)
	printSummary(res)
}

func printSummary(res *backtest.Results) {
	b := res.Baseline
	fmt.Println()
	fmt.Printf("=== Segments (%s) ===\n", res.SegmentationID)
	fmt.Printf("Trades:             %d (%d skipped)\n", len(res.Trades), len(res.Warnings))
	fmt.Printf("Segments:           %d\n", b.Count)
	fmt.Printf("Wins / Losses:      %d / %d\n", b.Wins, b.Losses)
	fmt.Printf("Win Rate:           %.2f%%\n", b.WinRate*100)
	fmt.Printf("Total P&L:          %s\n", b.TotalPnL.String())
	fmt.Printf("Max Loss Run:       %d\n", b.MaxConsecutiveLosses)
	fmt.Printf("Labels:             %s\n", res.Labels)

	if len(res.Directions) == 0 {
		return
	}
	fmt.Println()
	fmt.Println("By direction:")
	for _, d := range res.Directions {
		fmt.Printf("  %-6s segments=%d wins=%d win_rate=%.2f%% pnl=%s\n",
			directionName(d.Direction), d.Segments, d.Wins, d.WinRate*100, d.TotalPnL.String())
	}
}

func directionName(d domain.Direction) string {
	if d == domain.DirectionLong {
		return "long"
	}
	return "short"
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "segment: %v\n", err)
	os.Exit(1)
}
