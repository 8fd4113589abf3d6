// Command backtest runs the follow-after-losses backtest over one ledger in
// memory and prints the report.
//
//	backtest [flags] <ledger|->
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"

	"modquant-lab/internal/backtest"
	"modquant-lab/internal/config"
	"modquant-lab/internal/domain"
	"modquant-lab/internal/logging"
	"modquant-lab/internal/pipeline"
	"modquant-lab/internal/reporting"
)

func main() {
	configPath := flag.String("config", "", "YAML config file")
	kindFlag := flag.String("kind", "", "Ledger kind: trades, segments, labels (default: from file name)")
	outputJSON := flag.Bool("json", false, "Print results as JSON")
	analysis := flag.Bool("analysis", false, "Also write the analysis markdown next to the ledger")
	btFlags := config.BindBacktestFlags(flag.CommandLine)
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: backtest [flags] <ledger|->")
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

	kind := domain.GuessLedgerKind(path)
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
		logger.Infof("received signal %v, shutting down", sig)
		cancel()
	}()

	content, err := readInput(path)
	if err != nil {
		fatal(err)
	}

	bc, err := cfg.BacktestConfig()
	if err != nil {
		fatal(err)
	}
	res, err := run(ctx, bc, logger, kind, content)
	if err != nil {
		fatal(err)
	}

	report := reporting.NewGenerator(nil, nil).
		WithMinSelected(bc.MinSelected).
		FromResults(res, path)
	md := reporting.RenderMarkdown(report)

	if *analysis && path != "-" {
		file := filepath.Join(filepath.Dir(path), reporting.AnalysisFileName(pipeline.BaseName(path), report.Parameters))
		if err := os.WriteFile(file, []byte(md), 0644); err != nil {
			fatal(err)
		}
		logger.WithField("file", file).Info("analysis written")
	}

	if *outputJSON {
		output, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			fatal(err)
		}
		fmt.Println(string(output))
		return
	}
	fmt.Print(md)
}

func run(ctx context.Context, cfg backtest.Config, log logrus.FieldLogger, kind domain.LedgerKind, content []byte) (*backtest.Results, error) {
	runner, err := backtest.NewRunner(cfg, log)
	if err != nil {
		return nil, err
	}
	switch kind {
	case domain.LedgerKindSegments:
		return runner.RunSegments(ctx, content)
	case domain.LedgerKindLabels:
		return runner.RunLabels(ctx, content)
	default:
		return runner.RunTrades(ctx, content)
	}
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "backtest: %v\n", err)
	os.Exit(1)
}
