// Command verify replays stored backtest runs and reports any field that
// does not reproduce. Exits 1 when a run diverges.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"modquant-lab/internal/config"
	"modquant-lab/internal/logging"
	"modquant-lab/internal/pipeline"
	"modquant-lab/internal/verification"
)

func main() {
	configPath := flag.String("config", "", "YAML config file")
	runID := flag.String("run-id", "", "Verify a single run")
	ledgerID := flag.String("ledger-id", "", "Verify every run of a ledger")
	outputJSON := flag.Bool("json", false, "Print results as JSON")
	flag.Parse()

	if (*runID == "") == (*ledgerID == "") {
		fatal(fmt.Errorf("exactly one of --run-id or --ledger-id is required"))
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal(err)
	}
	if cfg.Storage.Mode != config.StorageDB {
		fatal(fmt.Errorf("verify needs storage mode %q, got %q", config.StorageDB, cfg.Storage.Mode))
	}
	logger, closer, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		fatal(err)
	}
	defer closer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Infof("received signal %v, shutting down", sig)
		cancel()
	}()

	stores, cleanup, err := pipeline.OpenStores(ctx, cfg.Storage, false)
	if err != nil {
		fatal(err)
	}
	defer cleanup()

	verifier := verification.NewReplayVerifier(stores.Runs, stores.Segments, logger)

	var report *verification.VerificationReport
	if *runID != "" {
		result, err := verifier.VerifyRun(ctx, *runID)
		if err != nil {
			cleanup()
			fatal(err)
		}
		report = &verification.VerificationReport{TotalRuns: 1, Results: []verification.VerificationResult{*result}}
		if result.Match {
			report.MatchedRuns = 1
		} else {
			report.DivergentRuns = 1
		}
	} else {
		report, err = verifier.VerifyLedger(ctx, *ledgerID)
		if err != nil {
			cleanup()
			fatal(err)
		}
	}

	if *outputJSON {
		output, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(output))
	} else {
		printReport(report)
	}

	if report.DivergentRuns > 0 {
		cleanup()
		os.Exit(1)
	}
}

func printReport(r *verification.VerificationReport) {
	fmt.Printf("Runs: %d  matched: %d  divergent: %d\n", r.TotalRuns, r.MatchedRuns, r.DivergentRuns)
	for _, res := range r.Results {
		status := "OK"
		if !res.Match {
			status = "DIVERGED"
		}
		fmt.Printf("%s  %s\n", res.RunID, status)
		for _, d := range res.Divergences {
			fmt.Printf("    %-28s stored=%v replayed=%v\n", d.Field, d.Expected, d.Actual)
		}
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "verify: %v\n", err)
	os.Exit(1)
}
