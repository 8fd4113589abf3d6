// Command server serves the backtest HTTP API:
//
//	GET  /healthz
//	GET  /metrics
//	POST /v1/backtests
//	GET  /v1/runs/:id[?format=md|csv]
//	GET  /v1/runs/:id/verify
//	GET  /v1/ledgers/:id/runs[?format=md]
//	GET  /v1/ledgers/:id/segments/:segmentation/summary
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"modquant-lab/internal/api"
	"modquant-lab/internal/config"
	"modquant-lab/internal/logging"
	"modquant-lab/internal/pipeline"
)

const shutdownTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", "", "YAML config file")
	addr := flag.String("addr", "", "Listen address (default: server.addr from config)")
	storageMode := flag.String("storage", "", "Storage mode: memory, db (default: from config)")
	migrate := flag.Bool("migrate", false, "Apply database migrations on startup")
	btFlags := config.BindBacktestFlags(flag.CommandLine)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal(err)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *storageMode != "" {
		cfg.Storage.Mode = *storageMode
	}
	if err := btFlags.Apply(cfg); err != nil {
		fatal(err)
	}

	logger, closer, err := logging.New(cfg.Log, os.Stdout)
	if err != nil {
		fatal(err)
	}
	defer closer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, cleanup, err := pipeline.OpenStores(ctx, cfg.Storage, *migrate)
	if err != nil {
		fatal(err)
	}
	defer cleanup()

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.New(cfg.Backtest, stores, logger).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", srv.Addr).WithField("storage", cfg.Storage.Mode).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Infof("received signal %v, initiating graceful shutdown", sig)
	case err, ok := <-errCh:
		if ok {
			logger.WithError(err).Error("server failed")
		}
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	go func() {
		sig := <-sigCh
		logger.Warnf("received second signal %v, forcing immediate shutdown", sig)
		os.Exit(1)
	}()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("shutdown failed")
	}
	logger.Info("shutdown complete")
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "server: %v\n", err)
	os.Exit(1)
}
