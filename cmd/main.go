package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/enerlytics/energis-extractor/internal/config"
	"github.com/enerlytics/energis-extractor/internal/fetch"
	"github.com/enerlytics/energis-extractor/internal/logging"
	"github.com/enerlytics/energis-extractor/internal/metrics"
	"github.com/enerlytics/energis-extractor/internal/runner"
	"github.com/enerlytics/energis-extractor/internal/scheduler"
)

// Command energis-extractor pulls metered values or journal events from the
// Energis API and writes them to a CSV table (with manifest) or Postgres.
//
// A run self-chunks the requested date range to keep memory bounded, fetches
// chunks concurrently, and streams rows to the output as they arrive.
//
// Usage:
//
//	energis-extractor [flags]
//
// The flags are:
//
//	-config string
//	      path to config file (default "config.yaml")
//	-debug
//	      enable debug logging regardless of config
func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	debug := flag.Bool("debug", false, "enable debug logging regardless of config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *debug {
		cfg.Debug = true
	}
	if err := cfg.Validate(); err != nil {
		log.Printf("Configuration error: %v", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Debug)
	runID := uuid.NewString()
	logger.WithFields(logrus.Fields{
		"run_id":  runID,
		"dataset": cfg.SyncOptions.Dataset,
	}).Info("starting extractor")

	if cfg.Metrics.Addr != "" {
		metrics.Register()
		go func() {
			if err := http.ListenAndServe(cfg.Metrics.Addr, metrics.Handler()); err != nil {
				logger.WithError(err).Error("metrics endpoint failed")
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := runner.New(cfg, logger, fetch.NewHTTPClient())

	// One-shot mode unless a cron schedule is configured.
	if cfg.Scheduler.Cron == "" {
		if err := r.Run(ctx); err != nil {
			logger.WithError(err).Error("extraction run failed")
			os.Exit(2)
		}
		return
	}

	sched := scheduler.New(ctx, cfg.Scheduler.Cron, r.Run, logger)
	if err := sched.Start(); err != nil {
		logger.WithError(err).Error("failed to start scheduler")
		os.Exit(2)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	logger.WithField("signal", sig.String()).Info("shutting down")
	sched.Stop()
	cancel()
}
