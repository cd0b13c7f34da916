// Command maturity-worker runs classification continuously: on a fixed
// interval, and on demand for every run request consumed from AMQP.
// Completed runs are announced back on the completed queue.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"santander/internal/amqp"
	"santander/internal/classifier"
	"santander/internal/config"
	"santander/internal/export"
	gsheet "santander/internal/export/google"
	"santander/internal/features"
	"santander/internal/pipeline"
	"santander/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()

	// Setup structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	logger.Info("Starting maturity-worker", "strategy", cfg.Strategy, "interval", cfg.RunInterval)

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	store, err := storage.Open(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to open store", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var reporter export.ReportWriter
	if cfg.ExportSpreadsheetID != "" {
		client, err := gsheet.New(ctx, cfg.ExportSpreadsheetID, cfg.ExportSheetName)
		if err != nil {
			logger.Error("Failed to initialize Sheets exporter", "error", err)
			os.Exit(1)
		}
		reporter = client
		logger.Info("Sheets exporter initialized", "spreadsheet_id", cfg.ExportSpreadsheetID)
	} else {
		logger.Info("Report export disabled - no EXPORT_SPREADSHEET_ID provided")
	}

	engine := features.New(store, cfg.FeatureWindowMonths)
	deps := classifier.Deps{Store: store, Seed: cfg.ClusterSeed}

	// buildRunner resolves the strategy per run so a run request can ask
	// for a different one than the configured default.
	buildRunner := func(strategy string) (*pipeline.Runner, error) {
		if strategy == "" {
			strategy = cfg.Strategy
		}
		name := classifier.Strategy(strategy)
		cls, err := classifier.Get(name, deps)
		if err != nil {
			return nil, err
		}
		return pipeline.New(store, engine, cls, name, reporter), nil
	}

	// Initialize AMQP client for run requests and notifications (optional)
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing on interval only", "error", err)
			amqpClient = nil
		} else {
			defer amqpClient.Close()
			logger.Info("AMQP client initialized", "queue", cfg.AMQPQueue)
		}
	} else {
		logger.Info("AMQP disabled - running on interval only")
	}

	runOnce := func(strategy string) error {
		runner, err := buildRunner(strategy)
		if err != nil {
			return err
		}
		result, err := runner.Run(ctx)
		if err != nil {
			return err
		}
		if amqpClient != nil {
			counts := make(map[string]int, len(result.StageCounts))
			for stage, n := range result.StageCounts {
				counts[string(stage)] = n
			}
			err := amqpClient.PublishRunCompleted(ctx, &amqp.RunCompletedMessage{
				RunID:       result.RunID,
				Accounts:    result.Accounts,
				StageCounts: counts,
				Finished:    time.Now(),
			})
			if err != nil {
				logger.Error("Failed to publish run completed", "error", err, "run_id", result.RunID)
			}
		}
		return nil
	}

	// Startup run so a fresh deployment has labels immediately.
	if err := runOnce(""); err != nil {
		logger.Error("Startup run failed", "error", err)
		// Don't exit - the interval and queue may still succeed later
	}

	if amqpClient != nil {
		go func() {
			err := amqpClient.ConsumeRunRequests(ctx, func(msg *amqp.RunRequestMessage) error {
				return runOnce(msg.Strategy)
			})
			if err != nil && err != context.Canceled {
				logger.Error("Run request consumption failed", "error", err)
				cancel()
			}
		}()
	}

	ticker := time.NewTicker(cfg.RunInterval)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := runOnce(""); err != nil {
					logger.Error("Scheduled run failed", "error", err)
				}
			}
		}
	}()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	logger.Info("Shutting down worker...")
	cancel()
	logger.Info("Worker shutdown complete")
}

func logLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
