// Command classify executes a single classification run and exits. Useful
// for cron jobs and manual reclassification after data loads.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

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

	logger.Info("Starting classify", "strategy", cfg.Strategy)

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

	ctx := context.Background()

	strategy := classifier.Strategy(cfg.Strategy)
	cls, err := classifier.Get(strategy, classifier.Deps{Store: store, Seed: cfg.ClusterSeed})
	if err != nil {
		logger.Error("Failed to build classifier", "error", err)
		os.Exit(1)
	}

	// Report export is optional; without a spreadsheet id the run only
	// writes labels.
	var reporter export.ReportWriter
	if cfg.ExportSpreadsheetID != "" {
		client, err := gsheet.New(ctx, cfg.ExportSpreadsheetID, cfg.ExportSheetName)
		if err != nil {
			logger.Error("Failed to initialize Sheets exporter", "error", err)
			os.Exit(1)
		}
		reporter = client
		logger.Info("Sheets exporter initialized", "spreadsheet_id", cfg.ExportSpreadsheetID)
	}

	runner := pipeline.New(store, features.New(store, cfg.FeatureWindowMonths), cls, strategy, reporter)

	result, err := runner.Run(ctx)
	if err != nil {
		logger.Error("Classification run failed", "error", err)
		os.Exit(1)
	}

	logger.Info("Classification run complete",
		"run_id", result.RunID,
		"accounts", result.Accounts,
		"duration", result.Duration)
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
