// Package pipeline orchestrates one classification run: compute features,
// classify, persist the full label set, report.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"santander/internal/classifier"
	"santander/internal/core"
	"santander/internal/export"
	"santander/internal/features"
	"santander/internal/storage"
)

// RunResult summarizes a completed run.
type RunResult struct {
	RunID       string
	Accounts    int
	StageCounts map[core.Stage]int
	Duration    time.Duration
}

// Runner executes classification runs. A failure in any stage before the
// label write aborts the run without touching stored labels; the write
// itself is a single transaction, so a run either lands completely or not
// at all.
type Runner struct {
	store    *storage.Store
	engine   *features.Engine
	cls      classifier.Classifier
	strategy classifier.Strategy
	// reporter is optional; a nil reporter skips the export stage.
	reporter export.ReportWriter

	now func() time.Time
}

func New(store *storage.Store, engine *features.Engine, cls classifier.Classifier, strategy classifier.Strategy, reporter export.ReportWriter) *Runner {
	return &Runner{
		store:    store,
		engine:   engine,
		cls:      cls,
		strategy: strategy,
		reporter: reporter,
		now:      time.Now,
	}
}

// Run executes one full classification pass. Report export happens after
// the labels are committed, so an export failure is logged but does not
// fail the run.
func (r *Runner) Run(ctx context.Context) (RunResult, error) {
	runID := uuid.NewString()
	start := r.now()
	slog.InfoContext(ctx, "Classification run started", "run_id", runID, "strategy", r.strategy)

	vectors, err := r.engine.Compute(ctx)
	if err != nil {
		return RunResult{}, abort(runID, "compute features", err)
	}

	labels, err := r.cls.Classify(ctx, vectors)
	if err != nil {
		return RunResult{}, abort(runID, "classify", err)
	}
	if len(labels) != len(vectors) {
		return RunResult{}, abort(runID, "classify",
			fmt.Errorf("%d vectors in, %d labels out", len(vectors), len(labels)))
	}

	if err := r.store.ReplaceLabels(ctx, labels, r.now()); err != nil {
		return RunResult{}, abort(runID, "persist labels", err)
	}

	result := RunResult{
		RunID:       runID,
		Accounts:    len(labels),
		StageCounts: tally(labels),
		Duration:    r.now().Sub(start),
	}
	slog.InfoContext(ctx, "Classification run finished",
		"run_id", runID,
		"accounts", result.Accounts,
		"duration", result.Duration)

	if r.reporter != nil {
		_, err := r.reporter.Append(ctx, export.Report{
			RunID:       runID,
			GeneratedAt: r.now(),
			Accounts:    result.Accounts,
			StageCounts: result.StageCounts,
			Strategy:    string(r.strategy),
		})
		if err != nil {
			slog.WarnContext(ctx, "Run report export failed", "run_id", runID, "error", err)
		}
	}

	return result, nil
}

func abort(runID, stage string, err error) error {
	return fmt.Errorf("run %s: %s: %w: %w", runID, stage, core.ErrPipelineAborted, err)
}

func tally(labels map[string]core.Stage) map[core.Stage]int {
	counts := make(map[core.Stage]int, len(core.Stages()))
	for _, stage := range labels {
		counts[stage]++
	}
	return counts
}
