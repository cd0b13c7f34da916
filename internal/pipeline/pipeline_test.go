package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"santander/internal/classifier"
	"santander/internal/core"
	"santander/internal/export"
	"santander/internal/export/memory"
	"santander/internal/features"
	"santander/internal/storage"
)

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()

	store, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func seedAccount(t *testing.T, store *storage.Store, id string, opened time.Time) {
	t.Helper()

	err := store.InsertSnapshot(context.Background(), core.AccountSnapshot{
		AccountID:     id,
		AnnualRevenue: decimal.NewFromInt(120000),
		Balance:       decimal.NewFromInt(1000),
		OpeningDate:   opened,
		IndustryCode:  "4711",
		ReferenceDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("seed account %s: %v", id, err)
	}
}

type failingClassifier struct{}

func (failingClassifier) Classify(context.Context, []features.Vector) (map[string]core.Stage, error) {
	return nil, errors.New("model exploded")
}

type failingReporter struct{}

func (failingReporter) Append(context.Context, export.Report) (string, error) {
	return "", errors.New("sheet gone")
}

func TestRun_LabelsEveryAccount(t *testing.T) {
	store := newTestStore(t)
	seedAccount(t, store, "young", time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC))
	seedAccount(t, store, "old", time.Date(2010, 6, 1, 0, 0, 0, 0, time.UTC))
	// Anchors the feature observation point at 2024-06-01.
	_, err := store.InsertTransaction(context.Background(), core.Transaction{
		Amount:        decimal.NewFromInt(10),
		Description:   "Pix",
		ReferenceDate: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		PayerID:       "young",
		ReceiverID:    "old",
	})
	if err != nil {
		t.Fatalf("seed transaction: %v", err)
	}

	reporter := memory.New()
	runner := New(store, features.New(store, 0), classifier.RuleBased{}, classifier.StrategyRule, reporter)

	result, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Accounts != 2 {
		t.Errorf("Accounts = %d, want 2", result.Accounts)
	}
	if result.RunID == "" {
		t.Error("RunID is empty")
	}

	counts, err := store.StageCounts(context.Background())
	if err != nil {
		t.Fatalf("StageCounts: %v", err)
	}
	if counts[core.StageIniciante] != 1 {
		t.Errorf("Iniciante count = %d, want 1 (the young account)", counts[core.StageIniciante])
	}

	reports := reporter.Reports()
	if len(reports) != 1 || reports[0].RunID != result.RunID {
		t.Errorf("reports = %+v, want one for run %s", reports, result.RunID)
	}
}

func TestRun_ClassifierFailureWritesNothing(t *testing.T) {
	store := newTestStore(t)
	seedAccount(t, store, "acc-1", time.Date(2010, 6, 1, 0, 0, 0, 0, time.UTC))

	// Existing labels must survive an aborted run untouched.
	err := store.ReplaceLabels(context.Background(),
		map[string]core.Stage{"acc-1": core.StageMadura}, time.Now())
	if err != nil {
		t.Fatalf("ReplaceLabels: %v", err)
	}

	runner := New(store, features.New(store, 0), failingClassifier{}, classifier.StrategyRule, nil)
	_, err = runner.Run(context.Background())
	if !errors.Is(err, core.ErrPipelineAborted) {
		t.Fatalf("Run error = %v, want ErrPipelineAborted", err)
	}

	counts, err := store.StageCounts(context.Background())
	if err != nil {
		t.Fatalf("StageCounts: %v", err)
	}
	if counts[core.StageMadura] != 1 {
		t.Errorf("Madura count = %d, want the pre-run label intact", counts[core.StageMadura])
	}
}

func TestRun_ReporterFailureDoesNotFailTheRun(t *testing.T) {
	store := newTestStore(t)
	seedAccount(t, store, "acc-1", time.Date(2010, 6, 1, 0, 0, 0, 0, time.UTC))

	runner := New(store, features.New(store, 0), classifier.RuleBased{}, classifier.StrategyRule, failingReporter{})

	result, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Accounts != 1 {
		t.Errorf("Accounts = %d, want 1", result.Accounts)
	}
}

func TestRun_EmptyStore(t *testing.T) {
	store := newTestStore(t)
	runner := New(store, features.New(store, 0), classifier.RuleBased{}, classifier.StrategyRule, nil)

	result, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Accounts != 0 {
		t.Errorf("Accounts = %d, want 0", result.Accounts)
	}
}
