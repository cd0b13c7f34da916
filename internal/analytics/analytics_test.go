package analytics

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"santander/internal/core"
	"santander/internal/storage"
)

func newTestService(t *testing.T) (*Service, *storage.Store) {
	t.Helper()

	store, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return New(store), store
}

func seedSnapshot(t *testing.T, s *storage.Store, id string, refDate time.Time, revenue float64, industry string) {
	t.Helper()

	err := s.InsertSnapshot(context.Background(), core.AccountSnapshot{
		AccountID:     id,
		AnnualRevenue: decimal.NewFromFloat(revenue),
		Balance:       decimal.NewFromFloat(1000),
		OpeningDate:   time.Date(2015, 3, 1, 0, 0, 0, 0, time.UTC),
		IndustryCode:  industry,
		ReferenceDate: refDate,
	})
	if err != nil {
		t.Fatalf("seed snapshot for %s: %v", id, err)
	}
}

func seedTransaction(t *testing.T, s *storage.Store, payer, receiver string, amount float64, description string, refDate time.Time) {
	t.Helper()

	_, err := s.InsertTransaction(context.Background(), core.Transaction{
		Amount:        decimal.NewFromFloat(amount),
		Description:   description,
		ReferenceDate: refDate,
		PayerID:       payer,
		ReceiverID:    receiver,
	})
	if err != nil {
		t.Fatalf("seed transaction %s->%s: %v", payer, receiver, err)
	}
}

func date(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 12, 0, 0, 0, time.UTC)
}

func TestOverview_UnknownAccount(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Overview(context.Background(), "ghost")
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("Overview(ghost) error = %v, want ErrNotFound", err)
	}
}

func TestOverview_QuietAccountHasZeroAggregates(t *testing.T) {
	svc, store := newTestService(t)
	seedSnapshot(t, store, "acc-1", date(2024, 1, 1), 50000, "4711")

	ov, err := svc.Overview(context.Background(), "acc-1")
	if err != nil {
		t.Fatalf("Overview: %v", err)
	}
	if ov.CounterpartyCount != 0 || ov.TransactionCount != 0 || !ov.Balance.IsZero() {
		t.Errorf("Overview = %+v, want all zero", ov)
	}
}

func TestOverview_SignedBalance(t *testing.T) {
	svc, store := newTestService(t)
	seedSnapshot(t, store, "acc-1", date(2024, 1, 1), 50000, "4711")
	seedTransaction(t, store, "other-1", "acc-1", 100, "Pix", date(2024, 1, 5))
	seedTransaction(t, store, "other-2", "acc-1", 75, "TED", date(2024, 2, 5))
	seedTransaction(t, store, "acc-1", "other-1", 40, "Boleto", date(2024, 3, 5))

	ov, err := svc.Overview(context.Background(), "acc-1")
	if err != nil {
		t.Fatalf("Overview: %v", err)
	}
	if ov.CounterpartyCount != 2 {
		t.Errorf("CounterpartyCount = %d, want 2", ov.CounterpartyCount)
	}
	if ov.TransactionCount != 3 {
		t.Errorf("TransactionCount = %d, want 3", ov.TransactionCount)
	}
	if want := decimal.NewFromInt(135); !ov.Balance.Equal(want) {
		t.Errorf("Balance = %s, want %s", ov.Balance, want)
	}
}

func TestOverview_BalanceMatchesUnfilteredListing(t *testing.T) {
	svc, store := newTestService(t)
	seedSnapshot(t, store, "acc-1", date(2024, 1, 1), 50000, "4711")
	seedTransaction(t, store, "other-1", "acc-1", 100, "Pix", date(2024, 1, 5))
	seedTransaction(t, store, "other-2", "acc-1", 75, "TED", date(2024, 2, 5))
	seedTransaction(t, store, "acc-1", "other-1", 40, "Boleto", date(2024, 3, 5))

	ov, err := svc.Overview(context.Background(), "acc-1")
	if err != nil {
		t.Fatalf("Overview: %v", err)
	}
	page, err := svc.FilteredList(context.Background(), "acc-1",
		core.TransactionFilter{Direction: core.DirectionBoth}, 1)
	if err != nil {
		t.Fatalf("FilteredList: %v", err)
	}

	signed := decimal.Zero
	for _, item := range page.Items {
		if item.Direction == "Saída" {
			signed = signed.Sub(item.Amount)
		} else {
			signed = signed.Add(item.Amount)
		}
	}
	if !signed.Equal(ov.Balance) {
		t.Errorf("signed listing total = %s, overview balance = %s", signed, ov.Balance)
	}
	if len(page.Items) != ov.TransactionCount {
		t.Errorf("listed %d items, overview counts %d", len(page.Items), ov.TransactionCount)
	}
}

func TestFilteredList_InvalidFilter(t *testing.T) {
	svc, store := newTestService(t)
	seedSnapshot(t, store, "acc-1", date(2024, 1, 1), 50000, "4711")

	tests := []struct {
		name   string
		filter core.TransactionFilter
	}{
		{"unknown direction", core.TransactionFilter{Direction: "sideways"}},
		{"month zero", core.TransactionFilter{Months: []int{0}}},
		{"month thirteen", core.TransactionFilter{Months: []int{13}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.FilteredList(context.Background(), "acc-1", tt.filter, 1)
			if !errors.Is(err, core.ErrInvalidFilter) {
				t.Errorf("FilteredList error = %v, want ErrInvalidFilter", err)
			}
		})
	}
}

func TestFilteredList_DirectionAndMapping(t *testing.T) {
	svc, store := newTestService(t)
	seedSnapshot(t, store, "acc-1", date(2024, 1, 1), 50000, "4711")
	seedTransaction(t, store, "other-1", "acc-1", 100, "Pix", date(2024, 1, 5))
	seedTransaction(t, store, "other-2", "acc-1", 75, "TED", date(2024, 2, 5))
	seedTransaction(t, store, "acc-1", "other-1", 40, "Boleto", date(2024, 3, 5))

	page, err := svc.FilteredList(context.Background(), "acc-1",
		core.TransactionFilter{Direction: core.DirectionIncome}, 1)
	if err != nil {
		t.Fatalf("FilteredList: %v", err)
	}
	if page.TotalPages != 1 {
		t.Errorf("TotalPages = %d, want 1", page.TotalPages)
	}
	if len(page.Items) != 2 {
		t.Fatalf("len(Items) = %d, want 2", len(page.Items))
	}

	// Newest first; every income row is seen as an inflow from the payer.
	first := page.Items[0]
	if first.Direction != "Entrada" || first.Counterparty != "other-2" {
		t.Errorf("first item = %+v, want Entrada from other-2", first)
	}
	if first.Date != "05/02/2024" {
		t.Errorf("first item date = %q, want 05/02/2024", first.Date)
	}

	expenses, err := svc.FilteredList(context.Background(), "acc-1",
		core.TransactionFilter{Direction: core.DirectionExpense}, 1)
	if err != nil {
		t.Fatalf("FilteredList expenses: %v", err)
	}
	if len(expenses.Items) != 1 || expenses.Items[0].Direction != "Saída" {
		t.Fatalf("expense items = %+v, want one Saída", expenses.Items)
	}
	if expenses.Items[0].Counterparty != "other-1" {
		t.Errorf("expense counterparty = %q, want other-1", expenses.Items[0].Counterparty)
	}
}

func TestFilteredList_PaginationPartitionsResults(t *testing.T) {
	svc, store := newTestService(t)
	seedSnapshot(t, store, "acc-1", date(2024, 1, 1), 50000, "4711")
	for i := 0; i < 45; i++ {
		seedTransaction(t, store, "other", "acc-1", float64(i+1), "Pix",
			date(2024, 1, 1).Add(time.Duration(i)*time.Hour))
	}

	seen := make(map[string]bool)
	var pages int
	for page := 1; ; page++ {
		res, err := svc.FilteredList(context.Background(), "acc-1", core.TransactionFilter{}, page)
		if err != nil {
			t.Fatalf("FilteredList page %d: %v", page, err)
		}
		if page == 1 {
			pages = res.TotalPages
			if pages != 3 {
				t.Fatalf("TotalPages = %d, want 3", pages)
			}
		}
		for _, item := range res.Items {
			key := item.Amount.String()
			if seen[key] {
				t.Errorf("amount %s appears on more than one page", key)
			}
			seen[key] = true
		}
		if page == pages {
			if len(res.Items) != 5 {
				t.Errorf("last page has %d items, want 5", len(res.Items))
			}
			break
		}
		if len(res.Items) != DefaultPageSize {
			t.Errorf("page %d has %d items, want %d", page, len(res.Items), DefaultPageSize)
		}
	}
	if len(seen) != 45 {
		t.Errorf("pages covered %d transactions, want 45", len(seen))
	}
}

func TestFilteredList_EmptyMatchIsNotAnError(t *testing.T) {
	svc, store := newTestService(t)
	seedSnapshot(t, store, "acc-1", date(2024, 1, 1), 50000, "4711")
	seedTransaction(t, store, "other", "acc-1", 100, "Pix", date(2024, 1, 5))

	page, err := svc.FilteredList(context.Background(), "acc-1",
		core.TransactionFilter{Types: []string{"DOC"}}, 1)
	if err != nil {
		t.Fatalf("FilteredList: %v", err)
	}
	if page.TotalPages != 0 || len(page.Items) != 0 {
		t.Errorf("page = %+v, want empty", page)
	}
}

func TestMonthlyFlow_MergesYearsAndOmitsQuietMonths(t *testing.T) {
	svc, store := newTestService(t)
	seedSnapshot(t, store, "acc-1", date(2024, 1, 1), 50000, "4711")
	seedTransaction(t, store, "other", "acc-1", 100, "Pix", date(2023, 1, 10))
	seedTransaction(t, store, "other", "acc-1", 50, "Pix", date(2024, 1, 10))
	seedTransaction(t, store, "acc-1", "other", 30, "Boleto", date(2024, 3, 10))

	points, err := svc.MonthlyFlow(context.Background(), "acc-1")
	if err != nil {
		t.Fatalf("MonthlyFlow: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("len(points) = %d, want 2 active months", len(points))
	}

	jan := points[0]
	if jan.Month != 1 || jan.Label != "Jan" {
		t.Errorf("first point = %d %q, want 1 Jan", jan.Month, jan.Label)
	}
	if want := decimal.NewFromInt(150); !jan.Income.Equal(want) {
		t.Errorf("January income = %s, want %s (both years folded)", jan.Income, want)
	}
	mar := points[1]
	if mar.Label != "Mar" || !mar.Expense.Equal(decimal.NewFromInt(30)) {
		t.Errorf("second point = %+v, want Mar expense 30", mar)
	}
}

func TestIndustryRanking_OrdersByAccountCount(t *testing.T) {
	svc, store := newTestService(t)
	// Industry A: one big account. Industry B: three small ones whose top
	// revenues still sum below A's.
	seedSnapshot(t, store, "a-1", date(2024, 1, 1), 900000, "A")
	seedSnapshot(t, store, "b-1", date(2024, 1, 1), 100000, "B")
	seedSnapshot(t, store, "b-2", date(2024, 1, 1), 90000, "B")
	seedSnapshot(t, store, "b-3", date(2024, 1, 1), 80000, "B")

	shares, err := svc.IndustryRanking(context.Background())
	if err != nil {
		t.Fatalf("IndustryRanking: %v", err)
	}
	if len(shares) != 2 {
		t.Fatalf("len(shares) = %d, want 2", len(shares))
	}
	if shares[0].IndustryCode != "B" || shares[0].AccountCount != 3 {
		t.Errorf("shares[0] = %+v, want B with 3 accounts first", shares[0])
	}
	if shares[1].IndustryCode != "A" || shares[1].AccountCount != 1 {
		t.Errorf("shares[1] = %+v, want A with 1 account", shares[1])
	}
}

func TestIndustryRanking_ServesCachedResult(t *testing.T) {
	svc, store := newTestService(t)
	seedSnapshot(t, store, "a-1", date(2024, 1, 1), 900000, "A")

	first, err := svc.IndustryRanking(context.Background())
	if err != nil {
		t.Fatalf("IndustryRanking: %v", err)
	}

	// New data within the TTL window is not reflected.
	seedSnapshot(t, store, "b-1", date(2024, 1, 1), 100000, "B")
	second, err := svc.IndustryRanking(context.Background())
	if err != nil {
		t.Fatalf("IndustryRanking (cached): %v", err)
	}
	if len(second) != len(first) {
		t.Errorf("cached ranking has %d entries, want %d", len(second), len(first))
	}
}

func TestIndustryList_UnknownCodeIsEmpty(t *testing.T) {
	svc, store := newTestService(t)
	seedSnapshot(t, store, "a-1", date(2024, 1, 1), 900000, "A")

	page, err := svc.IndustryList(context.Background(), "Z", 1)
	if err != nil {
		t.Fatalf("IndustryList: %v", err)
	}
	if page.TotalPages != 0 || len(page.Items) != 0 {
		t.Errorf("page = %+v, want empty", page)
	}
}

func TestIndustryList_ResolvesLatestSnapshotPerAccount(t *testing.T) {
	svc, store := newTestService(t)
	seedSnapshot(t, store, "a-1", date(2023, 6, 1), 100000, "A")
	seedSnapshot(t, store, "a-1", date(2024, 6, 1), 200000, "A")
	seedSnapshot(t, store, "a-2", date(2024, 1, 1), 50000, "A")

	page, err := svc.IndustryList(context.Background(), "A", 1)
	if err != nil {
		t.Fatalf("IndustryList: %v", err)
	}
	if page.TotalPages != 1 || len(page.Items) != 2 {
		t.Fatalf("page = %+v, want 2 accounts on one page", page)
	}
	if got := page.Items[0]; got.AccountID != "a-1" || got.ReferenceDate != "01/06/2024" {
		t.Errorf("Items[0] = %+v, want a-1 at its 2024 snapshot", got)
	}
}

func TestMaturityOverview_ZeroFillsMissingStages(t *testing.T) {
	svc, store := newTestService(t)
	seedSnapshot(t, store, "a-1", date(2024, 1, 1), 100000, "A")
	err := store.ReplaceLabels(context.Background(),
		map[string]core.Stage{"a-1": core.StageMadura}, date(2024, 6, 1))
	if err != nil {
		t.Fatalf("ReplaceLabels: %v", err)
	}

	counts, err := svc.MaturityOverview(context.Background())
	if err != nil {
		t.Fatalf("MaturityOverview: %v", err)
	}
	if len(counts) != len(core.Stages()) {
		t.Fatalf("len(counts) = %d, want %d", len(counts), len(core.Stages()))
	}
	if counts[core.StageMadura] != 1 {
		t.Errorf("Madura count = %d, want 1", counts[core.StageMadura])
	}
	if counts[core.StageIniciante] != 0 {
		t.Errorf("Iniciante count = %d, want 0", counts[core.StageIniciante])
	}
}

func TestMaturityList(t *testing.T) {
	svc, store := newTestService(t)
	seedSnapshot(t, store, "a-1", date(2024, 1, 1), 100000, "A")
	seedSnapshot(t, store, "a-2", date(2024, 1, 1), 50000, "B")
	seedSnapshot(t, store, "a-3", date(2024, 1, 1), 25000, "C")
	err := store.ReplaceLabels(context.Background(), map[string]core.Stage{
		"a-1": core.StageMadura,
		"a-2": core.StageIniciante,
	}, date(2024, 6, 1))
	if err != nil {
		t.Fatalf("ReplaceLabels: %v", err)
	}

	t.Run("stage filter", func(t *testing.T) {
		page, err := svc.MaturityList(context.Background(), "Madura", 1)
		if err != nil {
			t.Fatalf("MaturityList: %v", err)
		}
		if len(page.Items) != 1 || page.Items[0].AccountID != "a-1" {
			t.Errorf("items = %+v, want only a-1", page.Items)
		}
	})

	t.Run("all labeled accounts", func(t *testing.T) {
		page, err := svc.MaturityList(context.Background(), "", 1)
		if err != nil {
			t.Fatalf("MaturityList: %v", err)
		}
		// a-3 has no label and is excluded.
		if len(page.Items) != 2 {
			t.Errorf("len(items) = %d, want 2", len(page.Items))
		}
	})

	t.Run("unknown stage", func(t *testing.T) {
		_, err := svc.MaturityList(context.Background(), "Dormant", 1)
		if !errors.Is(err, core.ErrInvalidFilter) {
			t.Errorf("MaturityList error = %v, want ErrInvalidFilter", err)
		}
	})
}

func TestGlobalStats(t *testing.T) {
	svc, store := newTestService(t)
	seedSnapshot(t, store, "a-1", date(2024, 1, 1), 100000, "A")
	seedSnapshot(t, store, "a-2", date(2024, 1, 1), 50000, "B")
	seedTransaction(t, store, "a-1", "a-2", 300, "Pix", date(2024, 2, 1))

	stats, err := svc.GlobalStats(context.Background())
	if err != nil {
		t.Fatalf("GlobalStats: %v", err)
	}
	if stats.TotalAccounts != 2 || stats.TotalTransactions != 1 {
		t.Errorf("stats = %+v, want 2 accounts and 1 transaction", stats)
	}
	if want := decimal.NewFromInt(150000); !stats.TotalRevenue.Equal(want) {
		t.Errorf("TotalRevenue = %s, want %s", stats.TotalRevenue, want)
	}
}
