// Package features turns raw snapshots and transactions into the per-account
// feature vectors the maturity classifiers consume.
package features

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"santander/internal/core"
	"santander/internal/storage"
)

const daysPerYear = 365.25

// Vector is the engineered feature set of one account at a point in time.
type Vector struct {
	AccountID string

	// AgeYears is the account age in fractional years.
	AgeYears float64
	// BalanceTrend is the least-squares slope of the balance over the
	// snapshot history, in currency units per day. Zero when fewer than
	// two snapshots exist.
	BalanceTrend float64
	// NetCashFlow is total received minus total paid over the engine's
	// window.
	NetCashFlow float64

	AnnualRevenue float64
	Balance       float64
	TotalPaid     float64
	TotalReceived float64
	PaymentCount  float64
	ReceiptCount  float64
	// DaysSinceLastActivity measures recency against the newest reference
	// date in the ledger. Accounts that never transacted count from their
	// opening date.
	DaysSinceLastActivity float64

	IndustryCode string
}

// Engine computes feature vectors from the store. windowMonths bounds the
// cash-flow and activity sums; zero means the full transaction history.
type Engine struct {
	store        *storage.Store
	windowMonths int

	now func() time.Time
}

func New(store *storage.Store, windowMonths int) *Engine {
	return &Engine{
		store:        store,
		windowMonths: windowMonths,
		now:          time.Now,
	}
}

// Compute builds one vector per account that has at least one snapshot,
// ordered by account id. The four store scans run concurrently; any failure
// aborts the whole computation.
func (e *Engine) Compute(ctx context.Context) ([]Vector, error) {
	var since time.Time
	if e.windowMonths > 0 {
		since = e.now().AddDate(0, -e.windowMonths, 0)
	}

	var (
		snaps          []core.AccountSnapshot
		paid, received map[string]storage.RoleAggregate
		lastSeen       time.Time
		ledgerActive   bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		snaps, err = e.store.AllSnapshots(gctx)
		return err
	})
	g.Go(func() (err error) {
		paid, err = e.store.PaidAggregates(gctx, since)
		return err
	})
	g.Go(func() (err error) {
		received, err = e.store.ReceivedAggregates(gctx, since)
		return err
	})
	g.Go(func() (err error) {
		lastSeen, ledgerActive, err = e.store.LatestTransactionDate(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load feature inputs: %w", err)
	}

	// The observation point anchors age and recency. An empty ledger falls
	// back to the wall clock.
	observedAt := e.now()
	if ledgerActive {
		observedAt = lastSeen
	}

	histories := groupByAccount(snaps)
	ids := make([]string, 0, len(histories))
	for id := range histories {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	vectors := make([]Vector, 0, len(ids))
	for _, id := range ids {
		history := histories[id]
		latest := history[len(history)-1]

		v := Vector{
			AccountID:     id,
			AgeYears:      observedAt.Sub(latest.OpeningDate).Hours() / 24 / daysPerYear,
			BalanceTrend:  balanceTrend(history),
			AnnualRevenue: latest.AnnualRevenue.InexactFloat64(),
			Balance:       latest.Balance.InexactFloat64(),
			IndustryCode:  latest.IndustryCode,
		}

		lastActivity := latest.OpeningDate
		if agg, ok := paid[id]; ok {
			v.TotalPaid = agg.Total.InexactFloat64()
			v.PaymentCount = float64(agg.Count)
			if agg.LastActivity.After(lastActivity) {
				lastActivity = agg.LastActivity
			}
		}
		if agg, ok := received[id]; ok {
			v.TotalReceived = agg.Total.InexactFloat64()
			v.ReceiptCount = float64(agg.Count)
			if agg.LastActivity.After(lastActivity) {
				lastActivity = agg.LastActivity
			}
		}
		v.NetCashFlow = v.TotalReceived - v.TotalPaid
		v.DaysSinceLastActivity = observedAt.Sub(lastActivity).Hours() / 24

		vectors = append(vectors, v)
	}
	return vectors, nil
}

// groupByAccount splits the snapshot scan into per-account histories. The
// scan is ordered by account and ascending reference date, so each history
// ends with the account's latest snapshot.
func groupByAccount(snaps []core.AccountSnapshot) map[string][]core.AccountSnapshot {
	histories := make(map[string][]core.AccountSnapshot)
	for _, snap := range snaps {
		histories[snap.AccountID] = append(histories[snap.AccountID], snap)
	}
	return histories
}

// balanceTrend fits balance against time with ordinary least squares and
// returns the slope. One data point cannot define a direction, so short
// histories yield zero.
func balanceTrend(history []core.AccountSnapshot) float64 {
	if len(history) < 2 {
		return 0
	}

	xs := make([]float64, len(history))
	ys := make([]float64, len(history))
	epoch := history[0].ReferenceDate
	for i, snap := range history {
		xs[i] = snap.ReferenceDate.Sub(epoch).Hours() / 24
		ys[i] = snap.Balance.InexactFloat64()
	}
	// All snapshots on the same date leave the fit degenerate.
	if xs[len(xs)-1] == 0 {
		return 0
	}

	_, slope := stat.LinearRegression(xs, ys, nil, false)
	return slope
}
