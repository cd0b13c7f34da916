package analytics

import (
	"context"
	"fmt"

	"santander/internal/core"
)

// Overview returns the headline transaction figures of one account. The
// account must be registered (have at least one snapshot); an account with
// no transactions yields zero-valued aggregates, which is a success.
func (s *Service) Overview(ctx context.Context, accountID string) (Overview, error) {
	exists, err := s.store.AccountExists(ctx, accountID)
	if err != nil {
		return Overview{}, fmt.Errorf("overview: %w", err)
	}
	if !exists {
		return Overview{}, fmt.Errorf("overview %q: %w", accountID, core.ErrNotFound)
	}

	agg, err := s.store.Overview(ctx, accountID)
	if err != nil {
		return Overview{}, fmt.Errorf("overview: %w", err)
	}
	return Overview{
		CounterpartyCount: agg.CounterpartyCount,
		TransactionCount:  agg.TransactionCount,
		Balance:           agg.Balance,
	}, nil
}

// GlobalStats returns ledger-wide totals.
func (s *Service) GlobalStats(ctx context.Context) (Stats, error) {
	raw, err := s.store.Stats(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("global stats: %w", err)
	}
	return Stats{
		TotalAccounts:     raw.TotalAccounts,
		TotalTransactions: raw.TotalTransactions,
		TotalTransacted:   raw.TotalTransacted,
		TotalRevenue:      raw.TotalRevenue,
	}, nil
}
