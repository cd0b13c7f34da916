package analytics

import (
	"context"
	"fmt"

	"santander/internal/core"
)

// Direction labels as the reporting layer renders them.
const (
	directionIn  = "Entrada"
	directionOut = "Saída"
)

// FilteredList returns one page of an account's transactions. All filter
// fields are optional and combine with AND; malformed values are rejected
// before any query runs. A filter matching nothing yields an empty page,
// not an error.
func (s *Service) FilteredList(ctx context.Context, accountID string, f core.TransactionFilter, page int) (TransactionPage, error) {
	if err := f.Validate(); err != nil {
		return TransactionPage{}, fmt.Errorf("filtered list: %w", err)
	}

	exists, err := s.store.AccountExists(ctx, accountID)
	if err != nil {
		return TransactionPage{}, fmt.Errorf("filtered list: %w", err)
	}
	if !exists {
		return TransactionPage{}, fmt.Errorf("filtered list %q: %w", accountID, core.ErrNotFound)
	}

	total, err := s.store.CountTransactions(ctx, accountID, f)
	if err != nil {
		return TransactionPage{}, fmt.Errorf("filtered list: %w", err)
	}

	result := TransactionPage{
		TotalPages: totalPages(total, DefaultPageSize),
		Items:      []TransactionItem{},
	}
	if total == 0 {
		return result, nil
	}

	txs, err := s.store.ListTransactions(ctx, accountID, f, DefaultPageSize, pageOffset(page, DefaultPageSize))
	if err != nil {
		return TransactionPage{}, fmt.Errorf("filtered list: %w", err)
	}

	for _, tx := range txs {
		item := TransactionItem{
			Direction:    directionIn,
			Counterparty: tx.Counterparty(accountID),
			Date:         tx.ReferenceDate.Format(displayDate),
			Type:         tx.Description,
			Amount:       tx.Amount,
		}
		if tx.Outgoing(accountID) {
			item.Direction = directionOut
		}
		result.Items = append(result.Items, item)
	}
	return result, nil
}
