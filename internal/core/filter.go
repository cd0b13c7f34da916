package core

import "fmt"

const (
	DirectionIncome  Direction = "income"
	DirectionExpense Direction = "expense"
	DirectionBoth    Direction = "both"
)

// Direction selects which role the account plays in listed transactions.
type Direction string

// TransactionFilter narrows a transaction listing. All fields are optional
// and combine with AND; zero values mean "no constraint".
type TransactionFilter struct {
	// Direction restricts the account's role. Empty means both.
	Direction Direction
	// Months matches the calendar month (1-12) of the reference date,
	// ignoring the year. Same-month transactions from different years are
	// merged on purpose; see the listing queries.
	Months []int
	// Types matches the transaction description against any of the values.
	Types []string
	// Counterparty restricts to transactions involving this other account,
	// in either role.
	Counterparty string
}

// Validate rejects malformed filter values before any query runs.
func (f TransactionFilter) Validate() error {
	switch f.Direction {
	case "", DirectionIncome, DirectionExpense, DirectionBoth:
	default:
		return fmt.Errorf("%w: unknown direction %q", ErrInvalidFilter, f.Direction)
	}
	for _, m := range f.Months {
		if m < 1 || m > 12 {
			return fmt.Errorf("%w: month %d out of range 1-12", ErrInvalidFilter, m)
		}
	}
	return nil
}
