// Package query assembles SQL WHERE clauses from independent predicate
// values. Each predicate owns its fragment and its parameter bindings, so
// filter combinations stay testable in isolation and no user input is ever
// concatenated into SQL text.
package query

import (
	"strings"
)

// Predicate is one self-contained WHERE fragment with its bound arguments.
// The fragment must use `?` placeholders, one per argument.
type Predicate struct {
	Fragment string
	Args     []any
}

// And combines predicates into a single clause joined with AND. Empty
// predicates are skipped. The returned fragment has no leading WHERE; an
// empty predicate list yields the always-true clause "1=1" so callers can
// interpolate it unconditionally.
func And(preds ...Predicate) Predicate {
	fragments := make([]string, 0, len(preds))
	args := make([]any, 0)
	for _, p := range preds {
		if p.Fragment == "" {
			continue
		}
		fragments = append(fragments, p.Fragment)
		args = append(args, p.Args...)
	}
	if len(fragments) == 0 {
		return Predicate{Fragment: "1=1"}
	}
	return Predicate{Fragment: strings.Join(fragments, " AND "), Args: args}
}

// Eq matches a single column against a value.
func Eq(column string, value any) Predicate {
	return Predicate{Fragment: column + " = ?", Args: []any{value}}
}

// In matches a column against any of the given values (OR semantics).
// An empty value set yields an empty predicate, which And skips.
func In[T any](column string, values []T) Predicate {
	if len(values) == 0 {
		return Predicate{}
	}
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return Predicate{
		Fragment: column + " IN (" + placeholders(len(values)) + ")",
		Args:     args,
	}
}

// EitherParty matches transactions where the id appears as payer or
// receiver.
func EitherParty(id string) Predicate {
	return Predicate{Fragment: "(payer_id = ? OR receiver_id = ?)", Args: []any{id, id}}
}

// Receiver matches transactions paid to the id (income direction).
func Receiver(id string) Predicate {
	return Eq("receiver_id", id)
}

// Payer matches transactions paid by the id (expense direction).
func Payer(id string) Predicate {
	return Eq("payer_id", id)
}

// MonthOfYear matches the calendar month (1-12) of a timestamp column,
// ignoring the year. Transactions from different years in the same month
// are merged; the reporting layer depends on this exact behavior.
func MonthOfYear(column string, months []int) Predicate {
	if len(months) == 0 {
		return Predicate{}
	}
	return In("CAST(STRFTIME('%m', "+column+") AS INTEGER)", months)
}

func placeholders(n int) string {
	if n == 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}
