package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"santander/internal/core"
	"santander/internal/query"
)

const transactionColumns = "id, amount, description, reference_date, payer_id, receiver_id"

// OverviewAggregates are the headline per-account transaction figures.
type OverviewAggregates struct {
	// CounterpartyCount is the number of distinct accounts that paid into
	// this one.
	CounterpartyCount int
	// TransactionCount counts transactions where the account is either
	// party.
	TransactionCount int
	// Balance is sum(received) - sum(paid) over the full history.
	Balance decimal.Decimal
}

// MonthFlow is the income/expense sum of one calendar month (1-12). Months
// from different years fold into the same bucket.
type MonthFlow struct {
	Month   int
	Income  decimal.Decimal
	Expense decimal.Decimal
}

// RoleAggregate summarizes one account's activity in a single role (payer
// or receiver).
type RoleAggregate struct {
	Total        decimal.Decimal
	Count        int64
	LastActivity time.Time
}

// InsertTransaction records one transfer. Used by data loaders and tests.
func (s *Store) InsertTransaction(ctx context.Context, tx core.Transaction) (int64, error) {
	if err := tx.Validate(); err != nil {
		return 0, fmt.Errorf("validate transaction: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO transactions (amount, description, reference_date, payer_id, receiver_id)
         VALUES (?, ?, ?, ?, ?)`,
		tx.Amount.String(), tx.Description, fmtTime(tx.ReferenceDate), tx.PayerID, tx.ReceiverID)
	if err != nil {
		return 0, storeErr("insert transaction", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, storeErr("transaction id", err)
	}
	return id, nil
}

// Overview computes the per-account headline aggregates. An account with no
// transactions yields zero values, not an error.
func (s *Store) Overview(ctx context.Context, accountID string) (OverviewAggregates, error) {
	var agg OverviewAggregates

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT payer_id) FROM transactions WHERE receiver_id = ?`,
		accountID).Scan(&agg.CounterpartyCount)
	if err != nil {
		return agg, storeErr("count counterparties", err)
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE payer_id = ? OR receiver_id = ?`,
		accountID, accountID).Scan(&agg.TransactionCount)
	if err != nil {
		return agg, storeErr("count transactions", err)
	}

	var balance sql.NullFloat64
	err = s.db.QueryRowContext(ctx,
		`SELECT SUM(CASE WHEN receiver_id = ? THEN CAST(amount AS REAL)
                         WHEN payer_id = ? THEN -CAST(amount AS REAL)
                         ELSE 0 END)
         FROM transactions WHERE payer_id = ? OR receiver_id = ?`,
		accountID, accountID, accountID, accountID).Scan(&balance)
	if err != nil {
		return agg, storeErr("sum balance", err)
	}
	agg.Balance = decimal.NewFromFloat(balance.Float64)

	return agg, nil
}

// filterPredicate turns a validated TransactionFilter into one AND-combined
// predicate scoped to accountID.
func filterPredicate(accountID string, f core.TransactionFilter) query.Predicate {
	var role query.Predicate
	switch f.Direction {
	case core.DirectionIncome:
		role = query.Receiver(accountID)
	case core.DirectionExpense:
		role = query.Payer(accountID)
	default:
		role = query.EitherParty(accountID)
	}

	preds := []query.Predicate{
		role,
		query.MonthOfYear("reference_date", f.Months),
		query.In("description", f.Types),
	}
	if f.Counterparty != "" {
		preds = append(preds, query.EitherParty(f.Counterparty))
	}
	return query.And(preds...)
}

// CountTransactions counts the transactions of accountID matching f.
func (s *Store) CountTransactions(ctx context.Context, accountID string, f core.TransactionFilter) (int, error) {
	p := filterPredicate(accountID, f)
	var total int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE `+p.Fragment, p.Args...).Scan(&total)
	if err != nil {
		return 0, storeErr("count filtered transactions", err)
	}
	return total, nil
}

// ListTransactions returns one page of accountID's transactions matching f,
// newest first.
func (s *Store) ListTransactions(ctx context.Context, accountID string, f core.TransactionFilter, limit, offset int) ([]core.Transaction, error) {
	p := filterPredicate(accountID, f)
	args := append(p.Args, limit, offset)

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions
         WHERE `+p.Fragment+`
         ORDER BY reference_date DESC, id DESC
         LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, storeErr("list transactions", err)
	}
	defer rows.Close()

	var txs []core.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, storeErr("scan transaction", err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate transactions", err)
	}
	return txs, nil
}

// MonthlyFlow groups the account's transactions by calendar month (1-12,
// independent of year) and sums income and expense separately. Months with
// no activity are absent from the result; order is month ascending.
func (s *Store) MonthlyFlow(ctx context.Context, accountID string) ([]MonthFlow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT CAST(STRFTIME('%m', reference_date) AS INTEGER) AS month,
                SUM(CASE WHEN receiver_id = ? THEN CAST(amount AS REAL) ELSE 0 END) AS income,
                SUM(CASE WHEN payer_id = ? THEN CAST(amount AS REAL) ELSE 0 END) AS expense
         FROM transactions
         WHERE payer_id = ? OR receiver_id = ?
         GROUP BY month
         ORDER BY month`, accountID, accountID, accountID, accountID)
	if err != nil {
		return nil, storeErr("monthly flow", err)
	}
	defer rows.Close()

	var flows []MonthFlow
	for rows.Next() {
		var (
			flow            MonthFlow
			income, expense float64
		)
		if err := rows.Scan(&flow.Month, &income, &expense); err != nil {
			return nil, storeErr("scan monthly flow", err)
		}
		flow.Income = decimal.NewFromFloat(income)
		flow.Expense = decimal.NewFromFloat(expense)
		flows = append(flows, flow)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate monthly flow", err)
	}
	return flows, nil
}

// PaidAggregates summarizes every account's activity as payer, keyed by
// account id. Accounts without outgoing transactions are absent. A non-zero
// since restricts the sums to transactions on or after that date.
func (s *Store) PaidAggregates(ctx context.Context, since time.Time) (map[string]RoleAggregate, error) {
	return s.roleAggregates(ctx, "payer_id", since)
}

// ReceivedAggregates summarizes every account's activity as receiver.
func (s *Store) ReceivedAggregates(ctx context.Context, since time.Time) (map[string]RoleAggregate, error) {
	return s.roleAggregates(ctx, "receiver_id", since)
}

func (s *Store) roleAggregates(ctx context.Context, roleColumn string, since time.Time) (map[string]RoleAggregate, error) {
	bound := query.Predicate{Fragment: "1=1"}
	if !since.IsZero() {
		bound = query.Predicate{Fragment: "reference_date >= ?", Args: []any{fmtTime(since)}}
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+roleColumn+`, SUM(CAST(amount AS REAL)), COUNT(*), MAX(reference_date)
         FROM transactions
         WHERE `+bound.Fragment+`
         GROUP BY `+roleColumn, bound.Args...)
	if err != nil {
		return nil, storeErr("aggregate by "+roleColumn, err)
	}
	defer rows.Close()

	aggs := make(map[string]RoleAggregate)
	for rows.Next() {
		var (
			id    string
			total float64
			agg   RoleAggregate
			last  string
		)
		if err := rows.Scan(&id, &total, &agg.Count, &last); err != nil {
			return nil, storeErr("scan role aggregate", err)
		}
		agg.Total = decimal.NewFromFloat(total)
		if agg.LastActivity, err = parseTime(last); err != nil {
			return nil, fmt.Errorf("parse last activity %q: %w", last, err)
		}
		aggs[id] = agg
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate role aggregates", err)
	}
	return aggs, nil
}

// LatestTransactionDate returns the newest reference date in the ledger,
// used as the observation point for recency features. ok is false when the
// ledger is empty.
func (s *Store) LatestTransactionDate(ctx context.Context) (t time.Time, ok bool, err error) {
	var raw sql.NullString
	err = s.db.QueryRowContext(ctx,
		`SELECT MAX(reference_date) FROM transactions`).Scan(&raw)
	if err != nil {
		return time.Time{}, false, storeErr("latest transaction date", err)
	}
	if !raw.Valid {
		return time.Time{}, false, nil
	}
	t, err = parseTime(raw.String)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse latest transaction date %q: %w", raw.String, err)
	}
	return t, true, nil
}

func scanTransaction(r rowScanner) (core.Transaction, error) {
	var (
		tx      core.Transaction
		amount  string
		refDate string
	)
	if err := r.Scan(&tx.ID, &amount, &tx.Description, &refDate, &tx.PayerID, &tx.ReceiverID); err != nil {
		return core.Transaction{}, err
	}

	var err error
	if tx.Amount, err = decimal.NewFromString(amount); err != nil {
		return core.Transaction{}, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	if tx.ReferenceDate, err = parseTime(refDate); err != nil {
		return core.Transaction{}, fmt.Errorf("parse reference date %q: %w", refDate, err)
	}
	return tx, nil
}
