package storage

import (
	"context"

	"github.com/shopspring/decimal"
)

// IndustryRevenue scores one industry code: the revenue sum of its top 100
// snapshot rows and the total number of rows carrying the code.
type IndustryRevenue struct {
	IndustryCode string
	AccountCount int
	TopRevenue   decimal.Decimal
}

// TopIndustriesByRevenue ranks every industry code's rows by annual revenue
// descending (ties broken by source row order), sums the revenue of the top
// topN rows per code and returns the limit codes with the largest sums,
// highest first. The caller re-sorts for presentation.
func (s *Store) TopIndustriesByRevenue(ctx context.Context, topN, limit int) ([]IndustryRevenue, error) {
	rows, err := s.db.QueryContext(ctx, `
        WITH ranked AS (
            SELECT industry_code,
                   CAST(annual_revenue AS REAL) AS revenue,
                   ROW_NUMBER() OVER (
                       PARTITION BY industry_code
                       ORDER BY CAST(annual_revenue AS REAL) DESC, rowid
                   ) AS rn
            FROM account_snapshots
        ),
        top_sum AS (
            SELECT industry_code, SUM(revenue) AS top_revenue
            FROM ranked
            WHERE rn <= ?
            GROUP BY industry_code
        ),
        account_counts AS (
            SELECT industry_code, COUNT(account_id) AS accounts
            FROM account_snapshots
            GROUP BY industry_code
        )
        SELECT t.industry_code, c.accounts, t.top_revenue
        FROM top_sum t
        JOIN account_counts c ON t.industry_code = c.industry_code
        ORDER BY t.top_revenue DESC, t.industry_code
        LIMIT ?`, topN, limit)
	if err != nil {
		return nil, storeErr("rank industries", err)
	}
	defer rows.Close()

	var ranking []IndustryRevenue
	for rows.Next() {
		var (
			entry   IndustryRevenue
			revenue float64
		)
		if err := rows.Scan(&entry.IndustryCode, &entry.AccountCount, &revenue); err != nil {
			return nil, storeErr("scan industry revenue", err)
		}
		entry.TopRevenue = decimal.NewFromFloat(revenue)
		ranking = append(ranking, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate industry ranking", err)
	}
	return ranking, nil
}

// GlobalStats are ledger-wide headline figures for the landing dashboard.
type GlobalStats struct {
	TotalAccounts     int
	TotalSnapshots    int
	TotalTransactions int
	TotalTransacted   decimal.Decimal
	TotalRevenue      decimal.Decimal
}

// Stats computes ledger-wide totals. Revenue sums over each account's
// resolved latest snapshot so multi-snapshot accounts count once.
func (s *Store) Stats(ctx context.Context) (GlobalStats, error) {
	var stats GlobalStats

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT account_id), COUNT(*) FROM account_snapshots`).
		Scan(&stats.TotalAccounts, &stats.TotalSnapshots)
	if err != nil {
		return stats, storeErr("count accounts", err)
	}

	var transacted float64
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(CAST(amount AS REAL)), 0) FROM transactions`).
		Scan(&stats.TotalTransactions, &transacted)
	if err != nil {
		return stats, storeErr("sum transactions", err)
	}
	stats.TotalTransacted = decimal.NewFromFloat(transacted)

	var revenue float64
	err = s.db.QueryRowContext(ctx, `
        WITH latest AS (
            SELECT annual_revenue,
                   ROW_NUMBER() OVER (PARTITION BY account_id ORDER BY reference_date DESC, rowid DESC) AS rn
            FROM account_snapshots
        )
        SELECT COALESCE(SUM(CAST(annual_revenue AS REAL)), 0) FROM latest WHERE rn = 1`).
		Scan(&revenue)
	if err != nil {
		return stats, storeErr("sum revenue", err)
	}
	stats.TotalRevenue = decimal.NewFromFloat(revenue)

	return stats, nil
}
