package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"santander/internal/core"
	"santander/internal/query"
)

const snapshotColumns = "account_id, annual_revenue, balance, opening_date, industry_code, reference_date"

// latestCTE resolves the newest snapshot per account. Ties on the reference
// date break on rowid so repeated reads always resolve the same row.
const latestCTE = `
WITH latest AS (
    SELECT ` + snapshotColumns + `,
           ROW_NUMBER() OVER (PARTITION BY account_id ORDER BY reference_date DESC, rowid DESC) AS rn
    FROM account_snapshots
    WHERE %s
)
SELECT ` + snapshotColumns + ` FROM latest WHERE rn = 1`

// SnapshotQuery narrows a latest-snapshot listing. Zero values mean no
// constraint.
type SnapshotQuery struct {
	IndustryCode string
	Stage        core.Stage
	// Labeled keeps only accounts carrying any maturity label. Implied
	// when Stage is set.
	Labeled bool
	Limit   int
	Offset  int
}

func (q SnapshotQuery) predicate() query.Predicate {
	preds := make([]query.Predicate, 0, 2)
	if q.IndustryCode != "" {
		preds = append(preds, query.Eq("industry_code", q.IndustryCode))
	}
	switch {
	case q.Stage != "":
		preds = append(preds, query.Predicate{
			Fragment: "account_id IN (SELECT account_id FROM maturity_labels WHERE stage = ?)",
			Args:     []any{string(q.Stage)},
		})
	case q.Labeled:
		preds = append(preds, query.Predicate{
			Fragment: "account_id IN (SELECT account_id FROM maturity_labels)",
		})
	}
	return query.And(preds...)
}

// InsertSnapshot records one account snapshot. Used by data loaders and
// tests; the analytic paths never write snapshots.
func (s *Store) InsertSnapshot(ctx context.Context, snap core.AccountSnapshot) error {
	if err := snap.Validate(); err != nil {
		return fmt.Errorf("validate snapshot: %w", err)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO account_snapshots (`+snapshotColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		snap.AccountID,
		snap.AnnualRevenue.String(),
		snap.Balance.String(),
		fmtTime(snap.OpeningDate),
		snap.IndustryCode,
		fmtTime(snap.ReferenceDate),
	)
	if err != nil {
		return storeErr("insert snapshot", err)
	}
	return nil
}

// AccountExists reports whether any snapshot was ever recorded for the id.
func (s *Store) AccountExists(ctx context.Context, accountID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM account_snapshots WHERE account_id = ? LIMIT 1`, accountID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, storeErr("check account", err)
	}
	return true, nil
}

// LatestSnapshot resolves the current view of one account: the snapshot
// with the highest reference date, rowid as tie-break.
func (s *Store) LatestSnapshot(ctx context.Context, accountID string) (core.AccountSnapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+snapshotColumns+` FROM account_snapshots
         WHERE account_id = ?
         ORDER BY reference_date DESC, rowid DESC
         LIMIT 1`, accountID)

	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.AccountSnapshot{}, fmt.Errorf("resolve %q: %w", accountID, core.ErrNotFound)
	}
	if err != nil {
		return core.AccountSnapshot{}, storeErr("resolve latest snapshot", err)
	}
	return snap, nil
}

// CountLatestSnapshots counts accounts matched by q, each represented by
// its resolved latest snapshot.
func (s *Store) CountLatestSnapshots(ctx context.Context, q SnapshotQuery) (int, error) {
	p := q.predicate()
	stmt := fmt.Sprintf(`SELECT COUNT(*) FROM (`+latestCTE+`)`, p.Fragment)

	var total int
	if err := s.db.QueryRowContext(ctx, stmt, p.Args...).Scan(&total); err != nil {
		return 0, storeErr("count latest snapshots", err)
	}
	return total, nil
}

// ListLatestSnapshots returns the resolved latest snapshot of every account
// matched by q, ordered by account id ascending.
func (s *Store) ListLatestSnapshots(ctx context.Context, q SnapshotQuery) ([]core.AccountSnapshot, error) {
	p := q.predicate()
	stmt := fmt.Sprintf(latestCTE, p.Fragment) + ` ORDER BY account_id`
	args := p.Args
	if q.Limit > 0 {
		stmt += ` LIMIT ? OFFSET ?`
		args = append(args, q.Limit, q.Offset)
	}

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, storeErr("list latest snapshots", err)
	}
	defer rows.Close()

	var snaps []core.AccountSnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, storeErr("scan snapshot", err)
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate snapshots", err)
	}
	return snaps, nil
}

// AllSnapshots returns the full snapshot history of every account, ordered
// by account id and ascending reference date. Feature engineering fits the
// balance trend from these series.
func (s *Store) AllSnapshots(ctx context.Context) ([]core.AccountSnapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+snapshotColumns+` FROM account_snapshots
         ORDER BY account_id, reference_date, rowid`)
	if err != nil {
		return nil, storeErr("load snapshots", err)
	}
	defer rows.Close()

	var snaps []core.AccountSnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, storeErr("scan snapshot", err)
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate snapshots", err)
	}
	return snaps, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(r rowScanner) (core.AccountSnapshot, error) {
	var (
		snap             core.AccountSnapshot
		revenue, balance string
		opening, refDate string
	)
	if err := r.Scan(&snap.AccountID, &revenue, &balance, &opening, &snap.IndustryCode, &refDate); err != nil {
		return core.AccountSnapshot{}, err
	}

	var err error
	if snap.AnnualRevenue, err = decimal.NewFromString(revenue); err != nil {
		return core.AccountSnapshot{}, fmt.Errorf("parse annual revenue %q: %w", revenue, err)
	}
	if snap.Balance, err = decimal.NewFromString(balance); err != nil {
		return core.AccountSnapshot{}, fmt.Errorf("parse balance %q: %w", balance, err)
	}
	if snap.OpeningDate, err = parseTime(opening); err != nil {
		return core.AccountSnapshot{}, fmt.Errorf("parse opening date %q: %w", opening, err)
	}
	if snap.ReferenceDate, err = parseTime(refDate); err != nil {
		return core.AccountSnapshot{}, fmt.Errorf("parse reference date %q: %w", refDate, err)
	}
	return snap, nil
}
