package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"santander/internal/core"
)

// StageCounts returns the number of labeled accounts per maturity stage.
func (s *Store) StageCounts(ctx context.Context) (map[core.Stage]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT stage, COUNT(DISTINCT account_id) FROM maturity_labels GROUP BY stage`)
	if err != nil {
		return nil, storeErr("count stages", err)
	}
	defer rows.Close()

	counts := make(map[core.Stage]int)
	for rows.Next() {
		var (
			stage string
			n     int
		)
		if err := rows.Scan(&stage, &n); err != nil {
			return nil, storeErr("scan stage count", err)
		}
		counts[core.Stage(stage)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate stage counts", err)
	}
	return counts, nil
}

// DistinctStageCount returns how many distinct stages currently appear in
// the label table. The clustering classifier derives k from it.
func (s *Store) DistinctStageCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT stage) FROM maturity_labels`).Scan(&n)
	if err != nil {
		return 0, storeErr("count distinct stages", err)
	}
	return n, nil
}

// ReplaceLabels persists the full label set of one classification run in a
// single transaction: readers either see the previous complete set or the
// new one, never an empty or half-rebuilt table. Serialized so concurrent
// runs cannot interleave writes.
func (s *Store) ReplaceLabels(ctx context.Context, labels map[string]core.Stage, now time.Time) error {
	s.labelMu.Lock()
	defer s.labelMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("begin label transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM maturity_labels`); err != nil {
		return storeErr("clear labels", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO maturity_labels (account_id, stage, updated_at) VALUES (?, ?, ?)`)
	if err != nil {
		return storeErr("prepare label insert", err)
	}
	defer stmt.Close()

	updatedAt := fmtTime(now)
	for accountID, stage := range labels {
		if !stage.Valid() {
			return fmt.Errorf("label %q for account %q: unknown stage", stage, accountID)
		}
		if _, err := stmt.ExecContext(ctx, accountID, string(stage), updatedAt); err != nil {
			return storeErr("insert label", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storeErr("commit labels", err)
	}

	slog.InfoContext(ctx, "Maturity labels replaced", "count", len(labels))
	return nil
}
