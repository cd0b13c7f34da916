package analytics

import (
	"context"
	"fmt"

	"santander/internal/core"
	"santander/internal/storage"
)

// MaturityOverview returns how many labeled accounts sit in each stage.
// Stages with no accounts are reported as zero so the chart always shows
// every slice.
func (s *Service) MaturityOverview(ctx context.Context) (map[core.Stage]int, error) {
	counts, err := s.store.StageCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("maturity overview: %w", err)
	}
	for _, stage := range core.Stages() {
		if _, ok := counts[stage]; !ok {
			counts[stage] = 0
		}
	}
	return counts, nil
}

// MaturityList returns one page of labeled accounts, optionally narrowed to
// a single stage, each resolved to its latest snapshot. An empty stage
// means all labeled accounts.
func (s *Service) MaturityList(ctx context.Context, stage string, page int) (AccountPage, error) {
	q := storage.SnapshotQuery{}
	if stage != "" {
		parsed, err := core.ParseStage(stage)
		if err != nil {
			return AccountPage{}, fmt.Errorf("maturity list: %w", err)
		}
		q.Stage = parsed
	} else {
		q.Labeled = true
	}

	total, err := s.store.CountLatestSnapshots(ctx, q)
	if err != nil {
		return AccountPage{}, fmt.Errorf("maturity list: %w", err)
	}

	result := AccountPage{
		TotalPages: totalPages(total, DefaultPageSize),
		Items:      []AccountSummary{},
	}
	if total == 0 {
		return result, nil
	}

	q.Limit = DefaultPageSize
	q.Offset = pageOffset(page, DefaultPageSize)
	snaps, err := s.store.ListLatestSnapshots(ctx, q)
	if err != nil {
		return AccountPage{}, fmt.Errorf("maturity list: %w", err)
	}
	for _, snap := range snaps {
		result.Items = append(result.Items, summarize(snap))
	}
	return result, nil
}
