package analytics

import (
	"context"
	"fmt"
	"sort"

	"santander/internal/storage"
)

// IndustryRanking returns the top industry codes by concentrated revenue.
// Per code, only the top-ranked accounts by latest annual revenue count
// toward the score; the winners are then presented ordered by how many
// accounts they hold, largest first. Results are served from a short-lived
// cache since the ranking scans every latest snapshot.
func (s *Service) IndustryRanking(ctx context.Context) ([]IndustryShare, error) {
	if shares, ok := s.ranking.Get(rankingCacheKey); ok {
		return shares, nil
	}

	rows, err := s.store.TopIndustriesByRevenue(ctx, rankingTopN, rankingLimit)
	if err != nil {
		return nil, fmt.Errorf("industry ranking: %w", err)
	}

	shares := make([]IndustryShare, 0, len(rows))
	for _, row := range rows {
		shares = append(shares, IndustryShare{
			IndustryCode: row.IndustryCode,
			AccountCount: row.AccountCount,
		})
	}
	sort.SliceStable(shares, func(i, j int) bool {
		return shares[i].AccountCount > shares[j].AccountCount
	})

	s.ranking.Set(rankingCacheKey, shares)
	return shares, nil
}

// IndustryList returns one page of accounts in the given industry code,
// each resolved to its latest snapshot. An unknown code is an empty page,
// not an error.
func (s *Service) IndustryList(ctx context.Context, industryCode string, page int) (AccountPage, error) {
	q := storage.SnapshotQuery{IndustryCode: industryCode}

	total, err := s.store.CountLatestSnapshots(ctx, q)
	if err != nil {
		return AccountPage{}, fmt.Errorf("industry list: %w", err)
	}

	result := AccountPage{
		TotalPages: totalPages(total, IndustryPageSize),
		Items:      []AccountSummary{},
	}
	if total == 0 {
		return result, nil
	}

	q.Limit = IndustryPageSize
	q.Offset = pageOffset(page, IndustryPageSize)
	snaps, err := s.store.ListLatestSnapshots(ctx, q)
	if err != nil {
		return AccountPage{}, fmt.Errorf("industry list: %w", err)
	}
	for _, snap := range snaps {
		result.Items = append(result.Items, summarize(snap))
	}
	return result, nil
}
