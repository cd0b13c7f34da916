package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/stat"

	"santander/internal/core"
	"santander/internal/features"
	"santander/internal/storage"
)

// maxKMeansIterations bounds Lloyd's algorithm; assignments converge far
// earlier on real data.
const maxKMeansIterations = 100

// ClusterBased groups accounts with k-means over standardized features and
// maps each cluster to a stage by its aggregate profile. With a fixed seed
// the run is reproducible on unchanged data, but labels may shift when the
// data changes; the rule strategy is the stable default.
type ClusterBased struct {
	store *storage.Store
	seed  int64
}

func NewClusterBased(store *storage.Store, seed int64) ClusterBased {
	return ClusterBased{store: store, seed: seed}
}

func (c ClusterBased) Classify(ctx context.Context, vectors []features.Vector) (map[string]core.Stage, error) {
	if len(vectors) == 0 {
		return map[string]core.Stage{}, nil
	}

	// k follows the stages present in the current label table so re-runs
	// track the observed population. A fresh store starts from all stages.
	k, err := c.store.DistinctStageCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("derive cluster count: %w", err)
	}
	if k < 1 {
		k = len(core.Stages())
	}
	if k > len(vectors) {
		k = len(vectors)
	}

	matrix := buildMatrix(vectors)
	assignments := lloyd(matrix, k, rand.New(rand.NewSource(c.seed)))
	stageByCluster := mapClusters(ctx, vectors, assignments, k)

	labels := make(map[string]core.Stage, len(vectors))
	for i, v := range vectors {
		labels[v.AccountID] = stageByCluster[assignments[i]]
	}
	return labels, nil
}

// buildMatrix turns the vectors into standardized rows: numeric features
// scaled to zero mean and unit variance, industry codes one-hot encoded.
func buildMatrix(vectors []features.Vector) [][]float64 {
	numeric := func(v features.Vector) []float64 {
		return []float64{
			v.AgeYears,
			v.BalanceTrend,
			v.NetCashFlow,
			v.AnnualRevenue,
			v.Balance,
			v.TotalPaid,
			v.TotalReceived,
			v.PaymentCount,
			v.ReceiptCount,
			v.DaysSinceLastActivity,
		}
	}
	numericWidth := len(numeric(vectors[0]))

	codes := make([]string, 0)
	codeIndex := make(map[string]int)
	for _, v := range vectors {
		if _, ok := codeIndex[v.IndustryCode]; !ok {
			codeIndex[v.IndustryCode] = len(codes)
			codes = append(codes, v.IndustryCode)
		}
	}

	rows := make([][]float64, len(vectors))
	for i, v := range vectors {
		row := make([]float64, numericWidth+len(codes))
		copy(row, numeric(v))
		row[numericWidth+codeIndex[v.IndustryCode]] = 1
		rows[i] = row
	}

	// Standardize column-wise. A constant column has no spread and stays
	// zero-centered.
	column := make([]float64, len(rows))
	for j := 0; j < numericWidth; j++ {
		for i := range rows {
			column[i] = rows[i][j]
		}
		mean, std := stat.MeanStdDev(column, nil)
		for i := range rows {
			if std > 0 {
				rows[i][j] = (rows[i][j] - mean) / std
			} else {
				rows[i][j] = 0
			}
		}
	}
	return rows
}

// lloyd runs the classic k-means iteration and returns the cluster index of
// every row. Centroids start from k distinct rows drawn with the given
// source, which makes runs reproducible for a fixed seed.
func lloyd(rows [][]float64, k int, rng *rand.Rand) []int {
	width := len(rows[0])
	centroids := make([][]float64, k)
	for i, rowIdx := range rng.Perm(len(rows))[:k] {
		centroids[i] = append([]float64(nil), rows[rowIdx]...)
	}

	assignments := make([]int, len(rows))
	for iter := 0; iter < maxKMeansIterations; iter++ {
		changed := false
		for i, row := range rows {
			best, bestDist := 0, math.Inf(1)
			for c, centroid := range centroids {
				if d := squaredDistance(row, centroid); d < bestDist {
					best, bestDist = c, d
				}
			}
			if assignments[i] != best {
				assignments[i] = best
				changed = true
			}
		}
		if !changed && iter > 0 {
			break
		}

		counts := make([]int, k)
		sums := make([][]float64, k)
		for c := range sums {
			sums[c] = make([]float64, width)
		}
		for i, row := range rows {
			c := assignments[i]
			counts[c]++
			for j, x := range row {
				sums[c][j] += x
			}
		}
		for c := range centroids {
			// Empty clusters keep their previous centroid.
			if counts[c] == 0 {
				continue
			}
			for j := range centroids[c] {
				centroids[c][j] = sums[c][j] / float64(counts[c])
			}
		}
	}
	return assignments
}

func squaredDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// mapClusters names each cluster by its aggregate profile: the cluster with
// the highest mean days since last activity is the decline group, the rest
// rank by ascending mean total received from starter to mature. Surplus
// clusters beyond the known stages fold into Madura.
func mapClusters(ctx context.Context, vectors []features.Vector, assignments []int, k int) map[int]core.Stage {
	type profile struct {
		cluster      int
		meanDormancy float64
		meanReceived float64
		members      int
	}
	profiles := make([]profile, k)
	for c := range profiles {
		profiles[c].cluster = c
	}
	for i, v := range vectors {
		p := &profiles[assignments[i]]
		p.meanDormancy += v.DaysSinceLastActivity
		p.meanReceived += v.TotalReceived
		p.members++
	}
	for c := range profiles {
		if profiles[c].members > 0 {
			profiles[c].meanDormancy /= float64(profiles[c].members)
			profiles[c].meanReceived /= float64(profiles[c].members)
		}
	}

	decline := 0
	for c := 1; c < k; c++ {
		if profiles[c].meanDormancy > profiles[decline].meanDormancy {
			decline = c
		}
	}

	rest := make([]profile, 0, k-1)
	for c := range profiles {
		if c != decline {
			rest = append(rest, profiles[c])
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i].meanReceived < rest[j].meanReceived })

	growth := []core.Stage{core.StageIniciante, core.StageExpansao, core.StageMadura}
	stageByCluster := map[int]core.Stage{decline: core.StageDeclinio}
	for i, p := range rest {
		if i < len(growth) {
			stageByCluster[p.cluster] = growth[i]
			continue
		}
		slog.WarnContext(ctx, "More clusters than stages, folding into Madura",
			"cluster", p.cluster, "members", p.members)
		stageByCluster[p.cluster] = core.StageMadura
	}
	return stageByCluster
}
