package classifier

import (
	"context"

	"santander/internal/core"
	"santander/internal/features"
)

const (
	// inicianteMaxAgeYears is the age below which an account is always a
	// starter, regardless of its other features.
	inicianteMaxAgeYears = 2.0
	// trendThreshold is the absolute balance slope (currency per day) that
	// separates a flat balance from a moving one.
	trendThreshold = 0.1
	// declineRevenueShare sizes the decline cash-flow threshold relative
	// to one month of revenue.
	declineRevenueShare = 0.10
)

// RuleBased classifies with a fixed ordered rule set. It is pure and
// deterministic: the same vector always yields the same stage, and every
// vector matches exactly one rule.
type RuleBased struct{}

func (RuleBased) Classify(_ context.Context, vectors []features.Vector) (map[string]core.Stage, error) {
	labels := make(map[string]core.Stage, len(vectors))
	for _, v := range vectors {
		labels[v.AccountID] = StageFor(v)
	}
	return labels, nil
}

// StageFor applies the rules in order and returns the first match.
//
// All comparisons are strict: an account aged exactly two years is not a
// starter, and a trend of exactly -0.1 is not a decline.
func StageFor(v features.Vector) core.Stage {
	if v.AgeYears < inicianteMaxAgeYears {
		return core.StageIniciante
	}

	// Negative cash flow only signals decline once it exceeds a share of
	// monthly revenue; accounts without revenue decline on any deficit.
	declineFloor := 0.0
	if monthlyRevenue := v.AnnualRevenue / 12; monthlyRevenue > 0 {
		declineFloor = -declineRevenueShare * monthlyRevenue
	}
	if v.BalanceTrend < -trendThreshold || v.NetCashFlow < declineFloor {
		return core.StageDeclinio
	}

	if v.BalanceTrend > trendThreshold && v.NetCashFlow > 0 {
		return core.StageExpansao
	}

	return core.StageMadura
}
