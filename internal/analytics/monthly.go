package analytics

import (
	"context"
	"fmt"
)

// monthLabels are the abbreviated Portuguese month names used by the bar
// chart, indexed by month number.
var monthLabels = map[int]string{
	1: "Jan", 2: "Fev", 3: "Mar", 4: "Abr", 5: "Mai", 6: "Jun",
	7: "Jul", 8: "Ago", 9: "Set", 10: "Out", 11: "Nov", 12: "Dez",
}

// MonthlyFlow groups the account's transactions by calendar month and sums
// income and expense separately. Months fold across years: a January 2023
// and a January 2024 transaction land in the same bucket. Months without
// activity are omitted rather than zero-filled; order is month ascending.
func (s *Service) MonthlyFlow(ctx context.Context, accountID string) ([]MonthFlowPoint, error) {
	flows, err := s.store.MonthlyFlow(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("monthly flow: %w", err)
	}

	points := make([]MonthFlowPoint, 0, len(flows))
	for _, flow := range flows {
		points = append(points, MonthFlowPoint{
			Month:   flow.Month,
			Label:   monthLabels[flow.Month],
			Income:  flow.Income,
			Expense: flow.Expense,
		})
	}
	return points, nil
}
