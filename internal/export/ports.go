// Package export publishes classification run reports to outbound sinks.
package export

import (
	"context"
	"time"

	"santander/internal/core"
)

// Report summarizes one completed classification run.
type Report struct {
	RunID       string
	GeneratedAt time.Time
	// Accounts is the number of accounts labeled by the run.
	Accounts int
	// StageCounts is the label distribution after the run.
	StageCounts map[core.Stage]int
	// Strategy names the classifier that produced the labels.
	Strategy string
}

// Ports for outbound adapters.
type (
	// ReportWriter persists a run report. rowRef identifies the written
	// record in the sink's own terms.
	ReportWriter interface {
		Append(ctx context.Context, r Report) (rowRef string, err error)
	}
)
