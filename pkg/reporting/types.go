package reporting

import (
	"time"
)

// RunSummary is the CE driver's end-of-run report: the counters and
// coverage state a fuzz loop accumulates, persisted as JSON so an
// operator can inspect a completed or interrupted run after the fact.
//
// Adapted from jhkimqd-chaos-utils/pkg/reporting/types.go's TestReport
// (scenario/fault/target fields dropped — this driver runs one target
// against one track binary, not a multi-service chaos scenario).
type RunSummary struct {
	RunID     string    `json:"run_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Duration  string    `json:"duration"`

	Status RunStatus `json:"status"`

	// CoverageDensity is the count of distinct edges ever observed under
	// Normal status, per coverage.GlobalBranches.Density.
	CoverageDensity uint64 `json:"coverage_density"`

	// RunCounts tallies executor results by coverage.Status label
	// ("normal", "timeout", "crash", "skip", "error").
	RunCounts map[string]uint64 `json:"run_counts"`

	// QueueDepth is the synced depot's size at the time the summary was
	// taken (depot.DepotSync.Len).
	QueueDepth int64 `json:"queue_depth"`

	Errors []string `json:"errors,omitempty"`
}

// RunStatus represents the terminal state of a fuzz run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusStopped   RunStatus = "stopped"
	RunStatusFailed    RunStatus = "failed"
)
