package reporting

import (
	"encoding/json"
	"fmt"
	"time"
)

// OutputFormat is the progress output format: plain text or JSON.
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

// ProgressReporter emits periodic round and final run progress for a
// fuzz loop (spec.md §4.3/§4.5's round/sync cadence).
//
// Adapted from jhkimqd-chaos-utils/pkg/reporting/progress.go: the
// chaos-scenario events (state transition, fault injection, cleanup,
// success-criterion evaluation) have no CE-driver analogue and are
// dropped; the round/run reporting shape and text/JSON dual-format
// dispatch are kept.
type ProgressReporter struct {
	format OutputFormat
	logger *Logger
}

// NewProgressReporter creates a new progress reporter.
func NewProgressReporter(format OutputFormat, logger *Logger) *ProgressReporter {
	return &ProgressReporter{format: format, logger: logger}
}

// RoundState is one sync-round's snapshot, reported after each pop
// loop yields back to a fresh depot sync.
type RoundState struct {
	QueueDepth      int64  `json:"queue_depth"`
	CoverageDensity uint64 `json:"coverage_density"`
	RunsThisRound   uint64 `json:"runs_this_round"`
}

// ReportRound reports one completed sync round.
func (pr *ProgressReporter) ReportRound(state RoundState) {
	switch pr.format {
	case FormatJSON:
		data, _ := json.Marshal(map[string]interface{}{
			"event":     "round_completed",
			"state":     state,
			"timestamp": time.Now(),
		})
		fmt.Println(string(data))
	default:
		fmt.Printf("[ROUND] queue_depth=%d density=%d runs=%d\n",
			state.QueueDepth, state.CoverageDensity, state.RunsThisRound)
	}
}

// ReportRunCompleted reports the final run summary.
func (pr *ProgressReporter) ReportRunCompleted(summary *RunSummary) {
	switch pr.format {
	case FormatJSON:
		data, _ := json.Marshal(map[string]interface{}{
			"event":     "run_completed",
			"summary":   summary,
			"timestamp": time.Now(),
		})
		fmt.Println(string(data))
	default:
		pr.printTextSummary(summary)
	}
}

func (pr *ProgressReporter) printTextSummary(summary *RunSummary) {
	fmt.Println("=== Run Summary ===")
	fmt.Printf("Run ID:    %s\n", summary.RunID)
	fmt.Printf("Status:    %s\n", summary.Status)
	fmt.Printf("Duration:  %s\n", summary.Duration)
	fmt.Printf("Density:   %d edges\n", summary.CoverageDensity)
	fmt.Printf("Queue:     %d pending\n", summary.QueueDepth)
	if len(summary.RunCounts) > 0 {
		fmt.Print("Runs:      ")
		for status, count := range summary.RunCounts {
			fmt.Printf("%s=%d ", status, count)
		}
		fmt.Println()
	}
	if len(summary.Errors) > 0 {
		fmt.Printf("Errors:    %d\n", len(summary.Errors))
	}
}
