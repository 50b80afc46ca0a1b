package reporting

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ReportFormat is the on-disk format Formatter writes.
type ReportFormat string

const (
	ReportFormatText ReportFormat = "text"
	ReportFormatJSON ReportFormat = "json"
)

// Formatter renders RunSummary values to disk as standalone report
// files, distinct from Storage's own JSON persistence: a formatted
// report is meant for a human to read, not to be reloaded.
//
// Adapted from jhkimqd-chaos-utils/pkg/reporting/formatter.go: the
// HTML and success-criteria/fault-comparison sections had no CE-driver
// analogue and are dropped; the text-report and multi-run comparison
// shapes are kept, rebuilt around RunSummary's coverage/run-count
// fields instead of TestReport's scenario fields.
type Formatter struct {
	logger *Logger
}

// NewFormatter creates a new report formatter.
func NewFormatter(logger *Logger) *Formatter {
	return &Formatter{logger: logger}
}

// GenerateReport writes summary to outputPath in the given format.
func (f *Formatter) GenerateReport(summary *RunSummary, format ReportFormat, outputPath string) error {
	switch format {
	case ReportFormatJSON:
		return f.generateJSONReport(summary, outputPath)
	default:
		return f.generateTextReport(summary, outputPath)
	}
}

func (f *Formatter) generateJSONReport(summary *RunSummary, outputPath string) error {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run summary: %w", err)
	}
	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	if f.logger != nil {
		f.logger.Info("run report generated", "path", outputPath, "format", "json")
	}
	return nil
}

func (f *Formatter) generateTextReport(summary *RunSummary, outputPath string) error {
	var buf bytes.Buffer

	buf.WriteString(strings.Repeat("=", 60) + "\n")
	buf.WriteString("  CE DRIVER RUN REPORT\n")
	buf.WriteString(strings.Repeat("=", 60) + "\n\n")

	buf.WriteString(fmt.Sprintf("Run ID:    %s\n", summary.RunID))
	buf.WriteString(fmt.Sprintf("Status:    %s\n", summary.Status))
	buf.WriteString(fmt.Sprintf("Start:     %s\n", summary.StartTime.Format("2006-01-02 15:04:05")))
	buf.WriteString(fmt.Sprintf("End:       %s\n", summary.EndTime.Format("2006-01-02 15:04:05")))
	buf.WriteString(fmt.Sprintf("Duration:  %s\n\n", summary.Duration))

	buf.WriteString("COVERAGE\n")
	buf.WriteString(strings.Repeat("-", 60) + "\n")
	buf.WriteString(fmt.Sprintf("Density:      %d distinct edges\n", summary.CoverageDensity))
	buf.WriteString(fmt.Sprintf("Queue depth:  %d pending\n\n", summary.QueueDepth))

	buf.WriteString("RUN COUNTS\n")
	buf.WriteString(strings.Repeat("-", 60) + "\n")
	statuses := make([]string, 0, len(summary.RunCounts))
	for status := range summary.RunCounts {
		statuses = append(statuses, status)
	}
	sort.Strings(statuses)
	for _, status := range statuses {
		buf.WriteString(fmt.Sprintf("%-10s %d\n", status, summary.RunCounts[status]))
	}
	buf.WriteString("\n")

	if len(summary.Errors) > 0 {
		buf.WriteString("ERRORS\n")
		buf.WriteString(strings.Repeat("-", 60) + "\n")
		for _, e := range summary.Errors {
			buf.WriteString(fmt.Sprintf("- %s\n", e))
		}
		buf.WriteString("\n")
	}

	if err := os.WriteFile(outputPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	if f.logger != nil {
		f.logger.Info("run report generated", "path", outputPath, "format", "text")
	}
	return nil
}

// CompareSummaries writes a side-by-side comparison of multiple runs'
// coverage growth to outputPath, ordered by start time — useful for
// judging whether a change to the target or the solver's flip
// strategy actually improved edge discovery across runs.
func (f *Formatter) CompareSummaries(summaries []*RunSummary, outputPath string) error {
	if len(summaries) < 2 {
		return fmt.Errorf("need at least 2 run summaries to compare")
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].StartTime.Before(summaries[j].StartTime)
	})

	var buf bytes.Buffer
	buf.WriteString(strings.Repeat("=", 70) + "\n")
	buf.WriteString("  RUN COMPARISON\n")
	buf.WriteString(strings.Repeat("=", 70) + "\n\n")
	buf.WriteString(fmt.Sprintf("%-20s %-10s %-12s %-10s\n", "Run ID", "Status", "Density", "Duration"))
	buf.WriteString(strings.Repeat("-", 70) + "\n")

	for _, s := range summaries {
		buf.WriteString(fmt.Sprintf("%-20s %-10s %-12d %-10s\n",
			s.RunID[:min(20, len(s.RunID))], s.Status, s.CoverageDensity, s.Duration))
	}
	buf.WriteString("\n")

	first, last := summaries[0], summaries[len(summaries)-1]
	delta := int64(last.CoverageDensity) - int64(first.CoverageDensity)
	buf.WriteString(fmt.Sprintf("Density delta (first to last run): %+d edges\n", delta))

	if err := os.WriteFile(outputPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write comparison report: %w", err)
	}
	if f.logger != nil {
		f.logger.Info("comparison report generated", "path", outputPath)
	}
	return nil
}

// GetReportPath generates a report file path for a run summary.
func GetReportPath(summary *RunSummary, format ReportFormat, outputDir string) string {
	timestamp := summary.StartTime.Format("20060102-150405")
	ext := "txt"
	if format == ReportFormatJSON {
		ext = "json"
	}
	filename := fmt.Sprintf("report-%s-%s.%s", timestamp, summary.RunID, ext)
	return filepath.Join(outputDir, filename)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
