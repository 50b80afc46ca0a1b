package reporting

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Storage handles persistence of run summaries under an output
// directory, keeping only the most recent keepLastN.
//
// Adapted from jhkimqd-chaos-utils/pkg/reporting/storage.go: field
// renames only (TestReport -> RunSummary, ScenarioName dropped), the
// persistence/rotation logic is unchanged.
type Storage struct {
	outputDir string
	keepLastN int
	logger    *Logger
}

// NewStorage creates a new storage instance rooted at outputDir.
func NewStorage(outputDir string, keepLastN int, logger *Logger) (*Storage, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Storage{outputDir: outputDir, keepLastN: keepLastN, logger: logger}, nil
}

// SaveSummary saves a run summary to a JSON file.
func (s *Storage) SaveSummary(summary *RunSummary) (string, error) {
	timestamp := summary.StartTime.Format("20060102-150405")
	filename := fmt.Sprintf("run-%s-%s.json", timestamp, summary.RunID)
	path := filepath.Join(s.outputDir, filename)

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal run summary: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write run summary file: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("run summary saved", "path", path)
	}

	if s.keepLastN > 0 {
		if err := s.cleanupOldSummaries(); err != nil && s.logger != nil {
			s.logger.Warn("failed to cleanup old run summaries", "error", err)
		}
	}

	return path, nil
}

// LoadSummary loads a run summary from a JSON file.
func (s *Storage) LoadSummary(path string) (*RunSummary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read run summary file: %w", err)
	}
	var summary RunSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run summary: %w", err)
	}
	return &summary, nil
}

// ListSummaries lists all run summaries in the output directory,
// newest first.
func (s *Storage) ListSummaries() ([]SummaryIndex, error) {
	entries, err := os.ReadDir(s.outputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read output directory: %w", err)
	}

	indexes := make([]SummaryIndex, 0)
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		path := filepath.Join(s.outputDir, entry.Name())
		summary, err := s.LoadSummary(path)
		if err != nil {
			if s.logger != nil {
				s.logger.Warn("failed to load run summary", "path", path, "error", err)
			}
			continue
		}
		indexes = append(indexes, SummaryIndex{
			RunID:     summary.RunID,
			StartTime: summary.StartTime,
			Duration:  summary.Duration,
			Status:    summary.Status,
			Filepath:  path,
		})
	}

	sort.Slice(indexes, func(i, j int) bool {
		return indexes[i].StartTime.After(indexes[j].StartTime)
	})
	return indexes, nil
}

// cleanupOldSummaries removes old summary files, keeping only the
// last N.
func (s *Storage) cleanupOldSummaries() error {
	indexes, err := s.ListSummaries()
	if err != nil {
		return err
	}
	if len(indexes) <= s.keepLastN {
		return nil
	}
	for _, idx := range indexes[s.keepLastN:] {
		if err := os.Remove(idx.Filepath); err != nil {
			if s.logger != nil {
				s.logger.Warn("failed to delete old run summary", "path", idx.Filepath, "error", err)
			}
		} else if s.logger != nil {
			s.logger.Debug("deleted old run summary", "path", idx.Filepath)
		}
	}
	return nil
}

// GetOutputDir returns the output directory path.
func (s *Storage) GetOutputDir() string {
	return s.outputDir
}

// SummaryIndex is a lightweight index entry over a stored RunSummary.
type SummaryIndex struct {
	RunID     string    `json:"run_id"`
	StartTime time.Time `json:"start_time"`
	Duration  string    `json:"duration"`
	Status    RunStatus `json:"status"`
	Filepath  string    `json:"filepath"`
}
