package reporting

import (
	"os"
	"testing"
	"time"
)

func TestSaveAndLoadSummary(t *testing.T) {
	dir := t.TempDir()
	logger := NewLogger(LoggerConfig{Level: LogLevelError, Format: LogFormatText, Output: os.Stdout})

	storage, err := NewStorage(dir, 0, logger)
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}

	summary := &RunSummary{
		RunID:           "test-run",
		StartTime:       time.Now(),
		EndTime:         time.Now(),
		Duration:        "1m",
		Status:          RunStatusCompleted,
		CoverageDensity: 42,
		RunCounts:       map[string]uint64{"normal": 10, "crash": 1},
		QueueDepth:      3,
	}

	path, err := storage.SaveSummary(summary)
	if err != nil {
		t.Fatalf("SaveSummary: %v", err)
	}

	loaded, err := storage.LoadSummary(path)
	if err != nil {
		t.Fatalf("LoadSummary: %v", err)
	}
	if loaded.RunID != summary.RunID || loaded.CoverageDensity != summary.CoverageDensity {
		t.Fatalf("loaded summary mismatch: %+v", loaded)
	}
}

func TestCleanupKeepsOnlyLastN(t *testing.T) {
	dir := t.TempDir()
	logger := NewLogger(LoggerConfig{Level: LogLevelError, Format: LogFormatText, Output: os.Stdout})
	storage, err := NewStorage(dir, 2, logger)
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}

	base := time.Now()
	for i := 0; i < 4; i++ {
		summary := &RunSummary{
			RunID:     string(rune('a' + i)),
			StartTime: base.Add(time.Duration(i) * time.Minute),
			Status:    RunStatusCompleted,
		}
		if _, err := storage.SaveSummary(summary); err != nil {
			t.Fatalf("SaveSummary: %v", err)
		}
	}

	indexes, err := storage.ListSummaries()
	if err != nil {
		t.Fatalf("ListSummaries: %v", err)
	}
	if len(indexes) != 2 {
		t.Fatalf("expected 2 summaries retained, got %d", len(indexes))
	}
}
