package depot

import (
	"os"
	"path/filepath"
)

// LocalDir is the set of directories a CE driver instance writes its
// own output into (spec.md §6's filesystem layout under output root).
type LocalDir struct {
	Queue  string
	Hangs  string
	Crashes string
}

// NewLocalDir creates queue/hangs/crashes under outDir.
func NewLocalDir(outDir string) (LocalDir, error) {
	d := LocalDir{
		Queue:   filepath.Join(outDir, "queue"),
		Hangs:   filepath.Join(outDir, "hangs"),
		Crashes: filepath.Join(outDir, "crashes"),
	}
	for _, p := range []string{d.Queue, d.Hangs, d.Crashes} {
		if err := os.MkdirAll(p, 0755); err != nil {
			return LocalDir{}, err
		}
	}
	return d, nil
}

// SyncSourceDir identifies one sibling source directory to poll, plus
// the queue_id it is assigned.
type SyncSourceDir struct {
	Dir     string
	QueueID uint32
	// RequireFilenameFilter restricts intake to filenames containing
	// "orig" or "+cov" (spec.md §4.3/§6, mutation-fuzzer sources).
	RequireFilenameFilter bool
	// ParseRaritySuffix parses a "_FF.FF" rarity suffix, treating the
	// literal "inf" as score 0 (grader sources).
	ParseRaritySuffix bool
	// CEOutputRarity computes rare_score = CEOutputRareBase - seed_id
	// instead of parsing a suffix (CE's own sync'd output).
	CEOutputRarity bool
	// FifoThrottle restricts intake to at most one seed per Sync call,
	// and only once the queue has fully drained, matching
	// sync_fz_cefifo's own "!found || qlen() > 0" gate — fifo-mode
	// sources never get the tier-mode sync_new's unthrottled
	// contiguous scan.
	FifoThrottle bool
}

// CEOutputRareBase is the policy knob spec.md §9's open question
// names: the CE-output sync path's rarity offset, kept overridable
// rather than hardcoded.
const CEOutputRareBase = 999_999

// SyncDir is the sibling-directory layout spec.md §6 specifies:
// afl-slave/queue (queue_id 0), grader/queue (1, tier mode),
// grader-path/queue (2, tier mode), fifo/queue (1, fifo mode), plus
// the greenlight touchfile produced — but never consumed by this
// driver — as an external collaborator signal.
type SyncDir struct {
	AFLQueue       string
	GraderQueue    string
	GraderPathQueue string
	FifoQueue      string
	Greenlight     string
}

// NewSyncDir derives the sibling directories from the output root and
// creates the greenlight touchfile, matching the original
// implementation's own production of that file.
func NewSyncDir(outDir string) (SyncDir, error) {
	d := SyncDir{
		AFLQueue:        filepath.Join(outDir, "afl-slave", "queue"),
		GraderQueue:     filepath.Join(outDir, "grader", "queue"),
		GraderPathQueue: filepath.Join(outDir, "grader-path", "queue"),
		FifoQueue:       filepath.Join(outDir, "fifo", "queue"),
		Greenlight:      filepath.Join(outDir, "greenlight"),
	}
	f, err := os.Create(d.Greenlight)
	if err != nil {
		return SyncDir{}, err
	}
	_ = f.Close()
	return d, nil
}

// TierSources returns the 3-directory tier-mode source list (spec.md
// §4.3): mutation-fuzzer (0), coverage-grader (1), path-grader (2).
func (d SyncDir) TierSources() []SyncSourceDir {
	return []SyncSourceDir{
		{Dir: d.AFLQueue, QueueID: 0, RequireFilenameFilter: true},
		{Dir: d.GraderQueue, QueueID: 1, ParseRaritySuffix: true},
		{Dir: d.GraderPathQueue, QueueID: 2, ParseRaritySuffix: true},
	}
}

// FifoSources returns the 2-directory fifo-mode source list (spec.md
// §4.3): mutation-fuzzer (0) and CE output (1).
func (d SyncDir) FifoSources() []SyncSourceDir {
	return []SyncSourceDir{
		{Dir: d.AFLQueue, QueueID: 0, RequireFilenameFilter: true, FifoThrottle: true},
		{Dir: d.FifoQueue, QueueID: 1, CEOutputRarity: true, FifoThrottle: true},
	}
}
