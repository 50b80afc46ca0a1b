package depot

import (
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/jihwankim/ce-driver/pkg/coverage"
	"github.com/jihwankim/ce-driver/pkg/reporting"
)

// Local is the CE driver's own output depot (spec.md §4.3's "Local
// depot"): writes novel inputs, hangs, and crashes under contiguous
// IDs, and serves them back out through a local priority queue for
// this driver's own subsequent rounds.
type Local struct {
	dir LocalDir

	mu    sync.Mutex
	queue *PriorityQueue

	numInputs  atomic.Uint64
	numHangs   atomic.Uint64
	numCrashes atomic.Uint64

	logger *reporting.Logger
}

// NewLocal constructs a local depot rooted at outDir. logger may be
// nil; when set, it receives a warning for any write that fails.
func NewLocal(outDir string, logger *reporting.Logger) (*Local, error) {
	dir, err := NewLocalDir(outDir)
	if err != nil {
		return nil, err
	}
	return &Local{dir: dir, queue: NewPriorityQueue(), logger: logger}, nil
}

// Save writes a new input to the appropriate directory based on
// execution status and returns the ID one past the saved seed's,
// matching spec.md §4.3's save routine. The read-id/write-file/bump-
// atomic ordering is intentionally not locked across callers — see
// spec.md §9's open question and DESIGN.md: this depot is documented
// as single-writer-safe only.
func (l *Local) Save(status coverage.Status, buf []byte) uint64 {
	switch status {
	case coverage.Crash:
		return l.saveInto(&l.numCrashes, l.dir.Crashes, buf, 0)
	case coverage.Timeout:
		return l.saveInto(&l.numHangs, l.dir.Hangs, buf, 0)
	default:
		return l.saveInputQueue(buf)
	}
}

// SaveWithRarity mirrors Save but additionally enqueues the input onto
// this depot's own local priority queue with a rarity-derived score,
// for Normal-status novel inputs only. The file itself is written under
// the plain id:NNNNNN name, the same as Save.
func (l *Local) SaveWithRarity(status coverage.Status, buf []byte, level coverage.Novelty, rare float32) uint64 {
	id := l.Save(status, buf)
	if status == coverage.Normal && level != coverage.NoveltyNone {
		l.mu.Lock()
		l.queue.Push(Entry{QueueID: 0, RareScore: uint32(rare * 100), SeedID: id})
		l.mu.Unlock()
	}
	return id
}

func (l *Local) saveInto(counter *atomic.Uint64, dir string, buf []byte, _ int) uint64 {
	id := counter.Load()
	path := FileName(dir, id)
	if err := WriteFile(path, buf); err != nil && l.logger != nil {
		l.logger.Warn("failed to save depot input", "path", path, "err", err)
	}
	counter.Add(1)
	return id + 1
}

func (l *Local) saveInputQueue(buf []byte) uint64 {
	return l.saveInto(&l.numInputs, l.dir.Queue, buf, 0)
}

// GetInputBuf reads back a previously saved input by ID.
func (l *Local) GetInputBuf(id uint64) ([]byte, error) {
	return ReadFile(FileName(l.dir.Queue, id))
}

// NextRandom returns a uniformly random already-saved input ID, used
// by the executor's random_input_buf helper (spec.md §4.4).
func (l *Local) NextRandom() uint64 {
	n := l.numInputs.Load()
	if n == 0 {
		return 0
	}
	return uint64(rand.Int63n(int64(n)))
}

// NumInputs reports how many novel inputs this depot has saved.
func (l *Local) NumInputs() uint64 {
	return l.numInputs.Load()
}
