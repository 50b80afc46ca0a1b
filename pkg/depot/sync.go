package depot

import (
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/jihwankim/ce-driver/pkg/reporting"
)

// DepotSync is the synced depot of spec.md §4.3: multi-source seed
// intake from sibling directories written by cooperating fuzzer
// components, merged into one priority queue under the total order of
// §3.
type DepotSync struct {
	mu        sync.Mutex
	queue     *PriorityQueue
	numInputs atomic.Int64

	nextIDs   map[string]*atomic.Uint64
	nextIDsMu sync.Mutex

	logger *reporting.Logger
}

// NewDepotSync constructs an empty synced depot.
func NewDepotSync(logger *reporting.Logger) *DepotSync {
	return &DepotSync{
		queue:   NewPriorityQueue(),
		nextIDs: make(map[string]*atomic.Uint64),
		logger:  logger,
	}
}

func (d *DepotSync) nextIDFor(dir string) *atomic.Uint64 {
	d.nextIDsMu.Lock()
	defer d.nextIDsMu.Unlock()
	c, ok := d.nextIDs[dir]
	if !ok {
		c = &atomic.Uint64{}
		d.nextIDs[dir] = c
	}
	return c
}

// NextID reports the next-to-discover ID boundary for a source
// directory, matching spec.md invariant 2.
func (d *DepotSync) NextID(dir string) uint64 {
	return d.nextIDFor(dir).Load()
}

// Sync scans one source directory's contiguous id:NNNNNN* prefix
// starting at that source's next_id, enqueues qualifying files, and
// advances next_id past every file examined (qualifying or not),
// implementing spec.md §4.3's sync_new / sync_fz_cefifo algorithm.
//
// The mutation-fuzzer filename filter (orig/+cov) is applied uniformly
// for RequireFilenameFilter sources in both tier and fifo mode — see
// SPEC_FULL.md §4.3 Supplement and DESIGN.md for why this departs from
// the reference implementation's sync_new, which left the filter
// commented out for that one path.
//
// FifoThrottle sources additionally stop the scan the moment the
// queue is non-empty, even if the next file was found, matching
// sync_fz_cefifo's own "!found || qlen() > 0" break condition — fifo
// mode intakes at most one seed per call, and only once the depot has
// fully drained.
func (d *DepotSync) Sync(src SyncSourceDir) {
	counter := d.nextIDFor(src.Dir)

	for {
		id := counter.Load()
		matches, err := filepath.Glob(FileName(src.Dir, id) + "*")
		found := err == nil && len(matches) > 0

		if src.FifoThrottle {
			d.mu.Lock()
			qlen := d.queue.Len()
			d.mu.Unlock()
			if !found || qlen > 0 {
				return
			}
		} else if !found {
			return
		}

		path := matches[0]
		base := filepath.Base(path)

		qualifies := true
		if src.RequireFilenameFilter {
			qualifies = strings.Contains(base, "orig") || strings.Contains(base, "+cov")
		}

		if qualifies {
			rare := d.rarityFor(src, base, id)
			d.mu.Lock()
			d.queue.Push(Entry{QueueID: src.QueueID, RareScore: rare, SeedID: id, Path: path})
			d.mu.Unlock()
			d.numInputs.Add(1)
		} else if d.logger != nil {
			d.logger.Debug("skipping filtered seed", "path", path)
		}

		counter.Add(1)
	}
}

func (d *DepotSync) rarityFor(src SyncSourceDir, base string, id uint64) uint32 {
	switch {
	case src.CEOutputRarity:
		if id >= CEOutputRareBase {
			return 0
		}
		return uint32(CEOutputRareBase - id)
	case src.ParseRaritySuffix:
		if strings.Contains(base, "inf") {
			return 0
		}
		parts := strings.Split(base, "_")
		if len(parts) < 2 {
			return 0
		}
		v, err := strconv.ParseFloat(parts[len(parts)-1], 64)
		if err != nil {
			return 0
		}
		return uint32(v*100 + 0.5)
	default:
		return 0
	}
}

// GetNextInputRare repeatedly pops the maximum-priority entry,
// discarding any whose file has raced out of existence, and returns
// its bytes, path, queue_id, seed_id, and whether the queue became
// empty as a result (spec.md §4.3's get_next_input_rare / get_next_input).
func (d *DepotSync) GetNextInputRare() (buf []byte, path string, queueID uint32, seedID uint64, isLast bool, ok bool) {
	for {
		d.mu.Lock()
		e, has := d.queue.Pop()
		d.mu.Unlock()
		if !has {
			return nil, "", 0, 0, true, false
		}
		d.numInputs.Add(-1)

		if !Exists(e.Path) {
			continue
		}
		data, err := ReadFile(e.Path)
		if err != nil {
			continue
		}

		d.mu.Lock()
		last := d.queue.Len() == 0
		d.mu.Unlock()

		return data, e.Path, e.QueueID, e.SeedID, last, true
	}
}

// Len reports the atomic total-size counter (spec.md §3's Depot
// description), not the queue's own length — intentionally: a pop in
// flight decrements this counter before the popped file's existence
// is confirmed, matching the reference implementation's own qlen/isempty.
func (d *DepotSync) Len() int64 {
	return d.numInputs.Load()
}
