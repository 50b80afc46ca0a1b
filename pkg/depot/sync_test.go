package depot

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFilenameFilteringS6(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"id:000000_orig", "id:000001_nocov", "id:000002+cov"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	d := NewDepotSync(nil)
	src := SyncSourceDir{Dir: dir, QueueID: 0, RequireFilenameFilter: true}
	d.Sync(src)

	if got := d.NextID(dir); got != 3 {
		t.Fatalf("next_afl_id = %d, want 3", got)
	}

	var seedIDs []uint64
	for {
		e, ok := d.queue.Pop()
		if !ok {
			break
		}
		seedIDs = append(seedIDs, e.SeedID)
	}
	if len(seedIDs) != 2 {
		t.Fatalf("expected 2 enqueued entries, got %d: %v", len(seedIDs), seedIDs)
	}
	for _, id := range seedIDs {
		if id != 0 && id != 2 {
			t.Fatalf("unexpected seed id %d enqueued, expected only 0 and 2", id)
		}
	}
}

func TestSyncStopsAtGap(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"id:000000_1.00", "id:000001_2.00", "id:000003_3.00"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	d := NewDepotSync(nil)
	src := SyncSourceDir{Dir: dir, QueueID: 1, ParseRaritySuffix: true}
	d.Sync(src)

	if got := d.NextID(dir); got != 2 {
		t.Fatalf("next_id = %d, want 2 (stopped at gap before id 3)", got)
	}
}

func TestGraderRaritySuffixAndInf(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"id:000000_1.50", "id:000001_inf"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	d := NewDepotSync(nil)
	src := SyncSourceDir{Dir: dir, QueueID: 1, ParseRaritySuffix: true}
	d.Sync(src)

	seen := map[uint64]uint32{}
	for {
		e, ok := d.queue.Pop()
		if !ok {
			break
		}
		seen[e.SeedID] = e.RareScore
	}
	if seen[0] != 150 {
		t.Fatalf("expected rare_score 150 for id 0, got %d", seen[0])
	}
	if seen[1] != 0 {
		t.Fatalf("expected rare_score 0 for inf-suffixed id 1, got %d", seen[1])
	}
}

func TestCEOutputRarityOffset(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "id:000005"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	d := NewDepotSync(nil)
	// ids 0..4 count as already ingested, so the scan starts at id 5.
	d.nextIDFor(dir).Store(5)
	src := SyncSourceDir{Dir: dir, QueueID: 1, CEOutputRarity: true}
	d.Sync(src)

	e, ok := d.queue.Pop()
	if !ok {
		t.Fatal("expected one entry")
	}
	if e.RareScore != CEOutputRareBase-5 {
		t.Fatalf("rare_score = %d, want %d", e.RareScore, CEOutputRareBase-5)
	}
}

func TestFifoThrottleStopsOnceQueueNonEmpty(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"id:000000", "id:000001"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	d := NewDepotSync(nil)
	src := SyncSourceDir{Dir: dir, QueueID: 1, CEOutputRarity: true, FifoThrottle: true}
	d.Sync(src)

	if got := d.NextID(dir); got != 1 {
		t.Fatalf("next_id = %d, want 1 (checkpoint advances past the one enqueued seed, then stops before the second)", got)
	}
	if d.queue.Len() != 1 {
		t.Fatalf("expected exactly one entry enqueued before the throttle broke the scan, got %d", d.queue.Len())
	}

	// A second sync call with the queue still non-empty must not
	// enqueue id:000001 either.
	d.Sync(src)
	if d.queue.Len() != 1 {
		t.Fatalf("expected throttle to still hold with a non-empty queue, got %d entries", d.queue.Len())
	}
}

func TestGetNextInputRareDiscardsMissingFiles(t *testing.T) {
	dir := t.TempDir()
	keep := filepath.Join(dir, "id:000000")
	if err := os.WriteFile(keep, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}

	d := NewDepotSync(nil)
	d.mu.Lock()
	d.queue.Push(Entry{QueueID: 0, RareScore: 0, SeedID: 1, Path: filepath.Join(dir, "missing")})
	d.queue.Push(Entry{QueueID: 0, RareScore: 0, SeedID: 0, Path: keep})
	d.mu.Unlock()
	d.numInputs.Add(2)

	buf, path, _, seedID, isLast, ok := d.GetNextInputRare()
	if !ok {
		t.Fatal("expected to find the surviving entry")
	}
	if string(buf) != "hello" || path != keep || seedID != 0 {
		t.Fatalf("unexpected result: buf=%q path=%q seedID=%d", buf, path, seedID)
	}
	if !isLast {
		t.Fatal("expected queue to be empty after popping the only surviving entry")
	}
}
