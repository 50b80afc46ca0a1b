package depot

import "testing"

func TestPriorityOrderS3(t *testing.T) {
	q := NewPriorityQueue()
	q.Push(Entry{QueueID: 0, RareScore: 0, SeedID: 5})
	q.Push(Entry{QueueID: 1, RareScore: 100, SeedID: 0})
	q.Push(Entry{QueueID: 0, RareScore: 0, SeedID: 7})

	want := []uint64{7, 5, 0}
	for i, w := range want {
		e, ok := q.Pop()
		if !ok {
			t.Fatalf("pop %d: queue empty early", i)
		}
		if e.SeedID != w {
			t.Fatalf("pop %d: got seed_id=%d, want %d", i, e.SeedID, w)
		}
	}
	if _, ok := q.Pop(); ok {
		t.Fatal("expected queue to be empty")
	}
}

func TestPriorityOrderQueueIDDominates(t *testing.T) {
	q := NewPriorityQueue()
	q.Push(Entry{QueueID: 2, RareScore: 999999, SeedID: 999})
	q.Push(Entry{QueueID: 0, RareScore: 0, SeedID: 0})

	e, _ := q.Pop()
	if e.QueueID != 0 {
		t.Fatalf("expected queue_id 0 to win regardless of rarity, got %d", e.QueueID)
	}
}
