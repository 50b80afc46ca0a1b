package depot

import "container/heap"

// Entry is the 4-tuple priority-queue entry of spec.md §3: queue_id
// (smaller = higher priority), rare_score (larger = higher priority),
// seed_id (larger = higher priority within equal queue/rarity, giving
// LIFO behavior), and the seed's file path.
type Entry struct {
	QueueID  uint32
	RareScore uint32
	SeedID   uint64
	Path     string
}

// less implements the total order of spec.md §3: compare by
// (−queue_id, rare_score, seed_id) lexicographically.
func (e Entry) less(o Entry) bool {
	if e.QueueID != o.QueueID {
		return e.QueueID > o.QueueID // smaller queue_id => higher priority => "less" in max-heap terms means greater
	}
	if e.RareScore != o.RareScore {
		return e.RareScore < o.RareScore
	}
	return e.SeedID < o.SeedID
}

// entryHeap is a max-heap (by Entry.less, where "more priority" pops
// first) built on container/heap, the standard library's own
// ordered-pop primitive — no third-party priority-queue package in
// the example pack fits the (-queue_id, rare_score, seed_id) shape
// (see DESIGN.md).
type entryHeap []Entry

func (h entryHeap) Len() int { return len(h) }
func (h entryHeap) Less(i, j int) bool {
	// container/heap is a min-heap; invert `less` so the
	// highest-priority entry sorts first.
	return h[j].less(h[i])
}
func (h entryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *entryHeap) Push(x interface{}) {
	*h = append(*h, x.(Entry))
}

func (h *entryHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// PriorityQueue linearizes the total order of spec.md §3 and §8
// invariant 5.
type PriorityQueue struct {
	h entryHeap
}

// NewPriorityQueue constructs an empty queue.
func NewPriorityQueue() *PriorityQueue {
	pq := &PriorityQueue{}
	heap.Init(&pq.h)
	return pq
}

// Push enqueues an entry.
func (q *PriorityQueue) Push(e Entry) {
	heap.Push(&q.h, e)
}

// Pop removes and returns the highest-priority entry. The second
// return value is false if the queue was empty.
func (q *PriorityQueue) Pop() (Entry, bool) {
	if q.h.Len() == 0 {
		return Entry{}, false
	}
	return heap.Pop(&q.h).(Entry), true
}

// Len reports the number of queued entries.
func (q *PriorityQueue) Len() int {
	return q.h.Len()
}
