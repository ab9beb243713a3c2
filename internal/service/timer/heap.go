package timer

import (
	"container/heap"
	"time"
)

// entry is one armed deferred callback.
type entry struct {
	key      string
	fireAt   time.Time
	seq      uint64
	callback Callback
	// index is maintained by the heap for heap.Remove.
	index int
}

// entryHeap is a min-heap of entries by fireAt, ties broken by arm order.
type entryHeap []*entry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	if c := h[i].fireAt.Compare(h[j].fireAt); c != 0 {
		return c < 0
	}

	return h[i].seq < h[j].seq
}

func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *entryHeap) Push(x any) {
	e := x.(*entry) //nolint:forcetypeassert // Only *entry is ever pushed.
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]

	return e
}

func (h *entryHeap) push(e *entry) {
	heap.Push(h, e)
}

func (h *entryHeap) pop() *entry {
	return heap.Pop(h).(*entry) //nolint:forcetypeassert // Only *entry is ever pushed.
}

func (h *entryHeap) remove(e *entry) {
	if e.index >= 0 && e.index < len(*h) && (*h)[e.index] == e {
		heap.Remove(h, e.index)
	}
}

// peek returns the earliest entry without removing it.
func (h entryHeap) peek() *entry {
	if len(h) == 0 {
		return nil
	}

	return h[0]
}
