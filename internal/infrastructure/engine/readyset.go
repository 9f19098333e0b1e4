package engine

import "container/heap"

// indexHeap is a min-heap of positions; the sorter keys it by insertion
// order and the ready set by topological order.
type indexHeap []int

func (h indexHeap) Len() int           { return len(h) }
func (h indexHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h indexHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *indexHeap) Push(x any) { *h = append(*h, x.(int)) }

func (h *indexHeap) Pop() any {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}

// readySet holds dispatchable nodes. Pop always yields the ready node that
// comes first in the topological order, so a concurrency limit of one
// reproduces that order exactly.
type readySet struct {
	order []string
	heap  indexHeap
}

func newReadySet(order []string) *readySet {
	return &readySet{order: order}
}

func (r *readySet) push(position int) {
	heap.Push(&r.heap, position)
}

func (r *readySet) pop() (string, bool) {
	if r.heap.Len() == 0 {
		return "", false
	}
	return r.order[heap.Pop(&r.heap).(int)], true
}

func (r *readySet) len() int {
	return r.heap.Len()
}

// drain empties the set and returns the ids it held in topological order.
func (r *readySet) drain() []string {
	var out []string
	for {
		id, ok := r.pop()
		if !ok {
			return out
		}
		out = append(out, id)
	}
}
