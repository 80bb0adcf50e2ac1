package interval

import "container/heap"

// k-way merge of pre-sorted record streams.  The callback design keeps this
// package ignorant of per-record payloads: callers hand over stream lengths,
// a coordinate accessor, and an emit function, and receive their own records
// back in genome order.  Ties are broken by stream index, so the merge is
// stable and its output deterministic.

type mergeCursor struct {
	stream int
	idx    int
}

type mergeHeap struct {
	order   *ContigOrder
	at      func(stream, idx int) Entry
	cursors []mergeCursor
}

func (h *mergeHeap) Len() int { return len(h.cursors) }

func (h *mergeHeap) Less(i, j int) bool {
	ci, cj := h.cursors[i], h.cursors[j]
	ei, ej := h.at(ci.stream, ci.idx), h.at(cj.stream, cj.idx)
	if h.order.Less(ei, ej) {
		return true
	}
	if h.order.Less(ej, ei) {
		return false
	}
	return ci.stream < cj.stream
}

func (h *mergeHeap) Swap(i, j int) { h.cursors[i], h.cursors[j] = h.cursors[j], h.cursors[i] }

func (h *mergeHeap) Push(x interface{}) { h.cursors = append(h.cursors, x.(mergeCursor)) }

func (h *mergeHeap) Pop() interface{} {
	last := h.cursors[len(h.cursors)-1]
	h.cursors = h.cursors[:len(h.cursors)-1]
	return last
}

// KMerge merges k pre-sorted streams into one genome-ordered sequence,
// preserving every record.  size(i) returns the length of stream i, at(i, j)
// the coordinates of record j of stream i, and emit(i, j) is invoked once per
// record in merged order.  Runs in O(N log k); already-sorted inputs are
// never re-sorted.
func KMerge(order *ContigOrder, k int, size func(stream int) int, at func(stream, idx int) Entry, emit func(stream, idx int)) {
	h := &mergeHeap{order: order, at: at}
	for i := 0; i < k; i++ {
		if size(i) > 0 {
			h.cursors = append(h.cursors, mergeCursor{stream: i})
		}
	}
	heap.Init(h)
	for h.Len() > 0 {
		cur := h.cursors[0]
		emit(cur.stream, cur.idx)
		if cur.idx+1 < size(cur.stream) {
			h.cursors[0].idx++
			heap.Fix(h, 0)
		} else {
			heap.Pop(h)
		}
	}
}
