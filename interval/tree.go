package interval

import (
	"sort"

	bstore "github.com/biogo/store/interval"
)

// treeItem adapts an Entry to biogo's interval-tree interface.  The ID is the
// index of the entry in the source slice, which both keeps IDs unique and
// lets query callbacks recover per-entry payloads held by the caller.
type treeItem struct {
	start, end PosType
	id         uintptr
}

func (it treeItem) Overlap(b bstore.IntRange) bool {
	// Half-open interval indexing.
	return int(it.end) > b.Start && int(it.start) < b.End
}

func (it treeItem) ID() uintptr { return it.id }

func (it treeItem) Range() bstore.IntRange {
	return bstore.IntRange{Start: int(it.start), End: int(it.end)}
}

// TreeSet indexes a fixed set of entries for overlap queries, one interval
// tree per chromosome.
type TreeSet struct {
	entries []Entry
	trees   map[string]*bstore.IntTree
}

// NewTreeSet builds a TreeSet over entries.  The slice is retained; callers
// must not mutate it afterwards.
func NewTreeSet(entries []Entry) (*TreeSet, error) {
	t := &TreeSet{
		entries: entries,
		trees:   make(map[string]*bstore.IntTree),
	}
	for i, e := range entries {
		if err := e.Validate(); err != nil {
			return nil, err
		}
		tree := t.trees[e.Chrom]
		if tree == nil {
			tree = &bstore.IntTree{}
			t.trees[e.Chrom] = tree
		}
		if err := tree.Insert(treeItem{start: e.Start, end: e.End, id: uintptr(i)}, true); err != nil {
			return nil, err
		}
	}
	for _, tree := range t.trees {
		tree.AdjustRanges()
	}
	return t, nil
}

// AnyOverlap checks whether e shares at least one base with any indexed
// entry.
func (t *TreeSet) AnyOverlap(e Entry) bool {
	tree := t.trees[e.Chrom]
	if tree == nil {
		return false
	}
	return len(tree.Get(treeItem{start: e.Start, end: e.End})) != 0
}

// Overlaps invokes fn once per indexed entry overlapping e, in the order the
// entries were given to NewTreeSet.  idx is the entry's index in that input
// slice.  The deterministic callback order matters to callers accumulating
// floating-point sums.
func (t *TreeSet) Overlaps(e Entry, fn func(idx int, overlap Entry)) {
	tree := t.trees[e.Chrom]
	if tree == nil {
		return
	}
	matches := tree.Get(treeItem{start: e.Start, end: e.End})
	ids := make([]int, len(matches))
	for i, m := range matches {
		ids[i] = int(m.ID())
	}
	sort.Ints(ids)
	for _, id := range ids {
		fn(id, t.entries[id])
	}
}

// Subtract returns the entries of a that do not intersect any entry indexed
// by exclude.  Relative order is preserved.
func Subtract(a []Entry, exclude *TreeSet) []Entry {
	kept := make([]Entry, 0, len(a))
	for _, e := range a {
		if !exclude.AnyOverlap(e) {
			kept = append(kept, e)
		}
	}
	return kept
}
