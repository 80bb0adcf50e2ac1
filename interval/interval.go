package interval

import (
	"fmt"
	"math"
	"sort"
)

// PosType is the type used to represent interval coordinates.  int32 should be
// wide enough for some time to come, since that's what BAM is limited to.
type PosType int32

// PosTypeMax is the maximum value that can be represented by a PosType.
const PosTypeMax = math.MaxInt32

// Entry represents a single half-open genomic interval [Start, End) on a
// named chromosome, with 0-based coordinates.
type Entry struct {
	Chrom string
	Start PosType
	End   PosType
}

// Validate returns an error unless 0 <= Start < End.
func (e Entry) Validate() error {
	if e.Start < 0 || e.Start >= e.End {
		return fmt.Errorf("interval: malformed record %s:%d-%d", e.Chrom, e.Start, e.End)
	}
	return nil
}

// Overlaps checks whether e and other share at least one base.
func (e Entry) Overlaps(other Entry) bool {
	return e.Chrom == other.Chrom && e.Start < other.End && other.Start < e.End
}

// ContigOrder ranks chromosome names.  Contigs present in the ranking (BAM
// header order) compare by rank; unranked contigs compare lexically, after
// all ranked ones.  A nil ContigOrder is valid and compares all names
// lexically.
type ContigOrder struct {
	rank map[string]int
}

// NewContigOrder builds a ContigOrder from names listed in genome order.
func NewContigOrder(names []string) *ContigOrder {
	rank := make(map[string]int, len(names))
	for i, name := range names {
		rank[name] = i
	}
	return &ContigOrder{rank: rank}
}

// LessChrom compares two chromosome names in genome order.
func (c *ContigOrder) LessChrom(a, b string) bool {
	if c == nil || c.rank == nil {
		return a < b
	}
	ra, oka := c.rank[a]
	rb, okb := c.rank[b]
	switch {
	case oka && okb:
		return ra < rb
	case oka:
		return true
	case okb:
		return false
	default:
		return a < b
	}
}

// Less compares two entries in genome order: chromosome, then start, then
// end, all ascending.
func (c *ContigOrder) Less(a, b Entry) bool {
	if a.Chrom != b.Chrom {
		return c.LessChrom(a.Chrom, b.Chrom)
	}
	if a.Start != b.Start {
		return a.Start < b.Start
	}
	return a.End < b.End
}

// Sort sorts entries in genome order.  The sort is stable so that records
// carrying distinct payloads at identical coordinates keep their relative
// order across reruns.
func (c *ContigOrder) Sort(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool { return c.Less(entries[i], entries[j]) })
}

// IsSorted reports whether entries are in genome order.
func (c *ContigOrder) IsSorted(entries []Entry) bool {
	return sort.SliceIsSorted(entries, func(i, j int) bool { return c.Less(entries[i], entries[j]) })
}
