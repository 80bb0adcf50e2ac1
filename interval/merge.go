package interval

import (
	"fmt"
	"sort"
)

// MergeWithin merges entries whose gap on the same chromosome is at most
// dist bases (dist=0 merges only touching/overlapping intervals).  Input
// must be in genome order; output is in genome order with start < end
// preserved.  onMerge, if non-nil, is called with the index range
// [first, last] of the input entries folded into each output interval, in
// output order; this lets callers aggregate per-record payloads without the
// merge loop knowing about them.
func MergeWithin(order *ContigOrder, entries []Entry, dist PosType, onMerge func(first, last int)) ([]Entry, error) {
	if !order.IsSorted(entries) {
		return nil, fmt.Errorf("interval.MergeWithin: unsorted input")
	}
	var merged []Entry
	first := 0
	for i, e := range entries {
		if err := e.Validate(); err != nil {
			return nil, err
		}
		if i == 0 {
			merged = append(merged, e)
			continue
		}
		cur := &merged[len(merged)-1]
		if e.Chrom == cur.Chrom && e.Start <= cur.End+dist {
			if e.End > cur.End {
				cur.End = e.End
			}
			continue
		}
		if onMerge != nil {
			onMerge(first, i-1)
		}
		first = i
		merged = append(merged, e)
	}
	if len(entries) != 0 && onMerge != nil {
		onMerge(first, len(entries)-1)
	}
	return merged, nil
}

// Slop symmetrically expands each entry by pad bases on each side, clipping
// to [0, chromosome length).  Every chromosome mentioned by entries must be
// present in lengths.
func Slop(entries []Entry, pad PosType, lengths map[string]PosType) ([]Entry, error) {
	sloped := make([]Entry, 0, len(entries))
	for _, e := range entries {
		chromLen, ok := lengths[e.Chrom]
		if !ok {
			return nil, fmt.Errorf("interval.Slop: contig %s not in genome length table", e.Chrom)
		}
		start := e.Start - pad
		if start < 0 {
			start = 0
		}
		end := e.End + pad
		if end > chromLen {
			end = chromLen
		}
		sloped = append(sloped, Entry{Chrom: e.Chrom, Start: start, End: end})
	}
	return sloped, nil
}

// Tile produces fixed-size windows covering each chromosome, advancing by
// slide bases so that consecutive windows overlap when slide < size.  The
// final window of each chromosome is truncated at the chromosome end.
// Output is in the genome order defined by order.
func Tile(order *ContigOrder, lengths map[string]PosType, size, slide PosType) []Entry {
	names := make([]string, 0, len(lengths))
	for name := range lengths {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return order.LessChrom(names[i], names[j]) })

	var windows []Entry
	for _, name := range names {
		chromLen := lengths[name]
		for start := PosType(0); start < chromLen; start += slide {
			end := start + size
			if end > chromLen {
				end = chromLen
			}
			windows = append(windows, Entry{Chrom: name, Start: start, End: end})
			if end == chromLen {
				break
			}
		}
	}
	return windows
}
