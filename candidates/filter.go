package candidates

import (
	"sort"

	"github.com/grailbio/svprep/interval"
	"gonum.org/v1/gonum/stat"
)

// FilterOpts are the per-event-type threshold predicates.  All bounds are
// inclusive.
type FilterOpts struct {
	MinLength   float64
	MinSupport  float64
	MaxSupport  float64
	MinCoverage float64
	MaxCoverage float64
	// MergeDistance is the post-filter merge distance for surviving records
	// of the same event type.
	MergeDistance interval.PosType
}

// DefaultFilterOpts holds the documented filtering defaults.
var DefaultFilterOpts = FilterOpts{
	MinLength:     50,
	MinSupport:    2,
	MaxSupport:    1000,
	MinCoverage:   2,
	MaxCoverage:   100,
	MergeDistance: 1,
}

// sortCandidates orders cands in genome order, stably.
func sortCandidates(order *interval.ContigOrder, cands []Candidate) {
	sort.SliceStable(cands, func(i, j int) bool { return order.Less(cands[i].Entry, cands[j].Entry) })
}

// mergeCandidates merges candidates within dist bases, aggregating the
// distinct union of event types and the arithmetic mean of length, support,
// and coverage.  Input must be in genome order.
func mergeCandidates(order *interval.ContigOrder, cands []Candidate, dist interval.PosType) ([]Candidate, error) {
	var merged []Candidate
	entries, err := interval.MergeWithin(order, Entries(cands), dist, func(first, last int) {
		group := cands[first : last+1]
		lengths := make([]float64, len(group))
		supports := make([]float64, len(group))
		coverages := make([]float64, len(group))
		for i, c := range group {
			lengths[i] = c.Length
			supports[i] = c.Support
			coverages[i] = c.Coverage
		}
		merged = append(merged, Candidate{
			EventTypes: distinctTypes(group),
			Length:     stat.Mean(lengths, nil),
			Support:    stat.Mean(supports, nil),
			Coverage:   stat.Mean(coverages, nil),
		})
	})
	if err != nil {
		return nil, err
	}
	for i := range merged {
		merged[i].Entry = entries[i]
	}
	return merged, nil
}

// FilterEvents retains an annotated event iff its length, support, and
// coverage all fall within the configured windows, then merges survivors of
// the same event type within opts.MergeDistance.  An empty survivor set is a
// success that yields an empty result; downstream stages tolerate empty
// inputs.  The input must contain a single event type.
func FilterEvents(order *interval.ContigOrder, events []Candidate, opts FilterOpts) ([]Candidate, error) {
	var kept []Candidate
	for _, ev := range events {
		if ev.Length < opts.MinLength {
			continue
		}
		if ev.Support < opts.MinSupport || ev.Support > opts.MaxSupport {
			continue
		}
		if ev.Coverage < opts.MinCoverage || ev.Coverage > opts.MaxCoverage {
			continue
		}
		kept = append(kept, ev)
	}
	if len(kept) == 0 {
		return nil, nil
	}
	sortCandidates(order, kept)
	return mergeCandidates(order, kept, opts.MergeDistance)
}
