package candidates

import (
	"github.com/grailbio/base/errors"
	"github.com/grailbio/svprep/interval"
	"github.com/grailbio/svprep/signal"
)

// ConsolidateOpts controls the final candidate-consolidation stage.
type ConsolidateOpts struct {
	// MergeDistance is the distance under which concatenated candidates are
	// folded into one region.
	MergeDistance interval.PosType
	// SlopPadding symmetrically expands each merged region, clipped to
	// chromosome boundaries.
	SlopPadding interval.PosType
	// Final region-level coverage window and length cap, applied after
	// re-annotation.
	MinCoverage        float64
	MaxCoverage        float64
	MaxCandidateLength interval.PosType
	// Exclude, when non-nil, drops merged regions intersecting it before
	// the final filter.  When nil the subtraction step is skipped entirely.
	Exclude *interval.TreeSet
}

// DefaultConsolidateOpts holds the documented consolidation defaults.
var DefaultConsolidateOpts = ConsolidateOpts{
	MergeDistance:      500,
	SlopPadding:        10000,
	MinCoverage:        2,
	MaxCoverage:        100,
	MaxCandidateLength: 60000,
}

// Consolidate concatenates filtered small-SV candidates (all event types),
// hardstop-derived candidate bins, and tiled assembly windows; sorts the
// union in genome order; merges regions within opts.MergeDistance; expands
// each merged region by opts.SlopPadding on each side (clipped to
// [0, chromosome length)); re-annotates mean coverage against cov; and
// applies the final region-level filter.  Any input slice may be empty; an
// event type contributing no records simply contributes nothing.
func Consolidate(genome *signal.Genome, filtered, hardstops, windows []Candidate, cov []signal.CoverageBin, opts ConsolidateOpts) ([]Candidate, error) {
	pooled := make([]Candidate, 0, len(filtered)+len(hardstops)+len(windows))
	pooled = append(pooled, filtered...)
	pooled = append(pooled, hardstops...)
	pooled = append(pooled, windows...)
	if len(pooled) == 0 {
		return nil, nil
	}
	order := genome.Order()
	sortCandidates(order, pooled)

	merged, err := mergeCandidates(order, pooled, opts.MergeDistance)
	if err != nil {
		return nil, errors.E(err, "consolidate: merge")
	}

	sloped, err := interval.Slop(Entries(merged), opts.SlopPadding, genome.Lengths())
	if err != nil {
		return nil, errors.E(err, "consolidate: slop")
	}
	for i := range merged {
		merged[i].Entry = sloped[i]
	}

	if opts.Exclude != nil {
		kept := merged[:0]
		for _, c := range merged {
			if !opts.Exclude.AnyOverlap(c.Entry) {
				kept = append(kept, c)
			}
		}
		merged = kept
	}

	if err := AnnotateCoverage(merged, cov); err != nil {
		return nil, errors.E(err, "consolidate: annotate")
	}
	var final []Candidate
	for _, c := range merged {
		if c.Coverage < opts.MinCoverage || c.Coverage > opts.MaxCoverage {
			continue
		}
		if c.End-c.Start > opts.MaxCandidateLength {
			continue
		}
		final = append(final, c)
	}
	return final, nil
}

// SelectWindows returns the tiled assembly windows that overlap at least one
// of the given regions.  Feeding every window of a genome-wide tiling into
// Consolidate would chain the whole genome together at any nonzero merge
// distance; restricting to signal-bearing windows keeps window-boundary
// coverage for every candidate without degenerate merges.
func SelectWindows(windows []interval.Entry, regions []Candidate) ([]interval.Entry, error) {
	if len(regions) == 0 {
		return nil, nil
	}
	set, err := interval.NewTreeSet(Entries(regions))
	if err != nil {
		return nil, err
	}
	var selected []interval.Entry
	for _, w := range windows {
		if set.AnyOverlap(w) {
			selected = append(selected, w)
		}
	}
	return selected, nil
}
