package candidates

import (
	"github.com/grailbio/svprep/interval"
	"github.com/grailbio/svprep/signal"
	"gonum.org/v1/gonum/stat"
)

// AnnotateCoverage sets each candidate's Coverage to its mean depth over the
// coverage stream, computed as a weighted-overlap join:
//
//	mean = sum(overlap_i * depth_i) / sum(overlap_i)
//
// where overlap_i is the portion of coverage bin i actually inside the
// candidate (never the full bin length).  A candidate overlapping zero bins
// gets coverage 0, an explicit default rather than NaN.  Candidates are
// mutated in place; their identity (coordinates plus carried group columns)
// is never touched, so a grouped mean keyed by that identity is implicit in
// the per-record update.
func AnnotateCoverage(cands []Candidate, cov []signal.CoverageBin) error {
	bins, err := interval.NewTreeSet(coverageEntries(cov))
	if err != nil {
		return err
	}
	for i := range cands {
		cands[i].Coverage = meanCoverage(cands[i].Entry, bins, cov)
	}
	return nil
}

func coverageEntries(cov []signal.CoverageBin) []interval.Entry {
	entries := make([]interval.Entry, len(cov))
	for i, bin := range cov {
		entries[i] = bin.Entry
	}
	return entries
}

func meanCoverage(e interval.Entry, bins *interval.TreeSet, cov []signal.CoverageBin) float64 {
	var depths, weights []float64
	bins.Overlaps(e, func(idx int, overlap interval.Entry) {
		lo, hi := overlap.Start, overlap.End
		if e.Start > lo {
			lo = e.Start
		}
		if e.End < hi {
			hi = e.End
		}
		depths = append(depths, float64(cov[idx].Depth))
		weights = append(weights, float64(hi-lo))
	})
	if len(depths) == 0 {
		return 0
	}
	return stat.Mean(depths, weights)
}
