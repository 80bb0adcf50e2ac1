package candidates

import (
	"github.com/grailbio/base/errors"
	"github.com/grailbio/svprep/interval"
	"github.com/grailbio/svprep/signal"
)

// InaccessibleOpts controls inaccessible-region identification.
type InaccessibleOpts struct {
	// MaxSupport is the highest summed depth at which a bin still counts as
	// inaccessible.
	MaxSupport int64
	// MergeDistance joins nearby low-support bins into regions.
	MergeDistance interval.PosType
	// ExclusionMergeDistance pre-merges each exclusion input before the
	// intersection test.
	ExclusionMergeDistance interval.PosType
}

// DefaultInaccessibleOpts holds the documented defaults.
var DefaultInaccessibleOpts = InaccessibleOpts{
	MaxSupport:             2,
	MergeDistance:          1000,
	ExclusionMergeDistance: 1,
}

// Inaccessible derives the low-support regions to exclude from
// hardstop-based inference: bins whose summed coverage is at most
// opts.MaxSupport, merged within opts.MergeDistance, minus any region
// intersecting one of the exclusion sets (each pre-merged within
// opts.ExclusionMergeDistance).  A region that is really a known gap or a
// detected variant is not inaccessible, just explained.
func Inaccessible(order *interval.ContigOrder, cov []signal.CoverageBin, opts InaccessibleOpts, exclusions ...[]interval.Entry) ([]interval.Entry, error) {
	var low []interval.Entry
	for _, bin := range cov {
		if bin.Depth <= opts.MaxSupport {
			low = append(low, bin.Entry)
		}
	}
	regions, err := interval.MergeWithin(order, low, opts.MergeDistance, nil)
	if err != nil {
		return nil, errors.E(err, "inaccessible: merge low-support bins")
	}

	var excludeAll []interval.Entry
	for _, excl := range exclusions {
		if len(excl) == 0 {
			continue
		}
		sorted := make([]interval.Entry, len(excl))
		copy(sorted, excl)
		order.Sort(sorted)
		merged, err := interval.MergeWithin(order, sorted, opts.ExclusionMergeDistance, nil)
		if err != nil {
			return nil, errors.E(err, "inaccessible: merge exclusion set")
		}
		excludeAll = append(excludeAll, merged...)
	}
	if len(excludeAll) == 0 {
		return regions, nil
	}
	exclude, err := interval.NewTreeSet(excludeAll)
	if err != nil {
		return nil, errors.E(err, "inaccessible: index exclusion set")
	}
	return interval.Subtract(regions, exclude), nil
}
