package signal

import (
	"fmt"

	"github.com/grailbio/svprep/interval"
)

// GapType classifies a gap event inferred from a read alignment.
type GapType string

// Gap event types.
const (
	Insertion GapType = "insertion"
	Deletion  GapType = "deletion"
)

// Side tags which end(s) of a read a hardstop was observed on.
type Side string

// Hardstop sides.
const (
	LeftSide  Side = "left"
	RightSide Side = "right"
	BothSides Side = "both"
)

// CoverageBin is one genomic bin with the number of aligned bases falling in
// it.  All batches share an identical bin partition, which is what makes
// cross-batch pointwise summation well defined.
type CoverageBin struct {
	interval.Entry
	Depth int64
}

// GapEvent is an insertion or deletion signal, condensed per read and then
// aggregated per batch.  Strand and Batch are the two trailing group-key
// columns carried through annotation joins for key stability.
type GapEvent struct {
	interval.Entry
	Length  int64
	Support int64
	Type    GapType
	Strand  byte
	Batch   string
}

// Breakpoint is a single-base hardstop position.  Invariant: End == Start+1.
// A both-sided hardstop event expands into two independent Breakpoints.
type Breakpoint struct {
	interval.Entry
	Side Side
}

// HardstopBin counts hardstop breakpoints falling in one genomic bin,
// split by side.
type HardstopBin struct {
	interval.Entry
	SupportLeft  int64
	SupportRight int64
}

// Support returns the total breakpoint count in the bin.
func (b HardstopBin) Support() int64 { return b.SupportLeft + b.SupportRight }

// SideTag derives the wire-format side column from which supports are
// nonzero.
func (b HardstopBin) SideTag() Side {
	switch {
	case b.SupportLeft > 0 && b.SupportRight > 0:
		return BothSides
	case b.SupportRight > 0:
		return RightSide
	default:
		return LeftSide
	}
}

// ParseGapType validates a wire-format event type column.
func ParseGapType(s string) (GapType, error) {
	switch GapType(s) {
	case Insertion:
		return Insertion, nil
	case Deletion:
		return Deletion, nil
	}
	return "", fmt.Errorf("signal.ParseGapType: unknown event type %q", s)
}

// ParseSide validates a wire-format side column.
func ParseSide(s string) (Side, error) {
	switch Side(s) {
	case LeftSide, RightSide, BothSides:
		return Side(s), nil
	}
	return "", fmt.Errorf("signal.ParseSide: unknown side tag %q", s)
}
