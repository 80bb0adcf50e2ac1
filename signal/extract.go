package signal

import (
	"context"
	"io"
	"math"
	"sort"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/svprep/interval"
)

// ExtractOpts controls per-batch signal extraction.
type ExtractOpts struct {
	// Mapq is the minimum mapping quality for a clipped read end to count as
	// a hardstop.  Hard cutoff, not a soft score.
	Mapq int
	// MinClipping is the minimum soft/hard-clip length, in bases, for a read
	// end to count as a hardstop.
	MinClipping int
	// CondenseDistance is the maximum distance between same-type gap signals
	// before they are condensed into one gap event.  This avoids
	// over-fragmenting near-adjacent indels.
	CondenseDistance interval.PosType
	// BinSize is the fixed tiling size shared by coverage and hardstop
	// counting.  Every batch must use the same value or cross-batch
	// summation is ill-defined.
	BinSize interval.PosType
}

// DefaultExtractOpts holds the documented extraction defaults.
var DefaultExtractOpts = ExtractOpts{
	Mapq:             20,
	MinClipping:      500,
	CondenseDistance: 20,
	BinSize:          500,
}

// BatchSignal is the complete signal set extracted from one alignment batch.
// All slices are in genome order.
type BatchSignal struct {
	Insertions []GapEvent
	Deletions  []GapEvent
	Hardstops  []HardstopBin
	Coverage   []CoverageBin
}

// rawGap is a per-read gap signal before cross-read aggregation.
type rawGap struct {
	interval.Entry
	length int64
	strand byte
}

// readGaps appends rec's insertion and deletion signals to ins and del,
// condensing same-type signals closer than condense bases.  Both slices must
// hold signals from this read only; condensation never crosses reads.
func readGaps(rec *sam.Record, condense interval.PosType, ins, del []rawGap) ([]rawGap, []rawGap) {
	strand := byte('+')
	if rec.Flags&sam.Reverse != 0 {
		strand = '-'
	}
	chrom := rec.Ref.Name()
	refPos := interval.PosType(rec.Pos)
	appendGap := func(events []rawGap, e interval.Entry, gapLen int64) []rawGap {
		if n := len(events); n != 0 {
			last := &events[n-1]
			if e.Start <= last.End+condense {
				if e.End > last.End {
					last.End = e.End
				}
				last.length += gapLen
				return events
			}
		}
		return append(events, rawGap{Entry: e, length: gapLen, strand: strand})
	}
	for _, co := range rec.Cigar {
		cLen := interval.PosType(co.Len())
		switch co.Type() {
		case sam.CigarInsertion:
			// An insertion occupies no reference bases; anchor it to a
			// single-base interval at its reference position.
			ins = appendGap(ins, interval.Entry{Chrom: chrom, Start: refPos, End: refPos + 1}, int64(cLen))
		case sam.CigarDeletion, sam.CigarSkipped:
			del = appendGap(del, interval.Entry{Chrom: chrom, Start: refPos, End: refPos + cLen}, int64(cLen))
			refPos += cLen
		case sam.CigarMatch, sam.CigarEqual, sam.CigarMismatch:
			refPos += cLen
		}
	}
	return ins, del
}

// clipLengths sums the soft/hard-clipped bases at each end of rec's CIGAR.
func clipLengths(cigar sam.Cigar) (left, right int) {
	for _, co := range cigar {
		t := co.Type()
		if t != sam.CigarSoftClipped && t != sam.CigarHardClipped {
			break
		}
		left += co.Len()
	}
	for i := len(cigar) - 1; i >= 0; i-- {
		t := cigar[i].Type()
		if t != sam.CigarSoftClipped && t != sam.CigarHardClipped {
			break
		}
		right += cigar[i].Len()
	}
	if left+right > 0 && left == right && len(cigar) <= 2 {
		// Fully clipped read; treat as left-clipped only so a single
		// alignment never double-counts.
		right = 0
	}
	return
}

// readBreakpoints derives hardstop breakpoints from rec's clipped ends.  A
// read clipped on both ends yields two independent single-base breakpoints:
// the alignment start for a left clip, the alignment end minus one for a
// right clip.
func readBreakpoints(rec *sam.Record, opts ExtractOpts) []Breakpoint {
	if int(rec.MapQ) < opts.Mapq {
		return nil
	}
	left, right := clipLengths(rec.Cigar)
	chrom := rec.Ref.Name()
	var bps []Breakpoint
	if left >= opts.MinClipping {
		pos := interval.PosType(rec.Pos)
		bps = append(bps, Breakpoint{
			Entry: interval.Entry{Chrom: chrom, Start: pos, End: pos + 1},
			Side:  LeftSide,
		})
	}
	if right >= opts.MinClipping {
		end := interval.PosType(rec.End())
		bps = append(bps, Breakpoint{
			Entry: interval.Entry{Chrom: chrom, Start: end - 1, End: end},
			Side:  RightSide,
		})
	}
	return bps
}

// aggregateGaps sorts per-read gap signals and folds same-type signals
// within condense bases of each other into GapEvents: support is the number
// of contributing reads, length their arithmetic mean, strand '.' when the
// contributors disagree.
func aggregateGaps(order *interval.ContigOrder, raw []rawGap, gapType GapType, condense interval.PosType, batch string) []GapEvent {
	sort.SliceStable(raw, func(i, j int) bool { return order.Less(raw[i].Entry, raw[j].Entry) })
	var events []GapEvent
	var lenSum int64
	flush := func(ev *GapEvent) {
		ev.Length = int64(math.Round(float64(lenSum) / float64(ev.Support)))
		events = append(events, *ev)
	}
	var cur *GapEvent
	for i := range raw {
		g := &raw[i]
		if cur != nil && g.Chrom == cur.Chrom && g.Start <= cur.End+condense {
			if g.End > cur.End {
				cur.End = g.End
			}
			cur.Support++
			lenSum += g.length
			if g.strand != cur.Strand {
				cur.Strand = '.'
			}
			continue
		}
		if cur != nil {
			flush(cur)
		}
		cur = &GapEvent{
			Entry:   g.Entry,
			Support: 1,
			Type:    gapType,
			Strand:  g.strand,
			Batch:   batch,
		}
		lenSum = g.length
	}
	if cur != nil {
		flush(cur)
	}
	return events
}

// binCounter accumulates per-bin tallies for one batch.
type binCounter struct {
	genome  *Genome
	binSize interval.PosType
	counts  map[string][]int64
}

func newBinCounter(genome *Genome, binSize interval.PosType) *binCounter {
	return &binCounter{genome: genome, binSize: binSize, counts: make(map[string][]int64)}
}

func (c *binCounter) chromBins(chrom string) []int64 {
	bins := c.counts[chrom]
	if bins == nil {
		n := (c.genome.Lengths()[chrom] + c.binSize - 1) / c.binSize
		bins = make([]int64, n)
		c.counts[chrom] = bins
	}
	return bins
}

// add credits the overlap of [start, end) to every bin it intersects.
func (c *binCounter) add(chrom string, start, end interval.PosType) {
	if chromLen := c.genome.Lengths()[chrom]; end > chromLen {
		end = chromLen
	}
	if start >= end {
		return
	}
	bins := c.chromBins(chrom)
	for binIdx := start / c.binSize; binIdx*c.binSize < end; binIdx++ {
		binStart := binIdx * c.binSize
		binEnd := binStart + c.binSize
		lo, hi := start, end
		if binStart > lo {
			lo = binStart
		}
		if binEnd < hi {
			hi = binEnd
		}
		bins[binIdx] += int64(hi - lo)
	}
}

// bin returns the partition interval containing pos, clipped at the
// chromosome end.
func (c *binCounter) bin(chrom string, pos interval.PosType) interval.Entry {
	start := (pos / c.binSize) * c.binSize
	end := start + c.binSize
	if chromLen := c.genome.Lengths()[chrom]; end > chromLen {
		end = chromLen
	}
	return interval.Entry{Chrom: chrom, Start: start, End: end}
}

// Partition emits one CoverageBin per bin of the full genome partition, in
// genome order, with the accumulated counts.  Emitting empty bins too keeps
// the partition identical across batches, which downstream pointwise
// summation depends on.
func (c *binCounter) Partition() []CoverageBin {
	var out []CoverageBin
	for _, chrom := range c.genome.Names() {
		chromLen := c.genome.Lengths()[chrom]
		bins := c.counts[chrom]
		n := int((chromLen + c.binSize - 1) / c.binSize)
		for i := 0; i < n; i++ {
			e := c.bin(chrom, interval.PosType(i)*c.binSize)
			var depth int64
			if bins != nil {
				depth = bins[i]
			}
			out = append(out, CoverageBin{Entry: e, Depth: depth})
		}
	}
	return out
}

// hardstopBins converts binned per-side breakpoint tallies to sorted
// HardstopBins, keeping only nonzero bins (hardstops are sparse).
func hardstopBins(genome *Genome, binSize interval.PosType, left, right *binCounter) []HardstopBin {
	var out []HardstopBin
	for _, chrom := range genome.Names() {
		lbins := left.counts[chrom]
		rbins := right.counts[chrom]
		n := int((genome.Lengths()[chrom] + binSize - 1) / binSize)
		for i := 0; i < n; i++ {
			var l, r int64
			if lbins != nil {
				l = lbins[i]
			}
			if rbins != nil {
				r = rbins[i]
			}
			if l == 0 && r == 0 {
				continue
			}
			out = append(out, HardstopBin{
				Entry:        left.bin(chrom, interval.PosType(i)*binSize),
				SupportLeft:  l,
				SupportRight: r,
			})
		}
	}
	return out
}

// ExtractBatch parses one alignment batch into its gap, hardstop, and
// coverage signals.  The batch's header must describe the same reference as
// genome; a mismatch is a fatal precondition failure for the batch.
func ExtractBatch(ctx context.Context, batch, path string, genome *Genome, opts ExtractOpts) (sig *BatchSignal, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "extract: cannot resolve batch", batch, path)
	}
	defer file.CloseAndReport(ctx, in, &err)

	bamr, err := bam.NewReader(in.Reader(ctx), 1)
	if err != nil {
		return nil, errors.E(err, "extract: cannot open alignments for batch", batch)
	}
	defer func() {
		if cerr := bamr.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	batchGenome, err := GenomeFromHeader(bamr.Header())
	if err != nil {
		return nil, errors.E(err, "extract: batch", batch)
	}
	if err := genome.Compatible(batchGenome); err != nil {
		return nil, errors.E(err, "extract: batch", batch)
	}

	var rawIns, rawDel []rawGap
	var insBuf, delBuf []rawGap // per-read scratch; condensation must not cross reads
	coverage := newBinCounter(genome, opts.BinSize)
	hsLeft := newBinCounter(genome, opts.BinSize)
	hsRight := newBinCounter(genome, opts.BinSize)
	nRecords := 0
	for {
		rec, rerr := bamr.Read()
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return nil, errors.E(rerr, "extract: malformed alignment record in batch", batch)
		}
		if rec.Flags&(sam.Unmapped|sam.Secondary) != 0 || rec.Ref == nil {
			continue
		}
		nRecords++
		insBuf, delBuf = readGaps(rec, opts.CondenseDistance, insBuf[:0], delBuf[:0])
		rawIns = append(rawIns, insBuf...)
		rawDel = append(rawDel, delBuf...)
		for _, bp := range readBreakpoints(rec, opts) {
			if bp.Side == LeftSide {
				hsLeft.add(bp.Chrom, bp.Start, bp.End)
			} else {
				hsRight.add(bp.Chrom, bp.Start, bp.End)
			}
		}
		refPos := interval.PosType(rec.Pos)
		for _, co := range rec.Cigar {
			cLen := interval.PosType(co.Len())
			switch co.Type() {
			case sam.CigarMatch, sam.CigarEqual, sam.CigarMismatch:
				coverage.add(rec.Ref.Name(), refPos, refPos+cLen)
				refPos += cLen
			case sam.CigarDeletion, sam.CigarSkipped:
				refPos += cLen
			}
		}
		sam.PutInFreePool(rec)
	}

	sig = &BatchSignal{
		Insertions: aggregateGaps(genome.Order(), rawIns, Insertion, opts.CondenseDistance, batch),
		Deletions:  aggregateGaps(genome.Order(), rawDel, Deletion, opts.CondenseDistance, batch),
		Hardstops:  hardstopBins(genome, opts.BinSize, hsLeft, hsRight),
		Coverage:   coverage.Partition(),
	}
	log.Debug.Printf("extract: batch %s: %d records, %d insertion events, %d deletion events, %d hardstop bins",
		batch, nRecords, len(sig.Insertions), len(sig.Deletions), len(sig.Hardstops))
	return sig, nil
}
