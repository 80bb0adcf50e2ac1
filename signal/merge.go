package signal

import (
	"fmt"

	"github.com/grailbio/svprep/interval"
)

// Cross-batch merging differs per signal type: gap events are k-way merged
// with every record preserved, while the binned signals (coverage,
// hardstops) are pointwise summed over the shared bin partition.

// MergeGapEvents merges N pre-sorted single-batch gap-event streams into one
// genome-sorted stream, preserving all records.
func MergeGapEvents(order *interval.ContigOrder, batches [][]GapEvent) []GapEvent {
	total := 0
	for _, b := range batches {
		total += len(b)
	}
	merged := make([]GapEvent, 0, total)
	interval.KMerge(order, len(batches),
		func(i int) int { return len(batches[i]) },
		func(i, j int) interval.Entry { return batches[i][j].Entry },
		func(i, j int) { merged = append(merged, batches[i][j]) })
	return merged
}

// SumCoverage sums depth across batches at matching bins.  All batches must
// share an identical bin partition; the first divergence is reported as a
// fatal precondition failure rather than silently mis-summing.
func SumCoverage(batches [][]CoverageBin) ([]CoverageBin, error) {
	if len(batches) == 0 {
		return nil, nil
	}
	first := batches[0]
	summed := make([]CoverageBin, len(first))
	copy(summed, first)
	for b := 1; b < len(batches); b++ {
		batch := batches[b]
		if len(batch) != len(first) {
			return nil, fmt.Errorf("signal.SumCoverage: batch %d has %d bins, batch 0 has %d: bin partitions differ",
				b, len(batch), len(first))
		}
		for i, bin := range batch {
			if bin.Entry != summed[i].Entry {
				return nil, fmt.Errorf("signal.SumCoverage: batch %d bin %d is %s:%d-%d, batch 0 has %s:%d-%d: bin partitions differ",
					b, i, bin.Chrom, bin.Start, bin.End, summed[i].Chrom, summed[i].Start, summed[i].End)
			}
			summed[i].Depth += bin.Depth
		}
	}
	return summed, nil
}

// SumHardstopBins merges N pre-sorted single-batch hardstop-bin streams,
// summing per-side support at identical bins.  Batches derive their bins
// from the same fixed partition, so equal coordinates imply the same bin.
func SumHardstopBins(order *interval.ContigOrder, batches [][]HardstopBin) []HardstopBin {
	var merged []HardstopBin
	interval.KMerge(order, len(batches),
		func(i int) int { return len(batches[i]) },
		func(i, j int) interval.Entry { return batches[i][j].Entry },
		func(i, j int) {
			bin := batches[i][j]
			if n := len(merged); n != 0 && merged[n-1].Entry == bin.Entry {
				merged[n-1].SupportLeft += bin.SupportLeft
				merged[n-1].SupportRight += bin.SupportRight
				return
			}
			merged = append(merged, bin)
		})
	return merged
}
