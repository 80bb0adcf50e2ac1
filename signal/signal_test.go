package signal_test

import (
	"bytes"
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/svprep/interval"
	"github.com/grailbio/svprep/signal"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func TestGenomeFromIndex(t *testing.T) {
	dir, err := ioutil.TempDir("", "genome_test")
	assert.NoError(t, err)
	defer os.RemoveAll(dir) // nolint: errcheck
	path := filepath.Join(dir, "ref.fasta.fai")
	// Standard five-column .fai; only name and length matter here.
	fai := "chr1\t100000\t6\t60\t61\nchr2\t1200\t101678\t60\t61\n"
	assert.NoError(t, ioutil.WriteFile(path, []byte(fai), 0644))

	g, err := signal.GenomeFromIndex(context.Background(), path)
	assert.NoError(t, err)
	expect.EQ(t, g.Names(), []string{"chr1", "chr2"})
	expect.EQ(t, g.Lengths()["chr2"], interval.PosType(1200))
	expect.True(t, g.Order().LessChrom("chr1", "chr2"))

	assert.NoError(t, ioutil.WriteFile(path, []byte("chr1\n"), 0644))
	_, err = signal.GenomeFromIndex(context.Background(), path)
	expect.True(t, err != nil)
}

func TestMergeGapEvents(t *testing.T) {
	order := interval.NewContigOrder([]string{"chr1", "chr2"})
	batchA := []signal.GapEvent{
		{Entry: interval.Entry{Chrom: "chr1", Start: 100, End: 150}, Length: 50, Support: 2, Type: signal.Deletion, Strand: '+', Batch: "a"},
		{Entry: interval.Entry{Chrom: "chr2", Start: 10, End: 11}, Length: 30, Support: 1, Type: signal.Deletion, Strand: '+', Batch: "a"},
	}
	batchB := []signal.GapEvent{
		{Entry: interval.Entry{Chrom: "chr1", Start: 100, End: 150}, Length: 48, Support: 3, Type: signal.Deletion, Strand: '-', Batch: "b"},
		{Entry: interval.Entry{Chrom: "chr1", Start: 900, End: 960}, Length: 60, Support: 1, Type: signal.Deletion, Strand: '+', Batch: "b"},
	}
	merged := signal.MergeGapEvents(order, [][]signal.GapEvent{batchA, batchB})
	// All records preserved (no deduplication), genome order, stable ties.
	assert.EQ(t, len(merged), 4)
	expect.EQ(t, merged[0].Batch, "a")
	expect.EQ(t, merged[1].Batch, "b")
	expect.EQ(t, merged[2].Entry, interval.Entry{Chrom: "chr1", Start: 900, End: 960})
	expect.EQ(t, merged[3].Entry, interval.Entry{Chrom: "chr2", Start: 10, End: 11})
}

func TestSumCoverage(t *testing.T) {
	bin := func(start interval.PosType, depth int64) signal.CoverageBin {
		return signal.CoverageBin{Entry: interval.Entry{Chrom: "chr1", Start: start, End: start + 500}, Depth: depth}
	}
	a := []signal.CoverageBin{bin(0, 3), bin(500, 0)}
	b := []signal.CoverageBin{bin(0, 4), bin(500, 9)}
	summed, err := signal.SumCoverage([][]signal.CoverageBin{a, b})
	assert.NoError(t, err)
	expect.EQ(t, summed, []signal.CoverageBin{bin(0, 7), bin(500, 9)})
	// Inputs are not mutated by the summation.
	expect.EQ(t, a[0].Depth, int64(3))
}

func TestSumCoverageRejectsMismatchedPartitions(t *testing.T) {
	a := []signal.CoverageBin{{Entry: interval.Entry{Chrom: "chr1", Start: 0, End: 500}, Depth: 1}}
	b := []signal.CoverageBin{{Entry: interval.Entry{Chrom: "chr1", Start: 0, End: 400}, Depth: 1}}
	_, err := signal.SumCoverage([][]signal.CoverageBin{a, b})
	expect.True(t, err != nil)
	expect.True(t, strings.Contains(err.Error(), "partitions differ"))

	_, err = signal.SumCoverage([][]signal.CoverageBin{a, nil})
	expect.True(t, err != nil)
}

func TestSumHardstopBins(t *testing.T) {
	order := interval.NewContigOrder([]string{"chr1"})
	e := interval.Entry{Chrom: "chr1", Start: 1000, End: 1500}
	a := []signal.HardstopBin{{Entry: e, SupportLeft: 2}}
	b := []signal.HardstopBin{
		{Entry: e, SupportRight: 3},
		{Entry: interval.Entry{Chrom: "chr1", Start: 2000, End: 2500}, SupportLeft: 1},
	}
	merged := signal.SumHardstopBins(order, [][]signal.HardstopBin{a, b})
	assert.EQ(t, len(merged), 2)
	expect.EQ(t, merged[0].SupportLeft, int64(2))
	expect.EQ(t, merged[0].SupportRight, int64(3))
	expect.EQ(t, merged[0].SideTag(), signal.BothSides)
	expect.EQ(t, merged[1].SideTag(), signal.LeftSide)
}

func TestCoverageIO(t *testing.T) {
	bins := []signal.CoverageBin{
		{Entry: interval.Entry{Chrom: "chr1", Start: 0, End: 500}, Depth: 12},
		{Entry: interval.Entry{Chrom: "chr1", Start: 500, End: 1000}, Depth: 0},
	}
	var buf bytes.Buffer
	assert.NoError(t, signal.WriteCoverage(&buf, bins))
	expect.EQ(t, buf.String(), "chr1\t0\t500\t12\nchr1\t500\t1000\t0\n")
	got, err := signal.ReadCoverage(&buf)
	assert.NoError(t, err)
	expect.EQ(t, got, bins)

	_, err = signal.ReadCoverage(strings.NewReader("chr1\t500\t0\t3\n"))
	expect.True(t, err != nil, "end <= start must be rejected")
}

func TestGapEventIO(t *testing.T) {
	events := []signal.GapEvent{
		{Entry: interval.Entry{Chrom: "chr1", Start: 100, End: 120}, Length: 35, Support: 2, Type: signal.Deletion, Strand: '.', Batch: "batchA"},
	}
	var buf bytes.Buffer
	assert.NoError(t, signal.WriteGapEvents(&buf, events))
	expect.EQ(t, buf.String(), "chr1\t100\t120\t35\t2\tdeletion\t.\tbatchA\n")
	got, err := signal.ReadGapEvents(&buf)
	assert.NoError(t, err)
	expect.EQ(t, got, events)

	_, err = signal.ReadGapEvents(strings.NewReader("chr1\t100\t120\t35\t2\tinversion\t.\tbatchA\n"))
	expect.True(t, err != nil, "unknown event type must be rejected")
}

func TestHardstopBinIO(t *testing.T) {
	bins := []signal.HardstopBin{
		{Entry: interval.Entry{Chrom: "chr1", Start: 1000, End: 1500}, SupportLeft: 4, SupportRight: 0},
		{Entry: interval.Entry{Chrom: "chr1", Start: 2000, End: 2500}, SupportLeft: 1, SupportRight: 2},
	}
	var buf bytes.Buffer
	assert.NoError(t, signal.WriteHardstopBins(&buf, bins))
	expect.EQ(t, buf.String(), "chr1\t1000\t1500\t4\tleft\t0\nchr1\t2000\t2500\t1\tboth\t2\n")
	got, err := signal.ReadHardstopBins(&buf)
	assert.NoError(t, err)
	expect.EQ(t, got, bins)
}
