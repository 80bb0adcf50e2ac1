package main

/*
bio-svprep detects structural-variant candidate regions from one or more
aligned read batches (BAM), combining gap events parsed from per-read
alignments with hardstop (clipped read end) breakpoints, and emits
coverage-annotated candidate regions for downstream local assembly, plus the
inaccessible regions that hardstop-based inference should ignore.
*/

import (
	"flag"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/svprep/candidates"
	"github.com/grailbio/svprep/signal"
)

var (
	reference   = flag.String("reference", "", "Optional FASTA index (.fai) naming the reference contigs and lengths; default: the first batch's header")
	mapq        = flag.Int("mapq", signal.DefaultExtractOpts.Mapq, "Clipped read ends on reads with MAPQ below this level never count as hardstops")
	minClipping = flag.Int("min-clipping", signal.DefaultExtractOpts.MinClipping, "Minimum soft/hard-clip length for a read end to count as a hardstop")
	condense    = flag.Int("condense", int(signal.DefaultExtractOpts.CondenseDistance), "Maximum distance between adjacent indel signals before they are condensed into one gap event")
	binSize     = flag.Int("bin-size", int(signal.DefaultExtractOpts.BinSize), "Fixed bin size shared by coverage and hardstop counting")

	minLength  = flag.Float64("min-length", candidates.DefaultFilterOpts.MinLength, "Minimum mean event length for a gap event to survive filtering")
	minSupport = flag.Float64("min-support", candidates.DefaultFilterOpts.MinSupport, "Minimum read support for a gap event")
	maxSupport = flag.Float64("max-support", candidates.DefaultFilterOpts.MaxSupport, "Maximum read support for a gap event")

	minCoverage        = flag.Float64("min-coverage", candidates.DefaultConsolidateOpts.MinCoverage, "Minimum mean coverage for events and consolidated regions")
	maxCoverage        = flag.Float64("max-coverage", candidates.DefaultConsolidateOpts.MaxCoverage, "Maximum mean coverage for events and consolidated regions")
	maxCandidateLength = flag.Int("max-candidate-length", int(candidates.DefaultConsolidateOpts.MaxCandidateLength), "Maximum length of a consolidated candidate region")

	minHardstopSupport     = flag.Int64("min-hardstop-support", 5, "Minimum summed breakpoint count for a hardstop bin to become a candidate")
	maxInaccessibleSupport = flag.Int64("max-inaccessible-support", candidates.DefaultInaccessibleOpts.MaxSupport, "Maximum summed coverage for a bin to count as inaccessible")

	windowSize  = flag.Int("assembly-window-size", 60000, "Tiled assembly window size")
	windowSlide = flag.Int("assembly-window-slide", 20000, "Tiled assembly window slide")

	regionsToExclude = flag.String("regions-to-exclude", "", "Optional BED of regions to subtract from consolidated candidates; empty means no exclusion")
	refGaps          = flag.String("ref-gaps", "", "Optional BED of reference assembly gaps, excluded from inaccessible-region calls")

	outPrefix   = flag.String("out", "sv-candidates", "Output path prefix")
	workDir     = flag.String("work-dir", "", "Directory for intermediate stage outputs (default: a fresh temp dir)")
	parallelism = flag.Int("parallelism", 0, "Maximum number of simultaneous stage executions; 0 = runtime.NumCPU()")
)

func svprepUsage() {
	fmt.Printf("Usage: %s [OPTIONS] bampath...\n", os.Args[0])
	fmt.Printf("Each bampath is one alignment batch; batches must share a reference.\n")
	fmt.Printf("Other options:\n")
	flag.PrintDefaults()
}

// batchName derives a stable batch identifier from an alignment path.
func batchName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func main() {
	flag.Usage = svprepUsage
	shutdown := grail.Init()
	defer shutdown()

	bamPaths := flag.Args()
	if len(bamPaths) == 0 {
		log.Fatalf("Missing positional arguments (at least one bampath required); please check flag syntax: '%s'", strings.Join(os.Args[1:], " "))
	}

	// Immutable batch-name -> path table, constructed once and shared by
	// every task that resolves a batch.
	batches := make(map[string]string, len(bamPaths))
	names := make([]string, 0, len(bamPaths))
	for _, path := range bamPaths {
		name := batchName(path)
		if _, dup := batches[name]; dup {
			log.Fatalf("Duplicate batch name %q (from %s); rename the input files", name, path)
		}
		batches[name] = path
		names = append(names, name)
	}

	ctx := vcontext.Background()
	var genome *signal.Genome
	var err error
	if *reference != "" {
		if genome, err = signal.GenomeFromIndex(ctx, *reference); err != nil {
			log.Fatalf("Cannot read reference index %s: %v", *reference, err)
		}
	} else if genome, err = readGenome(ctx, bamPaths[0]); err != nil {
		log.Fatalf("Cannot read reference layout from %s: %v", bamPaths[0], err)
	}

	dir := *workDir
	if dir == "" {
		if dir, err = ioutil.TempDir("", "svprep"); err != nil {
			log.Fatalf("Cannot create work dir: %v", err)
		}
	} else if err = os.MkdirAll(dir, 0755); err != nil {
		log.Fatalf("Cannot create work dir %s: %v", dir, err)
	}

	p := *parallelism
	if p <= 0 {
		p = runtime.NumCPU()
	}

	r := &runner{
		genome:     genome,
		batches:    batches,
		batchNames: names,
		workDir:    dir,
		outPrefix:  *outPrefix,
		extractOpts: signal.ExtractOpts{
			Mapq:             *mapq,
			MinClipping:      *minClipping,
			CondenseDistance: posType(*condense),
			BinSize:          posType(*binSize),
		},
		filterOpts: candidates.FilterOpts{
			MinLength:     *minLength,
			MinSupport:    *minSupport,
			MaxSupport:    *maxSupport,
			MinCoverage:   *minCoverage,
			MaxCoverage:   *maxCoverage,
			MergeDistance: candidates.DefaultFilterOpts.MergeDistance,
		},
		consolidateOpts: candidates.ConsolidateOpts{
			MergeDistance:      candidates.DefaultConsolidateOpts.MergeDistance,
			SlopPadding:        candidates.DefaultConsolidateOpts.SlopPadding,
			MinCoverage:        *minCoverage,
			MaxCoverage:        *maxCoverage,
			MaxCandidateLength: posType(*maxCandidateLength),
		},
		inaccessibleOpts: candidates.InaccessibleOpts{
			MaxSupport:             *maxInaccessibleSupport,
			MergeDistance:          candidates.DefaultInaccessibleOpts.MergeDistance,
			ExclusionMergeDistance: candidates.DefaultInaccessibleOpts.ExclusionMergeDistance,
		},
		minHardstopSupport: *minHardstopSupport,
		windowSize:         posType(*windowSize),
		windowSlide:        posType(*windowSlide),
		regionsToExclude:   *regionsToExclude,
		refGaps:            *refGaps,
	}
	graph := r.buildGraph()
	status, err := graph.Run(ctx, p)
	if err != nil {
		for name, st := range status {
			log.Printf("stage %s: %v", name, st)
		}
		log.Fatalf("%v", err)
	}
	log.Printf("done: %s.candidates.bed, %s.inaccessible.bed", *outPrefix, *outPrefix)
}
