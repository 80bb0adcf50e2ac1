package main

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/hts/bam"
	"github.com/grailbio/svprep/candidates"
	"github.com/grailbio/svprep/interval"
	"github.com/grailbio/svprep/pipeline"
	"github.com/grailbio/svprep/signal"
)

func posType(v int) interval.PosType { return interval.PosType(v) }

// readGenome builds the shared reference table from one batch's header.
func readGenome(ctx context.Context, path string) (genome *signal.Genome, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer file.CloseAndReport(ctx, in, &err)
	bamr, err := bam.NewReader(in.Reader(ctx), 1)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := bamr.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return signal.GenomeFromHeader(bamr.Header())
}

// runner holds the immutable configuration every stage closure shares.
type runner struct {
	genome     *signal.Genome
	batches    map[string]string // batch name -> alignment path; never mutated
	batchNames []string
	workDir    string
	outPrefix  string

	extractOpts        signal.ExtractOpts
	filterOpts         candidates.FilterOpts
	consolidateOpts    candidates.ConsolidateOpts
	inaccessibleOpts   candidates.InaccessibleOpts
	minHardstopSupport int64
	windowSize         interval.PosType
	windowSlide        interval.PosType
	regionsToExclude   string
	refGaps            string
}

func (r *runner) path(elems ...string) string {
	return filepath.Join(append([]string{r.workDir}, elems...)...)
}

func (r *runner) batchFile(name, kind string) string {
	return r.path(name + "." + kind + ".tsv")
}

// writeAtomic materializes one stage output with visibility-on-success.
func writeAtomic(path string, write func(w io.Writer) error) error {
	a, err := pipeline.CreateAtomic(path)
	if err != nil {
		return err
	}
	defer a.Abort()
	if err := write(a); err != nil {
		return err
	}
	return a.Commit()
}

func openAll(paths []string, read func(rd io.Reader) error) error {
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		err = read(f)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return errors.E(err, path)
		}
	}
	return nil
}

func readFiltered(paths []string) ([]candidates.Candidate, error) {
	var all []candidates.Candidate
	err := openAll(paths, func(rd io.Reader) error {
		cands, err := candidates.ReadCandidates(rd, true)
		if err != nil {
			return err
		}
		all = append(all, cands...)
		return nil
	})
	return all, err
}

func readCoverageFile(path string) ([]signal.CoverageBin, error) {
	var cov []signal.CoverageBin
	err := openAll([]string{path}, func(rd io.Reader) (err error) {
		cov, err = signal.ReadCoverage(rd)
		return
	})
	return cov, err
}

// buildGraph wires the full dataflow DAG:
//
//	extract(batch)* -> merge per gap type -> annotate+filter per type --+
//	               \-> sum hardstop bins -> hardstop candidates --------+--> windows -> consolidate
//	                \-> sum coverage ------------------------------------+
//	                 \-> (coverage, hardstops, filtered) -> inaccessible
func (r *runner) buildGraph() *pipeline.Graph {
	var g pipeline.Graph

	coveragePath := r.path("coverage.tsv")
	hardstopsPath := r.path("hardstops.tsv")
	hardstopCandsPath := r.path("hardstop_candidates.tsv")
	windowsPath := r.path("windows.bed")
	candidatesPath := r.outPrefix + ".candidates.bed"
	inaccessiblePath := r.outPrefix + ".inaccessible.bed"

	gapTypes := []signal.GapType{signal.Insertion, signal.Deletion}
	mergedGapPath := func(t signal.GapType) string { return r.path("gaps." + string(t) + ".tsv") }
	filteredPath := func(t signal.GapType) string { return r.path("filtered." + string(t) + ".tsv") }
	var filteredPaths []string
	for _, t := range gapTypes {
		filteredPaths = append(filteredPaths, filteredPath(t))
	}

	// Per-batch signal extraction; batches are independent of one another.
	var insPaths, delPaths, hsPaths, covPaths []string
	gapBatchPaths := map[signal.GapType]*[]string{signal.Insertion: &insPaths, signal.Deletion: &delPaths}
	for _, name := range r.batchNames {
		name := name
		ins := r.batchFile(name, "insertions")
		del := r.batchFile(name, "deletions")
		hs := r.batchFile(name, "hardstops")
		cov := r.batchFile(name, "coverage")
		insPaths = append(insPaths, ins)
		delPaths = append(delPaths, del)
		hsPaths = append(hsPaths, hs)
		covPaths = append(covPaths, cov)
		g.Add(&pipeline.Task{
			Name:    "extract:" + name,
			Outputs: []string{ins, del, hs, cov},
			Run: func(ctx context.Context) error {
				sig, err := signal.ExtractBatch(ctx, name, r.batches[name], r.genome, r.extractOpts)
				if err != nil {
					return err
				}
				if err := writeAtomic(ins, func(w io.Writer) error { return signal.WriteGapEvents(w, sig.Insertions) }); err != nil {
					return err
				}
				if err := writeAtomic(del, func(w io.Writer) error { return signal.WriteGapEvents(w, sig.Deletions) }); err != nil {
					return err
				}
				if err := writeAtomic(hs, func(w io.Writer) error { return signal.WriteHardstopBins(w, sig.Hardstops) }); err != nil {
					return err
				}
				return writeAtomic(cov, func(w io.Writer) error { return signal.WriteCoverage(w, sig.Coverage) })
			},
		})
	}

	// Cross-batch merge per gap type, preserving all records.
	for _, t := range gapTypes {
		t := t
		inputs := *gapBatchPaths[t]
		g.Add(&pipeline.Task{
			Name:    "merge-gaps:" + string(t),
			Inputs:  inputs,
			Outputs: []string{mergedGapPath(t)},
			Run: func(ctx context.Context) error {
				var batches [][]signal.GapEvent
				err := openAll(inputs, func(rd io.Reader) error {
					events, err := signal.ReadGapEvents(rd)
					if err != nil {
						return err
					}
					batches = append(batches, events)
					return nil
				})
				if err != nil {
					return err
				}
				merged := signal.MergeGapEvents(r.genome.Order(), batches)
				return writeAtomic(mergedGapPath(t), func(w io.Writer) error { return signal.WriteGapEvents(w, merged) })
			},
		})
	}

	// Cross-batch coverage summation over the shared bin partition.
	g.Add(&pipeline.Task{
		Name:    "sum-coverage",
		Inputs:  covPaths,
		Outputs: []string{coveragePath},
		Run: func(ctx context.Context) error {
			var batches [][]signal.CoverageBin
			err := openAll(covPaths, func(rd io.Reader) error {
				cov, err := signal.ReadCoverage(rd)
				if err != nil {
					return err
				}
				batches = append(batches, cov)
				return nil
			})
			if err != nil {
				return err
			}
			summed, err := signal.SumCoverage(batches)
			if err != nil {
				return err
			}
			return writeAtomic(coveragePath, func(w io.Writer) error { return signal.WriteCoverage(w, summed) })
		},
	})

	g.Add(&pipeline.Task{
		Name:    "sum-hardstops",
		Inputs:  hsPaths,
		Outputs: []string{hardstopsPath},
		Run: func(ctx context.Context) error {
			var batches [][]signal.HardstopBin
			err := openAll(hsPaths, func(rd io.Reader) error {
				bins, err := signal.ReadHardstopBins(rd)
				if err != nil {
					return err
				}
				batches = append(batches, bins)
				return nil
			})
			if err != nil {
				return err
			}
			merged := signal.SumHardstopBins(r.genome.Order(), batches)
			return writeAtomic(hardstopsPath, func(w io.Writer) error { return signal.WriteHardstopBins(w, merged) })
		},
	})

	// Annotate mean coverage and filter, per gap type.  Composed sub-steps
	// (annotate -> filter -> 1bp merge) fail fast as one stage.
	for _, t := range gapTypes {
		t := t
		g.Add(&pipeline.Task{
			Name:    "filter:" + string(t),
			Inputs:  []string{mergedGapPath(t), coveragePath},
			Outputs: []string{filteredPath(t)},
			Run: func(ctx context.Context) error {
				var events []signal.GapEvent
				err := openAll([]string{mergedGapPath(t)}, func(rd io.Reader) (err error) {
					events, err = signal.ReadGapEvents(rd)
					return
				})
				if err != nil {
					return err
				}
				cov, err := readCoverageFile(coveragePath)
				if err != nil {
					return err
				}
				cands := make([]candidates.Candidate, 0, len(events))
				for _, ev := range events {
					cands = append(cands, candidates.FromGapEvent(ev))
				}
				if err := candidates.AnnotateCoverage(cands, cov); err != nil {
					return err
				}
				filtered, err := candidates.FilterEvents(r.genome.Order(), cands, r.filterOpts)
				if err != nil {
					return err
				}
				// filtered may be empty; the output must still exist.
				return writeAtomic(filteredPath(t), func(w io.Writer) error { return candidates.WriteCandidates(w, filtered, true) })
			},
		})
	}

	// Hardstop bins with enough summed support become candidates.
	g.Add(&pipeline.Task{
		Name:    "hardstop-candidates",
		Inputs:  []string{hardstopsPath},
		Outputs: []string{hardstopCandsPath},
		Run: func(ctx context.Context) error {
			var bins []signal.HardstopBin
			err := openAll([]string{hardstopsPath}, func(rd io.Reader) (err error) {
				bins, err = signal.ReadHardstopBins(rd)
				return
			})
			if err != nil {
				return err
			}
			cands := candidates.FromHardstopBins(bins, r.minHardstopSupport)
			return writeAtomic(hardstopCandsPath, func(w io.Writer) error { return candidates.WriteCandidates(w, cands, true) })
		},
	})

	// Assembly windows covering the signal-bearing regions.
	g.Add(&pipeline.Task{
		Name:    "windows",
		Inputs:  append(append([]string{}, filteredPaths...), hardstopCandsPath),
		Outputs: []string{windowsPath},
		Run: func(ctx context.Context) error {
			regions, err := readFiltered(append(append([]string{}, filteredPaths...), hardstopCandsPath))
			if err != nil {
				return err
			}
			tiling := interval.Tile(r.genome.Order(), r.genome.Lengths(), r.windowSize, r.windowSlide)
			selected, err := candidates.SelectWindows(tiling, regions)
			if err != nil {
				return err
			}
			return writeAtomic(windowsPath, func(w io.Writer) error {
				return candidates.WriteCandidates(w, candidates.FromWindows(selected), true)
			})
		},
	})

	// Final consolidation into the candidate BED.
	g.Add(&pipeline.Task{
		Name:    "consolidate",
		Inputs:  append(append([]string{}, filteredPaths...), hardstopCandsPath, windowsPath, coveragePath),
		Outputs: []string{candidatesPath},
		Run: func(ctx context.Context) error {
			opts := r.consolidateOpts
			if r.regionsToExclude != "" {
				excl, err := interval.ReadBEDFromPath(r.regionsToExclude)
				if err != nil {
					return errors.E(err, "regions-to-exclude", r.regionsToExclude)
				}
				if opts.Exclude, err = interval.NewTreeSet(excl); err != nil {
					return err
				}
			}
			filtered, err := readFiltered(filteredPaths)
			if err != nil {
				return err
			}
			hardstops, err := readFiltered([]string{hardstopCandsPath})
			if err != nil {
				return err
			}
			windows, err := readFiltered([]string{windowsPath})
			if err != nil {
				return err
			}
			cov, err := readCoverageFile(coveragePath)
			if err != nil {
				return err
			}
			final, err := candidates.Consolidate(r.genome, filtered, hardstops, windows, cov, opts)
			if err != nil {
				return err
			}
			return writeAtomic(candidatesPath, func(w io.Writer) error { return candidates.WriteCandidates(w, final, true) })
		},
	})

	// Independent branch: persistently low-coverage regions, minus regions
	// already explained by hardstops, reference gaps, or detected variants.
	g.Add(&pipeline.Task{
		Name:    "inaccessible",
		Inputs:  append(append([]string{}, filteredPaths...), hardstopsPath, coveragePath),
		Outputs: []string{inaccessiblePath},
		Run: func(ctx context.Context) error {
			cov, err := readCoverageFile(coveragePath)
			if err != nil {
				return err
			}
			var bins []signal.HardstopBin
			err = openAll([]string{hardstopsPath}, func(rd io.Reader) (err error) {
				bins, err = signal.ReadHardstopBins(rd)
				return
			})
			if err != nil {
				return err
			}
			hardstopEntries := make([]interval.Entry, len(bins))
			for i, bin := range bins {
				hardstopEntries[i] = bin.Entry
			}
			filtered, err := readFiltered(filteredPaths)
			if err != nil {
				return err
			}
			exclusions := [][]interval.Entry{hardstopEntries, candidates.Entries(filtered)}
			if r.refGaps != "" {
				gaps, err := interval.ReadBEDFromPath(r.refGaps)
				if err != nil {
					return errors.E(err, "ref-gaps", r.refGaps)
				}
				exclusions = append(exclusions, gaps)
			}
			regions, err := candidates.Inaccessible(r.genome.Order(), cov, r.inaccessibleOpts, exclusions...)
			if err != nil {
				return err
			}
			return writeAtomic(inaccessiblePath, func(w io.Writer) error {
				return interval.WriteBED(w, regions)
			})
		},
	})

	return &g
}
