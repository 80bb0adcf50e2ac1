package signal

import (
	"bufio"
	"context"
	"fmt"
	"strconv"

	"github.com/grailbio/base/file"
	gunsafe "github.com/grailbio/base/unsafe"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/svprep/interval"
)

// Genome is the immutable reference-genome coordinate table shared by every
// pipeline stage: contig ordering for sorts and merges, and contig lengths
// for slop clipping and window tiling.  It is constructed once from a BAM
// header at pipeline-build time and never mutated.
type Genome struct {
	names   []string
	lengths map[string]interval.PosType
	order   *interval.ContigOrder
}

// GenomeFromHeader builds a Genome from a BAM header's reference sequences.
func GenomeFromHeader(header *sam.Header) (*Genome, error) {
	refs := header.Refs()
	if len(refs) == 0 {
		return nil, fmt.Errorf("signal.GenomeFromHeader: header lists no reference sequences")
	}
	g := &Genome{
		names:   make([]string, 0, len(refs)),
		lengths: make(map[string]interval.PosType, len(refs)),
	}
	for _, ref := range refs {
		g.names = append(g.names, ref.Name())
		g.lengths[ref.Name()] = interval.PosType(ref.Len())
	}
	g.order = interval.NewContigOrder(g.names)
	return g, nil
}

// GenomeFromIndex builds a Genome from a FASTA index (.fai): one contig per
// line, name and length in the two leading columns, listed in genome order.
// Trailing .fai columns are ignored.
func GenomeFromIndex(ctx context.Context, path string) (genome *Genome, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer file.CloseAndReport(ctx, in, &err)

	g := &Genome{lengths: make(map[string]interval.PosType)}
	scanner := bufio.NewScanner(in.Reader(ctx))
	var tokens [2][]byte
	lineIdx := 0
	for scanner.Scan() {
		lineIdx++
		if interval.Tokenize(tokens[:], scanner.Bytes()) < 2 {
			return nil, fmt.Errorf("signal.GenomeFromIndex: %s line %d: need contig name and length", path, lineIdx)
		}
		name := string(tokens[0])
		length, err := strconv.Atoi(gunsafe.BytesToString(tokens[1]))
		if err != nil || length <= 0 || length > interval.PosTypeMax {
			return nil, fmt.Errorf("signal.GenomeFromIndex: %s line %d: bad length for contig %s", path, lineIdx, name)
		}
		if _, dup := g.lengths[name]; dup {
			return nil, fmt.Errorf("signal.GenomeFromIndex: %s line %d: duplicate contig %s", path, lineIdx, name)
		}
		g.names = append(g.names, name)
		g.lengths[name] = interval.PosType(length)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(g.names) == 0 {
		return nil, fmt.Errorf("signal.GenomeFromIndex: %s lists no contigs", path)
	}
	g.order = interval.NewContigOrder(g.names)
	return g, nil
}

// Names returns the contig names in genome order.
func (g *Genome) Names() []string { return g.names }

// Lengths returns the contig-name -> length table.
func (g *Genome) Lengths() map[string]interval.PosType { return g.lengths }

// Order returns the contig ordering.
func (g *Genome) Order() *interval.ContigOrder { return g.order }

// Compatible returns an error unless other describes the same reference:
// identical contig names, order, and lengths.  Batches aligned to different
// references must not be aggregated.
func (g *Genome) Compatible(other *Genome) error {
	if len(g.names) != len(other.names) {
		return fmt.Errorf("signal: reference mismatch: %d vs %d contigs", len(g.names), len(other.names))
	}
	for i, name := range g.names {
		if other.names[i] != name {
			return fmt.Errorf("signal: reference mismatch at contig %d: %s vs %s", i, name, other.names[i])
		}
		if g.lengths[name] != other.lengths[name] {
			return fmt.Errorf("signal: reference mismatch: contig %s length %d vs %d", name, g.lengths[name], other.lengths[name])
		}
	}
	return nil
}
