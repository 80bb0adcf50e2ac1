package candidates

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/grailbio/base/tsv"
	gunsafe "github.com/grailbio/base/unsafe"
	"github.com/grailbio/svprep/interval"
	"github.com/grailbio/svprep/signal"
)

// Event-type tags beyond the gap types, used by the consolidation stage.
const (
	HardstopTag = "hardstop"
	WindowTag   = "window"
)

// Candidate is a (possibly merged) candidate region.  Length, Support, and
// Coverage are arithmetic means over the records folded into it; EventTypes
// is the distinct, sorted union of contributor tags.
type Candidate struct {
	interval.Entry
	EventTypes []string
	Length     float64
	Support    float64
	Coverage   float64
}

// FromGapEvent converts one merged gap event into an unannotated candidate.
func FromGapEvent(ev signal.GapEvent) Candidate {
	return Candidate{
		Entry:      ev.Entry,
		EventTypes: []string{string(ev.Type)},
		Length:     float64(ev.Length),
		Support:    float64(ev.Support),
	}
}

// FromHardstopBins converts hardstop bins carrying at least minSupport total
// breakpoints into candidates tagged "hardstop".
func FromHardstopBins(bins []signal.HardstopBin, minSupport int64) []Candidate {
	var cands []Candidate
	for _, bin := range bins {
		if bin.Support() < minSupport {
			continue
		}
		cands = append(cands, Candidate{
			Entry:      bin.Entry,
			EventTypes: []string{HardstopTag},
			Length:     float64(bin.End - bin.Start),
			Support:    float64(bin.Support()),
		})
	}
	return cands
}

// FromWindows converts tiled assembly windows into candidates tagged
// "window".
func FromWindows(windows []interval.Entry) []Candidate {
	cands := make([]Candidate, 0, len(windows))
	for _, w := range windows {
		cands = append(cands, Candidate{
			Entry:      w,
			EventTypes: []string{WindowTag},
			Length:     float64(w.End - w.Start),
		})
	}
	return cands
}

// Entries projects candidates onto bare intervals.
func Entries(cands []Candidate) []interval.Entry {
	entries := make([]interval.Entry, len(cands))
	for i, c := range cands {
		entries[i] = c.Entry
	}
	return entries
}

// distinctTypes returns the sorted union of the contributors' event types.
func distinctTypes(cands []Candidate) []string {
	seen := make(map[string]bool)
	var types []string
	for _, c := range cands {
		for _, et := range c.EventTypes {
			if !seen[et] {
				seen[et] = true
				types = append(types, et)
			}
		}
	}
	sort.Strings(types)
	return types
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteCandidates writes candidates as a BED-like stream: chrom, start, end,
// event types (comma-joined), mean length, mean support, and, when
// withCoverage is set, mean coverage as a trailing column.
func WriteCandidates(w io.Writer, cands []Candidate, withCoverage bool) error {
	tsvw := tsv.NewWriter(w)
	for _, c := range cands {
		tsvw.WriteString(c.Chrom)
		tsvw.WriteUint32(uint32(c.Start))
		tsvw.WriteUint32(uint32(c.End))
		tsvw.WriteString(strings.Join(c.EventTypes, ","))
		tsvw.WriteString(formatFloat(c.Length))
		tsvw.WriteString(formatFloat(c.Support))
		if withCoverage {
			tsvw.WriteString(formatFloat(c.Coverage))
		}
		if err := tsvw.EndLine(); err != nil {
			return err
		}
	}
	return tsvw.Flush()
}

// ReadCandidates parses a candidate stream written by WriteCandidates with
// the same withCoverage setting.
func ReadCandidates(r io.Reader, withCoverage bool) (cands []Candidate, err error) {
	nCol := 6
	if withCoverage {
		nCol = 7
	}
	scanner := bufio.NewScanner(r)
	tokens := make([][]byte, nCol)
	lineIdx := 0
	for scanner.Scan() {
		lineIdx++
		nToken := interval.Tokenize(tokens, scanner.Bytes())
		if nToken == 0 {
			continue
		}
		if nToken != nCol {
			return nil, fmt.Errorf("candidates.ReadCandidates: line %d has %d columns, want %d", lineIdx, nToken, nCol)
		}
		e, err := interval.ParseEntry(tokens[0], tokens[1], tokens[2], lineIdx)
		if err != nil {
			return nil, err
		}
		c := Candidate{Entry: e, EventTypes: strings.Split(string(tokens[3]), ",")}
		if c.Length, err = strconv.ParseFloat(gunsafe.BytesToString(tokens[4]), 64); err != nil {
			return nil, fmt.Errorf("candidates.ReadCandidates: bad length on line %d", lineIdx)
		}
		if c.Support, err = strconv.ParseFloat(gunsafe.BytesToString(tokens[5]), 64); err != nil {
			return nil, fmt.Errorf("candidates.ReadCandidates: bad support on line %d", lineIdx)
		}
		if withCoverage {
			if c.Coverage, err = strconv.ParseFloat(gunsafe.BytesToString(tokens[6]), 64); err != nil {
				return nil, fmt.Errorf("candidates.ReadCandidates: bad coverage on line %d", lineIdx)
			}
		}
		cands = append(cands, c)
	}
	return cands, scanner.Err()
}
