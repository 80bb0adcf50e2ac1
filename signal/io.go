package signal

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/grailbio/base/tsv"
	gunsafe "github.com/grailbio/base/unsafe"
	"github.com/grailbio/svprep/interval"
)

// Tab-separated wire formats for the signal streams, genome-sorted by
// chromosome then start:
//   coverage: chrom start end depth
//   gap:      chrom start end length support event_type strand batch
//   hardstop: chrom start end support_left side support_right
// Every reader validates start < end on each record; a malformed record is a
// fatal precondition failure for the consuming stage.

func writeEntry(w *tsv.Writer, e interval.Entry) {
	w.WriteString(e.Chrom)
	w.WriteUint32(uint32(e.Start))
	w.WriteUint32(uint32(e.End))
}

// WriteCoverage writes coverage bins in wire format.
func WriteCoverage(w io.Writer, bins []CoverageBin) error {
	tsvw := tsv.NewWriter(w)
	for _, bin := range bins {
		writeEntry(tsvw, bin.Entry)
		tsvw.WriteInt64(bin.Depth)
		if err := tsvw.EndLine(); err != nil {
			return err
		}
	}
	return tsvw.Flush()
}

// WriteGapEvents writes gap events in wire format.
func WriteGapEvents(w io.Writer, events []GapEvent) error {
	tsvw := tsv.NewWriter(w)
	for _, ev := range events {
		writeEntry(tsvw, ev.Entry)
		tsvw.WriteInt64(ev.Length)
		tsvw.WriteInt64(ev.Support)
		tsvw.WriteString(string(ev.Type))
		tsvw.WriteByte(ev.Strand)
		tsvw.WriteString(ev.Batch)
		if err := tsvw.EndLine(); err != nil {
			return err
		}
	}
	return tsvw.Flush()
}

// WriteHardstopBins writes hardstop bins in wire format.
func WriteHardstopBins(w io.Writer, bins []HardstopBin) error {
	tsvw := tsv.NewWriter(w)
	for _, bin := range bins {
		writeEntry(tsvw, bin.Entry)
		tsvw.WriteInt64(bin.SupportLeft)
		tsvw.WriteString(string(bin.SideTag()))
		tsvw.WriteInt64(bin.SupportRight)
		if err := tsvw.EndLine(); err != nil {
			return err
		}
	}
	return tsvw.Flush()
}

// scanRecords drives a Tokenize-based line scanner over fixed-column rows.
func scanRecords(r io.Reader, nCol int, parse func(tokens [][]byte, lineIdx int) error) error {
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
			return fmt.Errorf("signal: line %d has %d columns, want %d", lineIdx, nToken, nCol)
		}
		if err := parse(tokens, lineIdx); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func parseInt64(tok []byte) (int64, error) {
	return strconv.ParseInt(gunsafe.BytesToString(tok), 10, 64)
}

// ReadCoverage parses a coverage stream.
func ReadCoverage(r io.Reader) (bins []CoverageBin, err error) {
	err = scanRecords(r, 4, func(tokens [][]byte, lineIdx int) error {
		e, err := interval.ParseEntry(tokens[0], tokens[1], tokens[2], lineIdx)
		if err != nil {
			return err
		}
		depth, err := parseInt64(tokens[3])
		if err != nil || depth < 0 {
			return fmt.Errorf("signal.ReadCoverage: bad depth on line %d", lineIdx)
		}
		bins = append(bins, CoverageBin{Entry: e, Depth: depth})
		return nil
	})
	return
}

// ReadGapEvents parses a gap-event stream.
func ReadGapEvents(r io.Reader) (events []GapEvent, err error) {
	err = scanRecords(r, 8, func(tokens [][]byte, lineIdx int) error {
		e, err := interval.ParseEntry(tokens[0], tokens[1], tokens[2], lineIdx)
		if err != nil {
			return err
		}
		length, err := parseInt64(tokens[3])
		if err != nil || length < 0 {
			return fmt.Errorf("signal.ReadGapEvents: bad length on line %d", lineIdx)
		}
		support, err := parseInt64(tokens[4])
		if err != nil || support < 0 {
			return fmt.Errorf("signal.ReadGapEvents: bad support on line %d", lineIdx)
		}
		gapType, err := ParseGapType(string(tokens[5]))
		if err != nil {
			return err
		}
		if len(tokens[6]) != 1 {
			return fmt.Errorf("signal.ReadGapEvents: bad strand on line %d", lineIdx)
		}
		events = append(events, GapEvent{
			Entry:   e,
			Length:  length,
			Support: support,
			Type:    gapType,
			Strand:  tokens[6][0],
			Batch:   string(tokens[7]),
		})
		return nil
	})
	return
}

// ReadHardstopBins parses a hardstop-bin stream.
func ReadHardstopBins(r io.Reader) (bins []HardstopBin, err error) {
	err = scanRecords(r, 6, func(tokens [][]byte, lineIdx int) error {
		e, err := interval.ParseEntry(tokens[0], tokens[1], tokens[2], lineIdx)
		if err != nil {
			return err
		}
		left, err := parseInt64(tokens[3])
		if err != nil || left < 0 {
			return fmt.Errorf("signal.ReadHardstopBins: bad left support on line %d", lineIdx)
		}
		if _, err = ParseSide(string(tokens[4])); err != nil {
			return err
		}
		right, err := parseInt64(tokens[5])
		if err != nil || right < 0 {
			return fmt.Errorf("signal.ReadHardstopBins: bad right support on line %d", lineIdx)
		}
		bins = append(bins, HardstopBin{Entry: e, SupportLeft: left, SupportRight: right})
		return nil
	})
	return
}
