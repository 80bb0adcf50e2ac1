package interval

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/grailbio/base/tsv"
	gunsafe "github.com/grailbio/base/unsafe"
	"github.com/grailbio/base/vcontext"
	"github.com/klauspost/compress/gzip"
)

// Tokenize identifies up to the first len(tokens) tokens from curLine,
// returning the number of tokens saved.  Any (group of) characters <= ' ' is
// treated as a delimiter.  These simple loops beat the standard library
// string-split functions for the short fixed-column lines this package
// parses.
func Tokenize(tokens [][]byte, curLine []byte) int {
	posEnd := 0
	lineLen := len(curLine)
	for tokenIdx := range tokens {
		pos := posEnd
		for ; pos != lineLen; pos++ {
			if curLine[pos] > ' ' {
				break
			}
		}
		if pos == lineLen {
			return tokenIdx
		}
		posEnd = pos
		for ; posEnd != lineLen; posEnd++ {
			if curLine[posEnd] <= ' ' {
				break
			}
		}
		tokens[tokenIdx] = curLine[pos:posEnd]
	}
	return len(tokens)
}

// ParseEntry converts the three leading chrom/start/end tokens of a record
// into an Entry, validating 0 <= start < end.
func ParseEntry(chrom, startTok, endTok []byte, lineIdx int) (e Entry, err error) {
	var start, end int
	if start, err = strconv.Atoi(gunsafe.BytesToString(startTok)); err != nil {
		return
	}
	if end, err = strconv.Atoi(gunsafe.BytesToString(endTok)); err != nil {
		return
	}
	if start < 0 || end <= start || end > PosTypeMax {
		err = fmt.Errorf("interval.ParseEntry: invalid coordinate pair [%d, %d) on line %d", start, end, lineIdx)
		return
	}
	// The token aliases the scanner's buffer; copy before it is overwritten.
	e = Entry{Chrom: string(chrom), Start: PosType(start), End: PosType(end)}
	return
}

// ReadBED loads the chrom/start/end columns of a BED-like stream, ignoring
// any trailing columns and blank lines.  No sortedness requirement is
// imposed here; stages that need genome order enforce it themselves.
func ReadBED(reader io.Reader) (entries []Entry, err error) {
	scanner := bufio.NewScanner(reader)
	var tokens [3][]byte
	lineIdx := 0
	for scanner.Scan() {
		lineIdx++
		nToken := Tokenize(tokens[:], scanner.Bytes())
		if nToken == 0 {
			continue
		}
		if nToken != 3 {
			err = fmt.Errorf("interval.ReadBED: line %d has fewer tokens than expected", lineIdx)
			return
		}
		var e Entry
		if e, err = ParseEntry(tokens[0], tokens[1], tokens[2], lineIdx); err != nil {
			return
		}
		entries = append(entries, e)
	}
	err = scanner.Err()
	return
}

// WriteBED writes entries as a minimal three-column BED stream.
func WriteBED(w io.Writer, entries []Entry) error {
	tsvw := tsv.NewWriter(w)
	for _, e := range entries {
		tsvw.WriteString(e.Chrom)
		tsvw.WriteUint32(uint32(e.Start))
		tsvw.WriteUint32(uint32(e.End))
		if err := tsvw.EndLine(); err != nil {
			return err
		}
	}
	return tsvw.Flush()
}

// ReadBEDFromPath is a wrapper for ReadBED that takes a path instead of an
// io.Reader, transparently decompressing gzipped files.
func ReadBEDFromPath(path string) (entries []Entry, err error) {
	ctx := vcontext.Background()
	var infile file.File
	if infile, err = file.Open(ctx, path); err != nil {
		return
	}
	defer func() {
		if cerr := infile.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()
	reader := io.Reader(infile.Reader(ctx))
	switch fileio.DetermineType(path) {
	case fileio.Gzip:
		if reader, err = gzip.NewReader(reader); err != nil {
			return
		}
	}
	return ReadBED(reader)
}
