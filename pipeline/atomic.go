package pipeline

import (
	"bufio"
	"io/ioutil"
	"os"
	"path/filepath"
)

// Atomic is a buffered file writer with visibility-on-success discipline:
// content goes to a temporary file in the destination directory and only an
// explicit Commit renames it into place.  A task that fails part-way leaves
// no visible output, so its consumers can never mistake a truncated file for
// a complete one.
type Atomic struct {
	path string
	tmp  *os.File
	w    *bufio.Writer
	done bool
}

// CreateAtomic starts an atomic write of path.
func CreateAtomic(path string) (*Atomic, error) {
	tmp, err := ioutil.TempFile(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return nil, err
	}
	return &Atomic{path: path, tmp: tmp, w: bufio.NewWriter(tmp)}, nil
}

// Write implements io.Writer.
func (a *Atomic) Write(p []byte) (int, error) { return a.w.Write(p) }

// Commit flushes, closes, and renames the temporary file into place.
func (a *Atomic) Commit() error {
	a.done = true
	if err := a.w.Flush(); err != nil {
		a.tmp.Close() // nolint: errcheck
		os.Remove(a.tmp.Name())
		return err
	}
	if err := a.tmp.Close(); err != nil {
		os.Remove(a.tmp.Name())
		return err
	}
	return os.Rename(a.tmp.Name(), a.path)
}

// Abort discards the write.  Calling Abort after Commit is a no-op, so it is
// safe to defer unconditionally.
func (a *Atomic) Abort() {
	if a.done {
		return
	}
	a.done = true
	a.tmp.Close() // nolint: errcheck
	os.Remove(a.tmp.Name())
}
