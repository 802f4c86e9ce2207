package fifolog

import (
	"bufio"
	"errors"
	"io"
)

// lineScanner walks delimiter-terminated lines forward from the reader's
// current position, tracking the byte offset at which each line starts.
//
// The sequence is finite, lazy, and non-restartable: once exhausted (or
// failed) a new scanner over a fresh reader is needed to scan again. Reads
// go through a fixed-size read-ahead buffer so sequential scans touch the
// medium in few, large requests.
//
// Usage:
//
//	sc := newLineScanner(f, bufSize)
//	for sc.scan() {
//	    _ = sc.line()   // raw bytes, delimiter stripped
//	    _ = sc.offset() // file offset of the line's first byte
//	}
//	if err := sc.err(); err != nil { ... }
type lineScanner struct {
	r       *bufio.Reader
	cur     []byte
	off     int64 // offset of cur's first byte
	nextOff int64 // offset one past cur's delimiter
	scanErr error
	done    bool
}

func newLineScanner(r io.Reader, bufSize int) *lineScanner {
	return &lineScanner{r: bufio.NewReaderSize(r, bufSize)}
}

// scan advances to the next line. It returns false at end of input or on
// error; the two are distinguished by err.
func (s *lineScanner) scan() bool {
	if s.done {
		return false
	}

	raw, readErr := s.r.ReadBytes(delim)
	if len(raw) == 0 {
		s.done = true

		if readErr != nil && !errors.Is(readErr, io.EOF) {
			s.scanErr = readErr
		}

		return false
	}

	s.off = s.nextOff
	s.nextOff += int64(len(raw))

	if raw[len(raw)-1] == delim {
		raw = raw[:len(raw)-1]
	}

	s.cur = raw

	if readErr != nil {
		// A final unterminated line is still yielded; anything else kills
		// the scan after this line.
		s.done = true

		if !errors.Is(readErr, io.EOF) {
			s.scanErr = readErr

			return false
		}
	}

	return true
}

// line returns the current line without its delimiter.
// Valid only until the next call to scan.
func (s *lineScanner) line() []byte {
	return s.cur
}

// offset returns the file offset of the current line's first byte.
func (s *lineScanner) offset() int64 {
	return s.off
}

// err returns the first error encountered, if any. io.EOF is not an error.
func (s *lineScanner) err() error {
	return s.scanErr
}
