package fifolog

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/calvinalkan/fifolog/pkg/fs"
)

// candidate is a possible record start located by the backward scan.
type candidate struct {
	// start is the file offset of the record's first byte.
	start int64

	// first is the record's first byte, valid only when hasFirst is set.
	// When it is visible inside the scanned window the tombstone sentinel
	// can be tested without another read.
	first    byte
	hasFirst bool
}

// candidateAt inspects index i of a window whose first byte sits at file
// offset base and reports the record-start candidate it implies, if any.
//
// A delimiter implies a record starting at the following byte; when that
// byte lies inside the same window its value is captured. A delimiter at
// the window's last byte leaves the first byte unknown (it sits in the
// already-scanned region, or the delimiter is the file's own trailing one).
// A window containing file offset zero implies a record starting there
// (the file-start prefix case).
//
// Pure function: boundary handling is testable without I/O.
func candidateAt(buf []byte, i int, base int64) (candidate, bool) {
	switch {
	case buf[i] == delim:
		if i == len(buf)-1 {
			return candidate{start: base + int64(i) + 1}, true
		}

		return candidate{start: base + int64(i) + 1, first: buf[i+1], hasFirst: true}, true

	case i == 0 && base == 0:
		return candidate{start: 0, first: buf[0], hasFirst: true}, true
	}

	return candidate{}, false
}

// Phases of the backward scan.
type scanPhase int

const (
	// phaseSeeking: stepping one window back and reading it.
	phaseSeeking scanPhase = iota
	// phaseScanning: walking the current window right-to-left.
	phaseScanning
	// phaseDone: offset zero reached or the scan failed.
	phaseDone
)

// backwardScan walks a file from its end toward offset zero in fixed-size
// windows, emitting candidate record starts in reverse file order. It never
// holds more than one window in memory.
type backwardScan struct {
	f      fs.File
	window int

	phase scanPhase
	pos   int64 // file offset of the current window's first byte
	buf   []byte
	i     int // next window index to examine, moving right-to-left

	cand    candidate
	scanErr error
}

// newBackwardScan positions a scan at end-of-file (size bytes).
func newBackwardScan(f fs.File, size int64, window int) *backwardScan {
	return &backwardScan{f: f, window: window, pos: size, phase: phaseSeeking}
}

// next advances to the next candidate, latest-in-file first.
// Returns false when the file is exhausted or the scan failed.
func (b *backwardScan) next() bool {
	for {
		switch b.phase {
		case phaseSeeking:
			if b.pos == 0 {
				b.phase = phaseDone

				return false
			}

			readSize := int64(b.window)
			if readSize > b.pos {
				readSize = b.pos
			}

			b.pos -= readSize

			if _, err := b.f.Seek(b.pos, io.SeekStart); err != nil {
				b.scanErr = err
				b.phase = phaseDone

				return false
			}

			if int64(cap(b.buf)) < readSize {
				b.buf = make([]byte, readSize)
			}

			b.buf = b.buf[:readSize]

			if _, err := io.ReadFull(b.f, b.buf); err != nil {
				b.scanErr = err
				b.phase = phaseDone

				return false
			}

			b.i = len(b.buf) - 1
			b.phase = phaseScanning

		case phaseScanning:
			for ; b.i >= 0; b.i-- {
				cand, ok := candidateAt(b.buf, b.i, b.pos)
				if ok {
					b.cand = cand
					b.i--

					return true
				}
			}

			b.phase = phaseSeeking

		case phaseDone:
			return false
		}
	}
}

// candidate returns the candidate found by the last successful next.
func (b *backwardScan) candidate() candidate {
	return b.cand
}

// err returns the first error encountered, if any.
func (b *backwardScan) err() error {
	return b.scanErr
}

// GetLast returns the payload of the highest-index live record.
//
// The file is scanned backward in fixed windows of [Options.WindowSize]
// bytes; trailing tombstoned records are skipped transparently. Returns
// [ErrEmpty] when the store has no live records.
func (s *Store) GetLast() (string, error) {
	if s.closed {
		return "", ErrClosed
	}

	if s.size == 0 {
		return "", ErrEmpty
	}

	f, err := s.fsys.Open(s.opts.Path)
	if err != nil {
		return "", fmt.Errorf("opening store file: %w", err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("reading store file size: %w", err)
	}

	fileSize := info.Size()

	scan := newBackwardScan(f, fileSize, s.opts.WindowSize)
	for scan.next() {
		cand := scan.candidate()

		// The file's own trailing delimiter implies no record after it.
		if cand.start >= fileSize {
			continue
		}

		// Sentinel visible in-window: skip without another read.
		if cand.hasFirst && cand.first == s.opts.Tombstone {
			continue
		}

		line, err := readLineAt(f, cand.start, s.opts.ReadBufferSize)
		if err != nil {
			return "", fmt.Errorf("reading record at offset %d: %w", cand.start, err)
		}

		if len(line) > 0 && line[0] != s.opts.Tombstone {
			return strings.TrimSpace(string(line)), nil
		}
	}

	if err := scan.err(); err != nil {
		return "", fmt.Errorf("scanning store file backward: %w", err)
	}

	// size > 0 but no live record on disk: the store diverged from its
	// cached count, which the invariant rules out.
	return "", ErrEmpty
}

// readLineAt reads one delimiter-terminated line starting at offset.
// The delimiter is stripped; a record at EOF without one is returned as-is.
// The file's position is left unspecified.
func readLineAt(f fs.File, offset int64, bufSize int) ([]byte, error) {
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, err
	}

	r := bufio.NewReaderSize(f, bufSize)

	line, err := r.ReadBytes(delim)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	if len(line) > 0 && line[len(line)-1] == delim {
		line = line[:len(line)-1]
	}

	return line, nil
}
