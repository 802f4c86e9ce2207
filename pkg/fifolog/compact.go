package fifolog

import (
	"bufio"
	"fmt"

	"github.com/calvinalkan/fifolog/pkg/fs"
)

// Defragment rewrites the store file keeping only live records, then swaps
// the rewrite into place and recomputes the cached size from the number of
// lines copied.
//
// The rewrite goes to Path+".tmp"; the swap is a remove of the original
// followed by a rename of the temp file. These are two distinct calls, no
// atomic swap primitive is assumed of the medium. An empty file is a no-op
// success.
//
// Any cursor captured before compaction is invalid afterwards.
//
// On failure [ErrCompaction] is returned wrapping the cause and the
// original file is left fully intact, with one exception: when the remove
// step succeeded and the rename then failed, the temp file is kept at
// Path+".tmp" as the only surviving copy of the live records.
func (s *Store) Defragment() error {
	if s.closed {
		return ErrClosed
	}

	src, err := s.fsys.Open(s.opts.Path)
	if err != nil {
		return fmt.Errorf("%w: opening source: %w", ErrCompaction, err)
	}
	defer func() { _ = src.Close() }()

	info, err := src.Stat()
	if err != nil {
		return fmt.Errorf("%w: reading source size: %w", ErrCompaction, err)
	}

	if info.Size() == 0 {
		return nil
	}

	tmpPath := s.opts.Path + ".tmp"

	tmp, err := s.fsys.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("%w: creating temp file: %w", ErrCompaction, err)
	}

	copied, err := s.copyLive(src, tmp)
	if err != nil {
		_ = tmp.Close()
		_ = s.fsys.Remove(tmpPath)

		return fmt.Errorf("%w: %w", ErrCompaction, err)
	}

	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = s.fsys.Remove(tmpPath)

		return fmt.Errorf("%w: syncing temp file: %w", ErrCompaction, err)
	}

	if err := tmp.Close(); err != nil {
		_ = s.fsys.Remove(tmpPath)

		return fmt.Errorf("%w: closing temp file: %w", ErrCompaction, err)
	}

	_ = src.Close()

	if err := s.fsys.Remove(s.opts.Path); err != nil {
		_ = s.fsys.Remove(tmpPath)

		return fmt.Errorf("%w: removing original: %w", ErrCompaction, err)
	}

	if err := s.fsys.Rename(tmpPath, s.opts.Path); err != nil {
		// The original is already gone. The temp file is the only copy of
		// the live records now, so it stays for recovery.
		return fmt.Errorf("%w: renaming temp file: %w", ErrCompaction, err)
	}

	s.size = copied

	return nil
}

// copyLive streams live lines from src to dst, re-terminating each with the
// delimiter, and returns how many were copied.
func (s *Store) copyLive(src fs.File, dst fs.File) (int, error) {
	w := bufio.NewWriterSize(dst, s.opts.ReadBufferSize)
	copied := 0

	sc := newLineScanner(src, s.opts.ReadBufferSize)
	for sc.scan() {
		line := sc.line()
		if !s.live(line) {
			continue
		}

		if _, err := w.Write(line); err != nil {
			return 0, fmt.Errorf("writing to temp file: %w", err)
		}

		if err := w.WriteByte(delim); err != nil {
			return 0, fmt.Errorf("writing to temp file: %w", err)
		}

		copied++
	}

	if err := sc.err(); err != nil {
		return 0, fmt.Errorf("scanning source: %w", err)
	}

	if err := w.Flush(); err != nil {
		return 0, fmt.Errorf("flushing temp file: %w", err)
	}

	return copied, nil
}
