package fifolog

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/calvinalkan/fifolog/pkg/fs"
)

const filePerms = 0o644

// Store is a single-file FIFO record store.
//
// One record per line; deleted records are tombstoned in place and later
// purged by compaction. The live-record count is cached: recomputed by one
// full forward scan at [Open], maintained incrementally afterwards, so
// [Store.Size] and [Store.IsEmpty] never touch the file.
//
// Store methods are NOT safe for concurrent use.
type Store struct {
	opts   Options
	fsys   fs.FS
	size   int
	lock   fs.Locker
	closed bool
}

// Open opens or creates a store file at opts.Path.
//
// If the file does not exist it is created empty. The live-record count is
// computed by a full forward scan.
//
// The returned Store must be closed with [Store.Close] when no longer
// needed.
//
// Possible errors:
//   - [ErrInvalidInput]: invalid options
//   - [ErrBusy]: another store holds the advisory lock on the path
//   - wrapped fs errors: the medium cannot be opened or scanned
func Open(opts Options) (*Store, error) {
	opts = opts.withDefaults()

	if err := opts.validate(); err != nil {
		return nil, err
	}

	s := &Store{opts: opts, fsys: opts.FS}

	if !opts.DisableLocking {
		lock, err := s.fsys.Lock(opts.Path + ".lock")
		if err != nil {
			if errors.Is(err, fs.ErrLocked) {
				return nil, fmt.Errorf("%w: %s", ErrBusy, opts.Path)
			}

			return nil, fmt.Errorf("locking store file: %w", err)
		}

		s.lock = lock
	}

	if err := s.ensureFile(); err != nil {
		s.releaseLock()

		return nil, err
	}

	size, err := s.countLive()
	if err != nil {
		s.releaseLock()

		return nil, err
	}

	s.size = size

	return s, nil
}

// Close releases the advisory lock. The Store is unusable afterwards.
func (s *Store) Close() error {
	if s.closed {
		return ErrClosed
	}

	s.closed = true
	s.releaseLock()

	return nil
}

// Path returns the store file's path.
func (s *Store) Path() string {
	return s.opts.Path
}

// Size returns the cached count of live records. O(1), no file access.
func (s *Store) Size() int {
	return s.size
}

// IsEmpty reports whether the store has no live records. O(1).
func (s *Store) IsEmpty() bool {
	return s.size == 0
}

// Push appends one record at the end of the file.
//
// The payload must be non-empty, free of the line delimiter, and must not
// begin with the tombstone sentinel; otherwise [ErrInvalidRecord] is
// returned. The cached size is incremented only when the write committed.
func (s *Store) Push(payload string) error {
	if s.closed {
		return ErrClosed
	}

	if err := s.checkPayload(payload); err != nil {
		return err
	}

	f, err := s.fsys.OpenFile(s.opts.Path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, filePerms)
	if err != nil {
		return fmt.Errorf("opening store file for append: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(append([]byte(payload), delim)); err != nil {
		return fmt.Errorf("appending record: %w", err)
	}

	s.size++

	return nil
}

// Get returns the payload of the index-th live record (zero-based).
// Returns [ErrNotFound] when index is out of bounds.
func (s *Store) Get(index int) (string, error) {
	if s.closed {
		return "", ErrClosed
	}

	if index < 0 || index >= s.size {
		return "", ErrNotFound
	}

	line, _, err := s.findLive(index)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(string(line)), nil
}

// GetFirst returns the payloads of the first n live records, in order.
//
// At most min(n, Size) records are returned; an empty store yields an empty
// result. When [Options.Validate] is set and any collected record fails it,
// the whole result is discarded and [ErrCorrupt] returned (all-or-nothing).
func (s *Store) GetFirst(n int) ([]string, error) {
	if s.closed {
		return nil, ErrClosed
	}

	if n > s.size {
		n = s.size
	}

	if n <= 0 {
		return nil, nil
	}

	f, err := s.fsys.Open(s.opts.Path)
	if err != nil {
		return nil, fmt.Errorf("opening store file: %w", err)
	}
	defer func() { _ = f.Close() }()

	out := make([]string, 0, n)

	sc := newLineScanner(f, s.opts.ReadBufferSize)
	for len(out) < n && sc.scan() {
		line := sc.line()
		if !s.live(line) {
			continue
		}

		payload := strings.TrimSpace(string(line))

		if s.opts.Validate != nil {
			if err := s.opts.Validate(payload); err != nil {
				return nil, fmt.Errorf("record %d failed validation: %v: %w", len(out), err, ErrCorrupt)
			}
		}

		out = append(out, payload)
	}

	if err := sc.err(); err != nil {
		return nil, fmt.Errorf("scanning store file: %w", err)
	}

	return out, nil
}

// Remove tombstones the index-th live record in place.
//
// The record's first byte is overwritten with the sentinel; its length and
// offset are unchanged. Returns the pre-tombstone payload, or [ErrNotFound]
// when index is out of bounds. When the fragmentation ratio reaches
// [Options.CompactThreshold] afterwards, the file is compacted.
func (s *Store) Remove(index int) (string, error) {
	if s.closed {
		return "", ErrClosed
	}

	if index < 0 || index >= s.size {
		return "", ErrNotFound
	}

	line, offset, err := s.findLive(index)
	if err != nil {
		return "", err
	}

	if _, err := s.tombstone([]int64{offset}); err != nil {
		return "", err
	}

	s.size--
	s.autoCompact()

	return strings.TrimSpace(string(line)), nil
}

// RemoveFirst tombstones up to n records from the front of the store.
//
// One forward pass collects the offsets of min(n, Size) live records, a
// second pass tombstones them. Returns the count actually tombstoned, which
// may be less than requested. Auto-compacts like [Store.Remove].
func (s *Store) RemoveFirst(n int) (int, error) {
	if s.closed {
		return 0, ErrClosed
	}

	if n > s.size {
		n = s.size
	}

	if n <= 0 {
		return 0, nil
	}

	offsets, err := s.liveOffsets(n)
	if err != nil {
		return 0, err
	}

	removed, err := s.tombstone(offsets)
	s.size -= removed

	if err != nil {
		return removed, err
	}

	s.autoCompact()

	return removed, nil
}

// Clear deletes and recreates the store file empty.
//
// The cached size is reset as soon as the file is gone so no operation on
// this handle can observe an intermediate state.
func (s *Store) Clear() error {
	if s.closed {
		return ErrClosed
	}

	if err := s.fsys.Remove(s.opts.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clearing store file: %w", err)
	}

	s.size = 0

	f, err := s.fsys.Create(s.opts.Path)
	if err != nil {
		return fmt.Errorf("recreating store file: %w", err)
	}

	return f.Close()
}

// Stats is an aggregate read-only snapshot of the store.
type Stats struct {
	// Size is the count of live records.
	Size int `json:"size"`

	// Fragmentation is the fraction of file bytes held by tombstoned
	// records, in [0, 1].
	Fragmentation float64 `json:"fragmentation"`

	// FileSize is the total file size in bytes.
	FileSize int64 `json:"fileSize"`
}

// Stats returns the store's current statistics.
func (s *Store) Stats() (Stats, error) {
	if s.closed {
		return Stats{}, ErrClosed
	}

	ratio, err := s.FragmentationRatio()
	if err != nil {
		return Stats{}, err
	}

	info, err := s.fsys.Stat(s.opts.Path)
	if err != nil {
		return Stats{}, fmt.Errorf("reading store file size: %w", err)
	}

	return Stats{Size: s.size, Fragmentation: ratio, FileSize: info.Size()}, nil
}

// FragmentationRatio returns the fraction of total file bytes NOT occupied
// by live records: (fileBytes - liveBytes) / fileBytes, where liveBytes
// sums len(line)+1 over live lines. An empty file has ratio 0.
func (s *Store) FragmentationRatio() (float64, error) {
	if s.closed {
		return 0, ErrClosed
	}

	f, err := s.fsys.Open(s.opts.Path)
	if err != nil {
		return 0, fmt.Errorf("opening store file: %w", err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("reading store file size: %w", err)
	}

	fileSize := info.Size()
	if fileSize == 0 {
		return 0, nil
	}

	var liveBytes int64

	sc := newLineScanner(f, s.opts.ReadBufferSize)
	for sc.scan() {
		if s.live(sc.line()) {
			liveBytes += int64(len(sc.line())) + 1
		}
	}

	if err := sc.err(); err != nil {
		return 0, fmt.Errorf("scanning store file: %w", err)
	}

	return float64(fileSize-liveBytes) / float64(fileSize), nil
}

// ShouldDefragment reports whether the fragmentation ratio is at or above
// threshold.
func (s *Store) ShouldDefragment(threshold float64) (bool, error) {
	ratio, err := s.FragmentationRatio()
	if err != nil {
		return false, err
	}

	return ratio >= threshold, nil
}

// --- Internals ---

// live reports whether a raw line is a live record: non-empty and not
// starting with the tombstone sentinel.
func (s *Store) live(line []byte) bool {
	return len(line) > 0 && line[0] != s.opts.Tombstone
}

func (s *Store) checkPayload(payload string) error {
	if payload == "" {
		return fmt.Errorf("empty payload: %w", ErrInvalidRecord)
	}

	if strings.IndexByte(payload, delim) >= 0 {
		return fmt.Errorf("payload contains the line delimiter: %w", ErrInvalidRecord)
	}

	if payload[0] == s.opts.Tombstone {
		return fmt.Errorf("payload starts with the tombstone sentinel: %w", ErrInvalidRecord)
	}

	return nil
}

// ensureFile creates the store file empty if it does not exist.
func (s *Store) ensureFile() error {
	exists, err := s.fsys.Exists(s.opts.Path)
	if err != nil {
		return fmt.Errorf("checking store file: %w", err)
	}

	if exists {
		return nil
	}

	f, err := s.fsys.Create(s.opts.Path)
	if err != nil {
		return fmt.Errorf("creating store file: %w", err)
	}

	return f.Close()
}

// countLive scans the whole file counting live lines.
func (s *Store) countLive() (int, error) {
	f, err := s.fsys.Open(s.opts.Path)
	if err != nil {
		return 0, fmt.Errorf("opening store file: %w", err)
	}
	defer func() { _ = f.Close() }()

	count := 0

	sc := newLineScanner(f, s.opts.ReadBufferSize)
	for sc.scan() {
		if s.live(sc.line()) {
			count++
		}
	}

	if err := sc.err(); err != nil {
		return 0, fmt.Errorf("scanning store file: %w", err)
	}

	return count, nil
}

// findLive forward-scans to the index-th live record, returning its raw
// line and the cursor offset of its first byte. The offset is valid only
// until the next compaction.
func (s *Store) findLive(index int) ([]byte, int64, error) {
	f, err := s.fsys.Open(s.opts.Path)
	if err != nil {
		return nil, 0, fmt.Errorf("opening store file: %w", err)
	}
	defer func() { _ = f.Close() }()

	count := 0

	sc := newLineScanner(f, s.opts.ReadBufferSize)
	for sc.scan() {
		if !s.live(sc.line()) {
			continue
		}

		if count == index {
			line := make([]byte, len(sc.line()))
			copy(line, sc.line())

			return line, sc.offset(), nil
		}

		count++
	}

	if err := sc.err(); err != nil {
		return nil, 0, fmt.Errorf("scanning store file: %w", err)
	}

	// Cached size said the index exists; the file disagrees.
	return nil, 0, ErrNotFound
}

// liveOffsets collects the cursor offsets of the first n live records.
func (s *Store) liveOffsets(n int) ([]int64, error) {
	f, err := s.fsys.Open(s.opts.Path)
	if err != nil {
		return nil, fmt.Errorf("opening store file: %w", err)
	}
	defer func() { _ = f.Close() }()

	offsets := make([]int64, 0, n)

	sc := newLineScanner(f, s.opts.ReadBufferSize)
	for len(offsets) < n && sc.scan() {
		if s.live(sc.line()) {
			offsets = append(offsets, sc.offset())
		}
	}

	if err := sc.err(); err != nil {
		return nil, fmt.Errorf("scanning store file: %w", err)
	}

	return offsets, nil
}

// tombstone overwrites the first byte of each record at the given offsets
// with the sentinel, in place. Returns how many records were marked before
// any failure.
func (s *Store) tombstone(offsets []int64) (int, error) {
	f, err := s.fsys.OpenFile(s.opts.Path, os.O_WRONLY, filePerms)
	if err != nil {
		return 0, fmt.Errorf("opening store file for writing: %w", err)
	}
	defer func() { _ = f.Close() }()

	marked := 0

	for _, offset := range offsets {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			return marked, fmt.Errorf("seeking to record at offset %d: %w", offset, err)
		}

		if _, err := f.Write([]byte{s.opts.Tombstone}); err != nil {
			return marked, fmt.Errorf("tombstoning record at offset %d: %w", offset, err)
		}

		marked++
	}

	if err := f.Sync(); err != nil {
		return marked, fmt.Errorf("syncing store file: %w", err)
	}

	return marked, nil
}

// autoCompact compacts the file when fragmentation reached the configured
// threshold. A compaction failure is not surfaced: the removal that
// triggered it already committed, the file stays intact, and fragmentation
// simply remains elevated until a later attempt.
func (s *Store) autoCompact() {
	should, err := s.ShouldDefragment(s.opts.CompactThreshold)
	if err != nil || !should {
		return
	}

	_ = s.Defragment()
}

func (s *Store) releaseLock() {
	if s.lock != nil {
		_ = s.lock.Close()
		s.lock = nil
	}
}
