package fifolog

import (
	"fmt"

	"github.com/calvinalkan/fifolog/pkg/fs"
)

// Defaults applied by [Open] when the corresponding option is zero.
const (
	// DefaultWindowSize is the backward-scan window in bytes.
	DefaultWindowSize = 512

	// DefaultReadBufferSize is the forward read-ahead buffer in bytes.
	DefaultReadBufferSize = 64

	// DefaultTombstone is the sentinel byte marking a deleted record.
	DefaultTombstone = '$'

	// DefaultCompactThreshold is the fragmentation ratio at or above which
	// a removal triggers automatic compaction.
	DefaultCompactThreshold = 0.6
)

// delim is the record framing byte. One record per line, always terminated.
const delim = '\n'

// Options configures opening or creating a store file.
type Options struct {
	// Path is the filesystem path to the store file.
	//
	// Required. A lock file is also created at Path+".lock" unless
	// DisableLocking is set, and compaction uses Path+".tmp".
	Path string

	// FS is the filesystem the store operates on.
	//
	// Defaults to [fs.NewReal]. Tests inject [fs.Mem] here.
	FS fs.FS

	// WindowSize is the fixed window, in bytes, used by the backward scan
	// that serves [Store.GetLast].
	//
	// Defaults to [DefaultWindowSize]. Must be >= 1.
	WindowSize int

	// ReadBufferSize is the read-ahead buffer, in bytes, used by every
	// forward scan.
	//
	// Defaults to [DefaultReadBufferSize]. Must be >= 1.
	ReadBufferSize int

	// Tombstone is the sentinel byte that marks a record as deleted.
	//
	// Defaults to [DefaultTombstone]. Must not be the line delimiter.
	Tombstone byte

	// CompactThreshold is the fragmentation ratio at or above which
	// [Store.Remove] and [Store.RemoveFirst] compact the file.
	//
	// Defaults to [DefaultCompactThreshold]. Must be in (0, 1].
	CompactThreshold float64

	// Validate, when set, checks a record's payload against the caller's
	// codec. It is consulted by [Store.GetFirst]: if any collected record
	// fails validation the whole result is discarded and [ErrCorrupt]
	// returned.
	Validate func(payload string) error

	// DisableLocking disables the advisory file lock.
	//
	// When true, no lock file is used. The caller MUST guarantee no other
	// store handle operates on the same path.
	DisableLocking bool
}

// withDefaults returns a copy of o with zero values replaced by defaults.
func (o Options) withDefaults() Options {
	if o.FS == nil {
		o.FS = fs.NewReal()
	}

	if o.WindowSize == 0 {
		o.WindowSize = DefaultWindowSize
	}

	if o.ReadBufferSize == 0 {
		o.ReadBufferSize = DefaultReadBufferSize
	}

	if o.Tombstone == 0 {
		o.Tombstone = DefaultTombstone
	}

	if o.CompactThreshold == 0 {
		o.CompactThreshold = DefaultCompactThreshold
	}

	return o
}

// validate checks option invariants after defaults are applied.
func (o Options) validate() error {
	if o.Path == "" {
		return fmt.Errorf("path is required: %w", ErrInvalidInput)
	}

	if o.WindowSize < 1 {
		return fmt.Errorf("window size must be >= 1: %w", ErrInvalidInput)
	}

	if o.ReadBufferSize < 1 {
		return fmt.Errorf("read buffer size must be >= 1: %w", ErrInvalidInput)
	}

	if o.Tombstone == delim {
		return fmt.Errorf("tombstone cannot be the line delimiter: %w", ErrInvalidInput)
	}

	if o.CompactThreshold <= 0 || o.CompactThreshold > 1 {
		return fmt.Errorf("compact threshold must be in (0, 1]: %w", ErrInvalidInput)
	}

	return nil
}
