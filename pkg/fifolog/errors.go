package fifolog

import "errors"

// Sentinel errors returned by store operations.
//
// Callers should use [errors.Is] to check error types:
//
//	if errors.Is(err, fifolog.ErrNotFound) {
//	    // index past the end of the store
//	}
var (
	// ErrEmpty indicates an operation that needs at least one live record
	// was called on an empty store.
	ErrEmpty = errors.New("fifolog: empty")

	// ErrNotFound indicates the requested index is >= the live-record count.
	ErrNotFound = errors.New("fifolog: not found")

	// ErrInvalidRecord indicates a payload that cannot be framed: it is
	// empty, contains the line delimiter, or begins with the tombstone
	// sentinel.
	//
	// This is a programming error in the caller's payload encoding.
	ErrInvalidRecord = errors.New("fifolog: invalid record")

	// ErrCorrupt indicates a scanned record failed payload validation.
	//
	// Returned by [Store.GetFirst] when any collected record is rejected by
	// [Options.Validate]; the whole result is discarded.
	ErrCorrupt = errors.New("fifolog: corrupt")

	// ErrCompaction indicates a temp-file or swap failure during
	// [Store.Defragment]. The pre-compaction file is left intact unless the
	// wrapped cause came from the final rename step.
	//
	// Recovery: retry later; fragmentation simply remains elevated.
	ErrCompaction = errors.New("fifolog: compaction failed")

	// ErrBusy indicates another store holds the advisory lock on the path.
	//
	// Recovery: close the other owner, or open with
	// [Options.DisableLocking] and provide external synchronization.
	ErrBusy = errors.New("fifolog: busy")

	// ErrClosed indicates the [Store] has already been closed.
	//
	// This is a programming error.
	ErrClosed = errors.New("fifolog: closed")

	// ErrInvalidInput indicates invalid [Options] were provided to [Open].
	ErrInvalidInput = errors.New("fifolog: invalid input")
)
