// Package fifolog provides a single-file, append-biased FIFO record store.
//
// Records are opaque single-line strings framed by the newline delimiter.
// Deletion is logical: the record's first byte is overwritten with a
// tombstone sentinel, leaving its length unchanged. Space held by
// tombstoned records is reclaimed by compaction, which rewrites the file
// with only live records and swaps it into place.
//
// The store is designed for memory-constrained targets: no operation loads
// the whole file. Forward scans use a small fixed read-ahead buffer and the
// last live record is located by a fixed-window backward scan from the end
// of the file.
//
// # Basic Usage
//
//	store, err := fifolog.Open(fifolog.Options{Path: "/var/lib/queue.log"})
//	if err != nil {
//	    // handle [ErrBusy] by closing the other owner
//	}
//	defer store.Close()
//
//	_ = store.Push(`{"seq":1}`)
//	last, _ := store.GetLast()
//	first, _ := store.Remove(0)
//
// # Concurrency
//
// A Store assumes exactly one logical thread of control at a time. It
// performs no internal locking; serializing access is the caller's
// obligation. Opening the same path twice is rejected with [ErrBusy] via an
// advisory file lock unless [Options.DisableLocking] is set.
//
// # Error Handling
//
// Every operation is fallible and reports failure through an explicit
// return; no failure is fatal to the store's continued use. A failed
// [Store.Defragment] leaves the pre-compaction file fully intact.
package fifolog
