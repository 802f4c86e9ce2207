package fifolog_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/calvinalkan/fifolog/pkg/fifolog"
	"github.com/calvinalkan/fifolog/pkg/fs"
)

const tmpPath = testPath + ".tmp"

func TestDefragmentDropsTombstones(t *testing.T) {
	t.Parallel()

	store, mem := newTestStore(t, fifolog.Options{CompactThreshold: 1})
	mustPush(t, store, "a", "b", "c", "d")

	if _, err := store.Remove(1); err != nil {
		t.Fatalf("Remove(1): %v", err)
	}

	if _, err := store.Remove(2); err != nil {
		t.Fatalf("Remove(2): %v", err)
	}

	ratio, err := store.FragmentationRatio()
	if err != nil || ratio <= 0 {
		t.Fatalf("pre-compaction ratio = %v, %v, want > 0", ratio, err)
	}

	// Observable content before and after must be identical.
	before, err := store.GetFirst(store.Size())
	if err != nil {
		t.Fatalf("GetFirst before: %v", err)
	}

	if err := store.Defragment(); err != nil {
		t.Fatalf("Defragment: %v", err)
	}

	after, err := store.GetFirst(store.Size())
	if err != nil {
		t.Fatalf("GetFirst after: %v", err)
	}

	if diff := cmp.Diff(before, after); diff != "" {
		t.Errorf("content changed by compaction (-before +after):\n%s", diff)
	}

	ratio, err = store.FragmentationRatio()
	if err != nil || ratio != 0 {
		t.Errorf("post-compaction ratio = %v, %v, want 0", ratio, err)
	}

	data, _ := mem.Contents(testPath)
	if string(data) != "a\nc\n" {
		t.Errorf("file after compaction = %q, want \"a\\nc\\n\"", data)
	}

	if _, ok := mem.Contents(tmpPath); ok {
		t.Error("temp file left behind after compaction")
	}
}

func TestDefragmentEmptyFileIsNoOp(t *testing.T) {
	t.Parallel()

	store, mem := newTestStore(t, fifolog.Options{})

	if err := store.Defragment(); err != nil {
		t.Fatalf("Defragment on empty store: %v", err)
	}

	if _, ok := mem.Contents(tmpPath); ok {
		t.Error("temp file created for empty source")
	}
}

func TestDefragmentPreservesGetByIndex(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t, fifolog.Options{CompactThreshold: 1})

	for i := 0; i < 6; i++ {
		mustPush(t, store, fmt.Sprintf("rec-%d", i))
	}

	// Remove logical indices 1 and 3 (re-indexed after the first removal).
	if _, err := store.Remove(1); err != nil {
		t.Fatalf("Remove(1): %v", err)
	}

	if _, err := store.Remove(3); err != nil {
		t.Fatalf("Remove(3): %v", err)
	}

	wantAt2, err := store.Get(2)
	if err != nil {
		t.Fatalf("Get(2) before: %v", err)
	}

	if err := store.Defragment(); err != nil {
		t.Fatalf("Defragment: %v", err)
	}

	gotAt2, err := store.Get(2)
	if err != nil {
		t.Fatalf("Get(2) after: %v", err)
	}

	if gotAt2 != wantAt2 {
		t.Errorf("Get(2) = %q after compaction, was %q before", gotAt2, wantAt2)
	}
}

// defragFaultCase injects one failure into the compaction pipeline and
// expects the original file to survive untouched.
type defragFaultCase struct {
	name string
	op   string
	path string
}

func TestDefragmentFailureModes(t *testing.T) {
	t.Parallel()

	tests := []defragFaultCase{
		{"temp file cannot be created", "create", tmpPath},
		{"write to temp fails mid copy", "write", tmpPath},
		{"temp sync fails", "sync", tmpPath},
		{"removing the original fails", "remove", testPath},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			store, mem := newTestStore(t, fifolog.Options{CompactThreshold: 1})
			mustPush(t, store, "a", "b", "c")

			if _, err := store.Remove(1); err != nil {
				t.Fatalf("Remove(1): %v", err)
			}

			original, _ := mem.Contents(testPath)

			mem.Fail = func(op, path string) error {
				if op == testCase.op && path == testCase.path {
					return errors.New("injected fault")
				}

				return nil
			}

			err := store.Defragment()
			if !errors.Is(err, fifolog.ErrCompaction) {
				t.Fatalf("Defragment error = %v, want ErrCompaction", err)
			}

			if !fs.IsInjected(err) {
				t.Errorf("Defragment error %v does not wrap the injected fault", err)
			}

			mem.Fail = nil

			// Original intact, temp discarded, store still usable.
			data, ok := mem.Contents(testPath)
			if !ok || string(data) != string(original) {
				t.Errorf("original file = %q, %v, want untouched %q", data, ok, original)
			}

			if _, ok := mem.Contents(tmpPath); ok {
				t.Error("temp file left behind after failed compaction")
			}

			if got := store.Size(); got != 2 {
				t.Errorf("Size after failed compaction = %d, want 2", got)
			}

			last, err := store.GetLast()
			if err != nil || last != "c" {
				t.Errorf("GetLast after failed compaction = %q, %v, want \"c\"", last, err)
			}
		})
	}
}

func TestDefragmentRenameFailureKeepsTempForRecovery(t *testing.T) {
	t.Parallel()

	store, mem := newTestStore(t, fifolog.Options{CompactThreshold: 1})
	mustPush(t, store, "a", "b")

	if _, err := store.Remove(0); err != nil {
		t.Fatalf("Remove(0): %v", err)
	}

	mem.Fail = func(op, path string) error {
		if op == "rename" {
			return errors.New("injected fault")
		}

		return nil
	}

	err := store.Defragment()
	if !errors.Is(err, fifolog.ErrCompaction) {
		t.Fatalf("Defragment error = %v, want ErrCompaction", err)
	}

	mem.Fail = nil

	// The original was already removed, so the temp file is the only copy
	// of the live records and must survive.
	data, ok := mem.Contents(tmpPath)
	if !ok || string(data) != "b\n" {
		t.Errorf("temp file after failed rename = %q, %v, want \"b\\n\"", data, ok)
	}
}

func TestDefragmentInvalidatesNothingWhenCleanStore(t *testing.T) {
	t.Parallel()

	store, mem := newTestStore(t, fifolog.Options{})
	mustPush(t, store, "a", "b")

	before, _ := mem.Contents(testPath)

	if err := store.Defragment(); err != nil {
		t.Fatalf("Defragment: %v", err)
	}

	after, _ := mem.Contents(testPath)
	if string(before) != string(after) {
		t.Errorf("compaction of a clean store changed the file: %q -> %q", before, after)
	}

	if got := store.Size(); got != 2 {
		t.Errorf("Size = %d, want 2", got)
	}
}
