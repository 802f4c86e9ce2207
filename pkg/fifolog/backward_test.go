package fifolog

import (
	"testing"

	"github.com/calvinalkan/fifolog/pkg/fs"
)

func TestCandidateAt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		buf  string
		i    int
		base int64
		want candidate
		ok   bool
	}{
		{
			name: "delimiter mid window captures following byte",
			buf:  "a\nbc\n",
			i:    1,
			base: 100,
			want: candidate{start: 102, first: 'b', hasFirst: true},
			ok:   true,
		},
		{
			name: "delimiter at window's last byte leaves first byte unknown",
			buf:  "abc\n",
			i:    3,
			base: 100,
			want: candidate{start: 104},
			ok:   true,
		},
		{
			name: "consecutive delimiters imply a zero length record",
			buf:  "a\n\nb",
			i:    1,
			base: 0,
			want: candidate{start: 2, first: '\n', hasFirst: true},
			ok:   true,
		},
		{
			name: "file start prefix is a record start",
			buf:  "abc\n",
			i:    0,
			base: 0,
			want: candidate{start: 0, first: 'a', hasFirst: true},
			ok:   true,
		},
		{
			name: "window start past file start is not a record start",
			buf:  "abc\n",
			i:    0,
			base: 512,
			ok:   false,
		},
		{
			name: "payload byte mid window is nothing",
			buf:  "abc\n",
			i:    1,
			base: 0,
			ok:   false,
		},
		{
			name: "tombstoned successor is still a candidate",
			buf:  "a\n$b\n",
			i:    1,
			base: 0,
			want: candidate{start: 2, first: '$', hasFirst: true},
			ok:   true,
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			got, ok := candidateAt([]byte(testCase.buf), testCase.i, testCase.base)
			if ok != testCase.ok {
				t.Fatalf("candidateAt ok = %v, want %v", ok, testCase.ok)
			}

			if ok && got != testCase.want {
				t.Errorf("candidateAt = %+v, want %+v", got, testCase.want)
			}
		})
	}
}

// openMemFile puts content at path in a fresh Mem fs and opens it for reading.
func openMemFile(t *testing.T, content string) fs.File {
	t.Helper()

	mem := fs.NewMem()
	mem.SetContents("data", []byte(content))

	f, err := mem.Open("data")
	if err != nil {
		t.Fatalf("opening mem file: %v", err)
	}

	t.Cleanup(func() { _ = f.Close() })

	return f
}

func TestBackwardScanCandidateOrder(t *testing.T) {
	t.Parallel()

	// Records start at offsets 0, 4, 8; the trailing delimiter also
	// produces a candidate at EOF (12) that callers skip.
	content := "aaa\nbbb\nccc\n"
	want := []int64{12, 8, 4, 0}

	for _, window := range []int{1, 2, 3, 4, 5, 7, 11, 12, 512} {
		f := openMemFile(t, content)

		scan := newBackwardScan(f, int64(len(content)), window)

		var got []int64
		for scan.next() {
			got = append(got, scan.candidate().start)
		}

		if err := scan.err(); err != nil {
			t.Fatalf("window=%d: scan error: %v", window, err)
		}

		if len(got) != len(want) {
			t.Fatalf("window=%d: candidates = %v, want %v", window, got, want)
		}

		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("window=%d: candidates = %v, want %v", window, got, want)
			}
		}
	}
}

func TestBackwardScanDelimiterAtWindowBoundary(t *testing.T) {
	t.Parallel()

	// With window 4 the delimiter at offset 3 lands exactly at a window
	// edge; the candidate's first byte lies in the other window.
	content := "abc\ndef\n"
	f := openMemFile(t, content)

	scan := newBackwardScan(f, int64(len(content)), 4)

	var starts []int64

	var unknownFirst int

	for scan.next() {
		cand := scan.candidate()
		starts = append(starts, cand.start)

		if !cand.hasFirst {
			unknownFirst++
		}
	}

	if err := scan.err(); err != nil {
		t.Fatalf("scan error: %v", err)
	}

	wantStarts := []int64{8, 4, 0}
	if len(starts) != len(wantStarts) {
		t.Fatalf("candidate starts = %v, want %v", starts, wantStarts)
	}

	for i := range wantStarts {
		if starts[i] != wantStarts[i] {
			t.Fatalf("candidate starts = %v, want %v", starts, wantStarts)
		}
	}

	// The EOF candidate (8) and the boundary candidate (4) both sit right
	// after a window's last byte, so their first byte cannot be known.
	if unknownFirst != 2 {
		t.Errorf("candidates with unknown first byte = %d, want 2", unknownFirst)
	}
}

func TestBackwardScanEmptyFile(t *testing.T) {
	t.Parallel()

	f := openMemFile(t, "")

	scan := newBackwardScan(f, 0, 512)
	if scan.next() {
		t.Error("scan over empty file yielded a candidate")
	}

	if err := scan.err(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
