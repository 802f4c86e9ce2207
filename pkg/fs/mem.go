package fs

import (
	"io"
	iofs "io/fs"
	"os"
	"sync"
	"time"
)

// Mem implements [FS] entirely in memory.
//
// It exists so store logic can be tested without touching the real
// filesystem, and so tests can inject failures at any operation.
//
// The Fail hook, when set, is consulted before every operation. Returning a
// non-nil error makes the operation fail with that error (wrapped in
// [InjectedError]); returning nil lets the operation proceed. File-level
// operations (read, write, seek, sync, close) report the path of the file
// they were opened with.
//
// Mem is safe for use from a single test goroutine; it performs coarse
// locking only so fault hooks see consistent state.
type Mem struct {
	mu    sync.Mutex
	files map[string]*memData
	locks map[string]bool

	// Fail intercepts operations by name: "open", "create", "openfile",
	// "writefileatomic", "stat", "remove", "rename", "lock",
	// "read", "write", "seek", "sync", "close".
	Fail func(op, path string) error
}

// NewMem returns an empty in-memory filesystem.
func NewMem() *Mem {
	return &Mem{
		files: make(map[string]*memData),
		locks: make(map[string]bool),
	}
}

type memData struct {
	data []byte
}

// fail consults the Fail hook for op on path.
func (m *Mem) fail(op, path string) error {
	if m.Fail == nil {
		return nil
	}

	if err := m.Fail(op, path); err != nil {
		return inject(err)
	}

	return nil
}

// Contents returns a copy of the named file's bytes.
// The second result reports whether the file exists.
func (m *Mem) Contents(path string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.files[path]
	if !ok {
		return nil, false
	}

	out := make([]byte, len(d.data))
	copy(out, d.data)

	return out, true
}

// SetContents creates or replaces the named file with data.
func (m *Mem) SetContents(path string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d := make([]byte, len(data))
	copy(d, data)
	m.files[path] = &memData{data: d}
}

// --- File Operations ---

func (m *Mem) Open(path string) (File, error) {
	if err := m.fail("open", path); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.files[path]
	if !ok {
		return nil, &iofs.PathError{Op: "open", Path: path, Err: os.ErrNotExist}
	}

	return &memFile{fs: m, path: path, d: d, readable: true}, nil
}

func (m *Mem) Create(path string) (File, error) {
	if err := m.fail("create", path); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	d := &memData{}
	m.files[path] = d

	return &memFile{fs: m, path: path, d: d, readable: true, writable: true}, nil
}

func (m *Mem) OpenFile(path string, flag int, perm os.FileMode) (File, error) {
	if err := m.fail("openfile", path); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.files[path]

	switch {
	case ok && flag&os.O_EXCL != 0:
		return nil, &iofs.PathError{Op: "open", Path: path, Err: os.ErrExist}
	case !ok && flag&os.O_CREATE == 0:
		return nil, &iofs.PathError{Op: "open", Path: path, Err: os.ErrNotExist}
	case !ok:
		d = &memData{}
		m.files[path] = d
	}

	if flag&os.O_TRUNC != 0 {
		d.data = nil
	}

	writable := flag&(os.O_WRONLY|os.O_RDWR) != 0

	return &memFile{
		fs:       m,
		path:     path,
		d:        d,
		readable: flag&os.O_WRONLY == 0,
		writable: writable,
		append:   flag&os.O_APPEND != 0,
	}, nil
}

// --- Convenience Methods ---

func (m *Mem) WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	if err := m.fail("writefileatomic", path); err != nil {
		return err
	}

	m.SetContents(path, data)

	return nil
}

// --- Metadata ---

func (m *Mem) Stat(path string) (os.FileInfo, error) {
	if err := m.fail("stat", path); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.files[path]
	if !ok {
		return nil, &iofs.PathError{Op: "stat", Path: path, Err: os.ErrNotExist}
	}

	return memFileInfo{name: path, size: int64(len(d.data))}, nil
}

func (m *Mem) Exists(path string) (bool, error) {
	_, err := m.Stat(path)
	if err == nil {
		return true, nil
	}

	if os.IsNotExist(err) {
		return false, nil
	}

	return false, err
}

// --- Mutations ---

func (m *Mem) Remove(path string) error {
	if err := m.fail("remove", path); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.files[path]; !ok {
		return &iofs.PathError{Op: "remove", Path: path, Err: os.ErrNotExist}
	}

	delete(m.files, path)

	return nil
}

func (m *Mem) Rename(oldpath, newpath string) error {
	if err := m.fail("rename", oldpath); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.files[oldpath]
	if !ok {
		return &iofs.PathError{Op: "rename", Path: oldpath, Err: os.ErrNotExist}
	}

	m.files[newpath] = d
	delete(m.files, oldpath)

	return nil
}

// --- Locking ---

type memLock struct {
	fs   *Mem
	path string
}

func (l *memLock) Close() error {
	l.fs.mu.Lock()
	defer l.fs.mu.Unlock()

	delete(l.fs.locks, l.path)

	return nil
}

func (m *Mem) Lock(path string) (Locker, error) {
	if err := m.fail("lock", path); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.locks[path] {
		return nil, ErrLocked
	}

	m.locks[path] = true

	return &memLock{fs: m, path: path}, nil
}

// --- File handle ---

type memFile struct {
	fs       *Mem
	path     string
	d        *memData
	pos      int64
	readable bool
	writable bool
	append   bool
	closed   bool
}

func (f *memFile) Read(p []byte) (int, error) {
	if err := f.fs.fail("read", f.path); err != nil {
		return 0, err
	}

	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()

	if f.closed {
		return 0, os.ErrClosed
	}

	if !f.readable {
		return 0, &iofs.PathError{Op: "read", Path: f.path, Err: os.ErrPermission}
	}

	if f.pos >= int64(len(f.d.data)) {
		return 0, io.EOF
	}

	n := copy(p, f.d.data[f.pos:])
	f.pos += int64(n)

	return n, nil
}

func (f *memFile) Write(p []byte) (int, error) {
	if err := f.fs.fail("write", f.path); err != nil {
		return 0, err
	}

	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()

	if f.closed {
		return 0, os.ErrClosed
	}

	if !f.writable {
		return 0, &iofs.PathError{Op: "write", Path: f.path, Err: os.ErrPermission}
	}

	if f.append {
		f.pos = int64(len(f.d.data))
	}

	// Extend the file if the write reaches past the current end.
	end := f.pos + int64(len(p))
	if end > int64(len(f.d.data)) {
		grown := make([]byte, end)
		copy(grown, f.d.data)
		f.d.data = grown
	}

	copy(f.d.data[f.pos:], p)
	f.pos = end

	return len(p), nil
}

func (f *memFile) Seek(offset int64, whence int) (int64, error) {
	if err := f.fs.fail("seek", f.path); err != nil {
		return 0, err
	}

	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()

	if f.closed {
		return 0, os.ErrClosed
	}

	var base int64

	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = f.pos
	case io.SeekEnd:
		base = int64(len(f.d.data))
	default:
		return 0, &iofs.PathError{Op: "seek", Path: f.path, Err: os.ErrInvalid}
	}

	next := base + offset
	if next < 0 {
		return 0, &iofs.PathError{Op: "seek", Path: f.path, Err: os.ErrInvalid}
	}

	f.pos = next

	return next, nil
}

func (f *memFile) Stat() (os.FileInfo, error) {
	if err := f.fs.fail("stat", f.path); err != nil {
		return nil, err
	}

	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()

	return memFileInfo{name: f.path, size: int64(len(f.d.data))}, nil
}

func (f *memFile) Sync() error {
	if err := f.fs.fail("sync", f.path); err != nil {
		return err
	}

	return nil
}

func (f *memFile) Close() error {
	if err := f.fs.fail("close", f.path); err != nil {
		return err
	}

	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()

	if f.closed {
		return os.ErrClosed
	}

	f.closed = true

	return nil
}

// --- FileInfo ---

type memFileInfo struct {
	name string
	size int64
}

func (i memFileInfo) Name() string       { return i.name }
func (i memFileInfo) Size() int64        { return i.size }
func (i memFileInfo) Mode() os.FileMode  { return 0o644 }
func (i memFileInfo) ModTime() time.Time { return time.Time{} }
func (i memFileInfo) IsDir() bool        { return false }
func (i memFileInfo) Sys() any           { return nil }

// Compile-time interface checks.
var (
	_ FS   = (*Mem)(nil)
	_ File = (*memFile)(nil)
)
