//go:build unix

package fs

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

const lockPerms = 0o644

// ErrLocked is returned by [Real.Lock] when the lock is held elsewhere.
var ErrLocked = errors.New("fs: file already locked")

// realLock holds an exclusive advisory flock on a lock file.
// The file handle must stay open for the duration of the lock.
type realLock struct {
	path string
	file *os.File
}

func (l *realLock) Close() error {
	if l.file == nil {
		return nil
	}

	_ = os.Remove(l.path)
	_ = unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	err := l.file.Close()
	l.file = nil

	return err
}

// Lock acquires an exclusive, non-blocking flock(2) on path.
// Returns [ErrLocked] immediately if another process holds the lock.
func (r *Real) Lock(path string) (Locker, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, lockPerms)
	if err != nil {
		return nil, err
	}

	err = unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB)
	if err != nil {
		file.Close()

		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, ErrLocked
		}

		return nil, err
	}

	return &realLock{path: path, file: file}, nil
}
