//go:build !unix

package fs

import "errors"

// ErrLocked is returned by [Real.Lock] when the lock is held elsewhere.
var ErrLocked = errors.New("fs: file already locked")

// Lock is not supported on this platform. Callers that need to run here
// should disable locking and provide external synchronization.
func (r *Real) Lock(path string) (Locker, error) {
	return nil, errors.ErrUnsupported
}
