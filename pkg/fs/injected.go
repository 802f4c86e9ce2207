package fs

import "errors"

// InjectedError marks an error as intentionally injected by a [Mem] fault hook.
//
// It wraps the underlying error so errors.Is/As continue to work.
// Use [IsInjected] in tests to distinguish injected failures from real ones.
type InjectedError struct {
	Err error
}

// Error returns the underlying error's message.
func (e *InjectedError) Error() string {
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *InjectedError) Unwrap() error {
	return e.Err
}

// IsInjected reports whether err (or any wrapped error) was injected.
// Returns false if err is nil.
func IsInjected(err error) bool {
	if err == nil {
		return false
	}

	var injected *InjectedError

	return errors.As(err, &injected)
}

// inject wraps err in an InjectedError.
// If err is already injected, returns it unchanged.
func inject(err error) error {
	if IsInjected(err) {
		return err
	}

	return &InjectedError{Err: err}
}
