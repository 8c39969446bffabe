package clientstore

import "errors"

var (
	// ErrNotFound is returned when a key is absent or has expired.
	ErrNotFound = errors.New("clientstore: key not found")
	// ErrEmptyKey is returned when an operation receives an empty key.
	ErrEmptyKey = errors.New("clientstore: empty key")
	// ErrWriteFailed wraps backend write errors.
	ErrWriteFailed = errors.New("clientstore: write failed")
	// ErrReadFailed wraps backend read errors.
	ErrReadFailed = errors.New("clientstore: read failed")
)
