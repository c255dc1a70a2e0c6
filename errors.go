package webdrill

import "errors"

var (
	// ErrNotFound reports that a query or wait did not observe the
	// expected element or condition within its time bound.
	ErrNotFound = errors.New("webdrill: not found")

	// ErrClosed reports an operation on a session that has already been
	// closed.
	ErrClosed = errors.New("webdrill: session closed")
)
