package model

import "errors"

var (
	// ErrInvalidIdentity means the raw identity could not be normalized.
	// No store operation may be attempted for the input that produced it.
	ErrInvalidIdentity = errors.New("invalid identity")

	// ErrNotFound means a record is absent for the identity.
	ErrNotFound = errors.New("not found")

	// ErrWriteConflict means an optimistic update lost the race on every
	// attempt within its retry budget.
	ErrWriteConflict = errors.New("write conflict")

	// ErrStoreUnavailable means the backing store could not be reached
	// within the operation timeout.
	ErrStoreUnavailable = errors.New("store unavailable")
)
