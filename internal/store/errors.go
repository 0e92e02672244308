package store

import "errors"

// Sentinel errors shared by every store implementation. Callers match them
// with errors.Is.
var (
	// ErrConflict: the interval overlaps an active reservation or falls
	// outside every shift window.
	ErrConflict = errors.New("conflict")
	// ErrNotFound: the provider or reservation does not exist.
	ErrNotFound = errors.New("not found")
	// ErrIdempotencyConflict: a replayed idempotency key carried different
	// reservation fields.
	ErrIdempotencyConflict = errors.New("idempotency key conflict")
)
