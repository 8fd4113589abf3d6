package storage

import "errors"

// Storage errors. Ledgers, segments and runs are content-addressed and
// append-only: a key is written once and never updated.
var (
	// ErrNotFound is returned when a requested ledger or run does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when a key is already stored.
	// Callers that re-ingest identical content treat it as success.
	ErrDuplicateKey = errors.New("duplicate key: append-only store does not allow updates")

	// ErrInvalidInput is returned when a batch fails validation before writing.
	ErrInvalidInput = errors.New("invalid input")
)
