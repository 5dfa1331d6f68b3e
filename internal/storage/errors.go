package storage

import "errors"

// Sentinel errors shared by the memory, postgres and clickhouse stores.
var (
	// ErrNotFound is returned by lookups of a trade id that was never journaled.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateKey is returned when a trade or signal id is inserted twice.
	// The journal is append-only.
	ErrDuplicateKey = errors.New("duplicate key: journal is append-only")

	// ErrInvalidInput is returned for records missing their id, token or timestamp.
	ErrInvalidInput = errors.New("invalid record")
)
