package repository

import "errors"

var (
	// ErrLoad is returned when an existing repository cannot be read or parsed.
	ErrLoad = errors.New("failed to load repository")

	// ErrWrite is returned when the repository cannot be persisted.
	ErrWrite = errors.New("failed to write repository")
)
