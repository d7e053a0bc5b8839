package storage

import "errors"

// Storage errors shared by all implementations.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrSelfLoop is returned when a relationship upsert names the same
	// asset as leader and follower.
	ErrSelfLoop = errors.New("self loop: leader and follower must differ")
)
