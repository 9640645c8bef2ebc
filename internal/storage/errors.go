package storage

import "errors"

// Storage errors shared by all implementations.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyDecided is returned when a status transition targets an
	// intent that has already left NEW. Replayed decisions surface here
	// instead of double-counting.
	ErrAlreadyDecided = errors.New("intent already decided")

	// ErrInvalidInput is returned when input validation fails. The signal
	// source must never write partial rows, so missing required fields are
	// rejected before they reach the table.
	ErrInvalidInput = errors.New("invalid input")
)
