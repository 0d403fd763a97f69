package domain

import "errors"

var (
	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrIllegalTransition is returned when a status change is not allowed.
	ErrIllegalTransition = errors.New("illegal status transition")
	// ErrVersionConflict is returned when a row changed between read and write.
	ErrVersionConflict = errors.New("optimistic lock failed")
	// ErrUnauthorized is returned when the caller lacks permission.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidInput is returned for malformed requests.
	ErrInvalidInput = errors.New("invalid input")
)
