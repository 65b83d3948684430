// Package apperr defines sentinel errors shared across layers.
package apperr

import "errors"

var (
	// ErrNotFound signals a missing note or category.
	ErrNotFound = errors.New("not found")
	// ErrUnavailable signals that the classification backend could not be
	// reached or returned an unusable reply. Always recoverable via fallback.
	ErrUnavailable = errors.New("backend unavailable")
	// ErrNoteTooLong signals a note rejected before classification.
	ErrNoteTooLong = errors.New("note too long")
	// ErrNoPending signals a confirmation reply with no live pending entry.
	ErrNoPending = errors.New("no pending confirmation")
)
