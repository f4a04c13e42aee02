// Package apperr defines sentinel errors shared across layers.
package apperr

import "errors"

var (
	// ErrNotFound reports a missing application, token, database or document.
	ErrNotFound = errors.New("not found")
	// ErrConflict reports an attempt to create an entity that already exists,
	// such as a database path taken within the same application.
	ErrConflict = errors.New("conflict")
	// ErrIntegrity reports divergence between the index and the content on
	// disk. It indicates a prior partial write and is never silently recovered.
	ErrIntegrity = errors.New("integrity violation")
)
