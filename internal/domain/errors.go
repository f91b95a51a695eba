package domain

import "errors"

var (
	// ErrNotFound marks a lookup for an id that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrValidation marks malformed or missing required input.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidCatalogKind is a specialization of ErrValidation for unknown
	// catalog type tokens.
	ErrInvalidCatalogKind = errors.New("invalid catalog type")
	// ErrConflict marks a write blocked by existing references.
	ErrConflict = errors.New("conflict")
)
