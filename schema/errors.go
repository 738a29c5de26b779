package schema

import "errors"

var (
	// ErrEntityNotFound is returned by a Provider that does not know an entity.
	ErrEntityNotFound = errors.New("entity not found")
	// ErrInvalidSchema wraps semantic errors found after parsing.
	ErrInvalidSchema = errors.New("invalid schema")
)
