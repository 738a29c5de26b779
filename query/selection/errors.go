package selection

import "errors"

var (
	// ErrNoOperation is returned when the document has no usable operation.
	ErrNoOperation = errors.New("no operation in document")
	// ErrAmbiguousOperation is returned when several operations exist and
	// no operation name was given.
	ErrAmbiguousOperation = errors.New("operation name required for documents with several operations")
	// ErrFieldNotFound is returned when the requested root field is absent.
	ErrFieldNotFound = errors.New("root field not found")
)
