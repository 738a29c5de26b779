package builder

import "errors"

var (
	// ErrUnsupportedDialect is returned for unknown providers.
	ErrUnsupportedDialect = errors.New("unsupported dialect")
	// ErrNoColumns is returned when rendering a query that projects nothing.
	ErrNoColumns = errors.New("query projects no columns")
)
