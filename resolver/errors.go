package resolver

import "errors"

// ErrNoFetcher is returned by ResolveEntity on a Service built without an
// executor.
var ErrNoFetcher = errors.New("resolver has no query executor")
