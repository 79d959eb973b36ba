package domain

import "errors"

// ErrServiceUnavailable marks failures caused by an external dependency
// (model provider, database, vector store) being unreachable. Adapters wrap
// their transport errors with it so use cases can answer 503.
var ErrServiceUnavailable = errors.New("service unavailable")
