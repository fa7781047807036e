package memory

import (
	"errors"
	"fmt"
)

// ErrNotInitialized is returned when a store operation runs before
// Initialize has been called.
var ErrNotInitialized = errors.New("memory store not initialized")

// RetrievalError wraps failures during episode retrieval, including
// query embedding failures. Callers are expected to surface these
// rather than degrade silently.
type RetrievalError struct {
	Op  string
	Err error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieval %s: %v", e.Op, e.Err)
}

func (e *RetrievalError) Unwrap() error {
	return e.Err
}
