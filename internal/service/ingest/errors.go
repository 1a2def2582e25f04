package ingest

import (
	"errors"
	"fmt"
)

// ErrUnauthorized is returned when the presented token does not match the expected token.
var ErrUnauthorized = errors.New("invalid token")

// ReasonInvalidRequest is reported for a malformed envelope or non-object data.
const ReasonInvalidRequest = "invalid request"

// ValidationError rejects a request whose payload failed validation. Reason is
// returned to the client verbatim.
type ValidationError struct {
	Reason string
	Err    error
}

func (e *ValidationError) Error() string { return e.Reason }

func (e *ValidationError) Unwrap() error { return e.Err }

// DependencyError wraps a failed call to the secret store or the queue.
type DependencyError struct {
	Op  string
	Err error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *DependencyError) Unwrap() error { return e.Err }
