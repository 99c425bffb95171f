package records

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	ErrInvalidRequest   = errors.New("records: invalid request")
	ErrNotFound         = errors.New("records: not found")
	ErrNotAuthenticated = errors.New("records: not authenticated")
)

// APIError is a failure reported by the backing service. Message is shown to
// the user as is.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("records: %s (status %d, %s)", e.Message, e.StatusCode, e.Code)
	}
	return fmt.Sprintf("records: %s (status %d)", e.Message, e.StatusCode)
}

func (e *APIError) Unwrap() error { return e.Err }
