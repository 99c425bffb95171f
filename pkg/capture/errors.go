package capture

import (
	"errors"
	"fmt"
)

// Sentinel errors for capture failures.
var (
	// ErrCaptureUnavailable is returned when the scanner's availability check
	// fails. The scanner is not invoked.
	ErrCaptureUnavailable = errors.New("capture: capability unavailable")

	// ErrCaptureFailed matches every *CaptureError via errors.Is.
	ErrCaptureFailed = errors.New("capture: capture failed")

	// ErrUnsupportedSource is returned for any source other than SourceCamera.
	ErrUnsupportedSource = errors.New("capture: unsupported image source")
)

// Error codes produced by this package. Scanner codes pass through untouched.
const (
	CodeUnknown     = "unknown"
	CodeEmptyResult = "empty_result"
	CodeEmptyImage  = "empty_image"
	CodeReadFailed  = "read_failed"
	CodeEncode      = "encode_failed"
)

// CaptureError carries the scanner's failure code and message verbatim.
type CaptureError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *CaptureError) Error() string {
	return fmt.Sprintf("capture: failed (%s): %s", e.Code, e.Message)
}

// Unwrap returns the underlying error, if any.
func (e *CaptureError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrCaptureFailed) true for every CaptureError.
func (e *CaptureError) Is(target error) bool {
	return target == ErrCaptureFailed
}

// Display renders the error the way it is shown to the user.
func (e *CaptureError) Display() string {
	return "Error code: " + e.Code + "\nError message: " + e.Message
}
