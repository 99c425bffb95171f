package upload

import (
	"errors"
	"fmt"
)

// ErrNoImageCaptured is returned when there is nothing to upload. No
// collaborator call is made.
var ErrNoImageCaptured = errors.New("upload: no image captured")

// ErrUploadFailed matches every *UploadError via errors.Is.
var ErrUploadFailed = errors.New("upload: failed")

// UploadError carries the collaborator's message verbatim.
type UploadError struct {
	Message string
	Err     error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload: failed: %s", e.Message)
}

func (e *UploadError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrUploadFailed) true.
func (e *UploadError) Is(target error) bool {
	return target == ErrUploadFailed
}
