package workflow

import (
	"context"
	"errors"

	"github.com/teslashibe/go-geostamp/pkg/annotate"
	"github.com/teslashibe/go-geostamp/pkg/capture"
	"github.com/teslashibe/go-geostamp/pkg/geo"
	"github.com/teslashibe/go-geostamp/pkg/upload"
)

// Sentinel errors.
var (
	// ErrCaptureDisabled is returned while the location capability is
	// unavailable. The camera is not invoked.
	ErrCaptureDisabled = errors.New("workflow: capture disabled, location capability unavailable")

	// ErrSessionBusy is returned when an upload is in flight.
	ErrSessionBusy = errors.New("workflow: session busy")

	// ErrSuperseded is returned to a capture whose result was invalidated by
	// a newer capture or a reset.
	ErrSuperseded = errors.New("workflow: capture superseded")

	// ErrNoLocationFix is returned when annotation would need a coordinate
	// and none has ever resolved.
	ErrNoLocationFix = errors.New("workflow: no location fix")

	// ErrInvalidTransition signals a state machine bug.
	ErrInvalidTransition = errors.New("workflow: invalid state transition")
)

// ErrorKind classifies failures for callers and the HTTP layer.
type ErrorKind string

const (
	KindNone                ErrorKind = ""
	KindLocationUnavailable ErrorKind = "location_unavailable"
	KindPermissionDenied    ErrorKind = "permission_denied"
	KindCaptureUnavailable  ErrorKind = "capture_unavailable"
	KindCaptureFailed       ErrorKind = "capture_failed"
	KindDecodeError         ErrorKind = "decode_error"
	KindNoImageCaptured     ErrorKind = "no_image_captured"
	KindUploadFailed        ErrorKind = "upload_failed"
	KindCaptureDisabled     ErrorKind = "capture_disabled"
	KindNoLocationFix       ErrorKind = "no_location_fix"
	KindSuperseded          ErrorKind = "superseded"
	KindSessionBusy         ErrorKind = "session_busy"
	KindCancelled           ErrorKind = "cancelled"
	KindInternal            ErrorKind = "internal"
)

// Kind maps err onto the error taxonomy. nil maps to KindNone.
func Kind(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrCaptureDisabled):
		return KindCaptureDisabled
	case errors.Is(err, ErrSessionBusy):
		return KindSessionBusy
	case errors.Is(err, ErrSuperseded):
		return KindSuperseded
	case errors.Is(err, ErrNoLocationFix), errors.Is(err, geo.ErrNoFix):
		return KindNoLocationFix
	case errors.Is(err, geo.ErrPermissionDenied):
		return KindPermissionDenied
	case errors.Is(err, geo.ErrLocationUnavailable), errors.Is(err, geo.ErrCapabilityUnavailable):
		return KindLocationUnavailable
	case errors.Is(err, capture.ErrCaptureUnavailable):
		return KindCaptureUnavailable
	case errors.Is(err, capture.ErrCaptureFailed), errors.Is(err, capture.ErrUnsupportedSource):
		return KindCaptureFailed
	case errors.Is(err, annotate.ErrDecode), errors.Is(err, annotate.ErrEmptyImage), errors.Is(err, annotate.ErrEncode):
		return KindDecodeError
	case errors.Is(err, upload.ErrNoImageCaptured):
		return KindNoImageCaptured
	case errors.Is(err, upload.ErrUploadFailed):
		return KindUploadFailed
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCancelled
	default:
		return KindInternal
	}
}
