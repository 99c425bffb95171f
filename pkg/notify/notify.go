// Package notify delivers user-facing status messages: location detected,
// capture failed, upload succeeded, and so on.
package notify

import (
	"time"
)

// Severity selects how an event is presented.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
)

// Kind identifies what happened.
type Kind string

const (
	KindLocationUnavailable    Kind = "location-unavailable"
	KindLocationDetected       Kind = "location-detected"
	KindLocationError          Kind = "location-error"
	KindCaptureInitiationError Kind = "capture-initiation-error"
	KindCaptureError           Kind = "capture-error"
	KindDecodeError            Kind = "decode-error"
	KindUploadMissingImage     Kind = "upload-missing-image"
	KindUploadSuccess          Kind = "upload-success"
	KindUploadFailure          Kind = "upload-failure"
)

// Event is one notification.
type Event struct {
	Kind     Kind      `json:"kind"`
	Title    string    `json:"title"`
	Message  string    `json:"message"`
	Severity Severity  `json:"severity"`
	Time     time.Time `json:"time"`
}

// Sink receives events. Notify must not block for long; the workflow calls
// it inline.
type Sink interface {
	Notify(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

// Notify calls f.
func (f SinkFunc) Notify(e Event) { f(e) }

func newEvent(kind Kind, sev Severity, title, msg string) Event {
	return Event{Kind: kind, Title: title, Message: msg, Severity: sev, Time: time.Now()}
}

const locateHint = "We can't locate you. Please enable location access on your device.. "

// LocationUnavailable: the device has no geolocation capability.
func LocationUnavailable() Event {
	return newEvent(KindLocationUnavailable, SeverityError, "Location Service Is Not Available", locateHint)
}

// LocationDetected: a fix was acquired.
func LocationDetected() Event {
	return newEvent(KindLocationDetected, SeveritySuccess, "Location Detected", "Your Location Detected! Capture using this button below..")
}

// LocationError: acquisition failed (denied or unavailable).
func LocationError() Event {
	return newEvent(KindLocationError, SeverityError, "LocationService Error", locateHint)
}

// CaptureInitiationError: the scanner is not available on this device.
func CaptureInitiationError() Event {
	return newEvent(KindCaptureInitiationError, SeverityError, "Capture Error", "Problem initiating scan. Please use mobile device..")
}

// CaptureError renders a scanner failure as
// "Error code: <code>\nError message: <message>".
func CaptureError(code, message string) Event {
	return newEvent(KindCaptureError, SeverityError, "Capture Error", "Error code: "+code+"\nError message: "+message)
}

// DecodeError: the captured bytes could not be decoded.
func DecodeError(detail string) Event {
	return newEvent(KindDecodeError, SeverityError, "Error", "Captured image could not be processed: "+detail)
}

// UploadMissingImage: upload requested with nothing to upload.
func UploadMissingImage() Event {
	return newEvent(KindUploadMissingImage, SeverityError, "Error", "No image captured to upload.")
}

// UploadSuccess: the attachment was created.
func UploadSuccess() Event {
	return newEvent(KindUploadSuccess, SeveritySuccess, "Success", "Image uploaded successfully!")
}

// UploadFailure carries the collaborator's message.
func UploadFailure(message string) Event {
	return newEvent(KindUploadFailure, SeverityError, "Error", "Failed to upload image: "+message)
}
