// Package capture takes photographs through a device camera or document
// scanner capability.
//
// A Scanner is the raw capability: it may return any number of images and
// reports failures in its own terms. Device wraps a Scanner and enforces the
// capture contract: the availability check gates every call, failures come
// back as *CaptureError with the scanner's code and message preserved, and a
// successful call yields exactly one image.
package capture

import (
	"context"
	"io"
	"net/http"
)

// Source identifies where an image comes from.
type Source string

const (
	// SourceCamera takes a new photo with the device camera.
	SourceCamera Source = "DEVICE_CAMERA"

	// SourceFile picks an existing image from the device. Not supported.
	SourceFile Source = "PHOTO_LIBRARY"
)

// RawImage is an encoded image exactly as the capability returned it.
type RawImage struct {
	Bytes    []byte `json:"-"`
	MIMEType string `json:"mime_type"`
}

// NewRawImage wraps data, sniffing its MIME type.
func NewRawImage(data []byte) RawImage {
	return RawImage{Bytes: data, MIMEType: http.DetectContentType(data)}
}

// Len returns the encoded size in bytes.
func (r RawImage) Len() int {
	return len(r.Bytes)
}

// ScanOptions configures one scan request.
type ScanOptions struct {
	Source           Source `json:"image_source"`
	ReturnImageBytes bool   `json:"return_image_bytes"`
}

// Scanner is a camera or document-scan capability.
type Scanner interface {
	// Available reports synchronously whether the capability can be used.
	Available() bool

	// Scan captures images. Implementations report failures as *CaptureError
	// where they have a code to give.
	Scan(ctx context.Context, opts ScanOptions) ([]RawImage, error)
}

// Camera is a Scanner holding a device handle.
type Camera interface {
	Scanner
	io.Closer
}
