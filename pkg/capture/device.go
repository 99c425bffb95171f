package capture

import (
	"context"
	"errors"
	"log/slog"
)

// Device enforces the capture contract on top of a Scanner.
type Device struct {
	scanner Scanner
	logger  *slog.Logger
}

// NewDevice wraps scanner. A nil logger uses slog.Default.
func NewDevice(scanner Scanner, logger *slog.Logger) *Device {
	if logger == nil {
		logger = slog.Default()
	}
	return &Device{
		scanner: scanner,
		logger:  logger.With("component", "capture.device"),
	}
}

// Available reports whether the wrapped scanner can be used.
func (d *Device) Available() bool {
	return d.scanner != nil && d.scanner.Available()
}

// Capture takes exactly one image from src.
//
// It fails with ErrUnsupportedSource for anything but SourceCamera,
// ErrCaptureUnavailable when the availability check fails (the scanner is
// not called), or *CaptureError when the scanner fails or returns nothing.
func (d *Device) Capture(ctx context.Context, src Source) (RawImage, error) {
	if src != SourceCamera {
		return RawImage{}, ErrUnsupportedSource
	}
	if !d.Available() {
		return RawImage{}, ErrCaptureUnavailable
	}

	results, err := d.scanner.Scan(ctx, ScanOptions{Source: src, ReturnImageBytes: true})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return RawImage{}, ctxErr
		}
		var ce *CaptureError
		if errors.As(err, &ce) {
			return RawImage{}, ce
		}
		return RawImage{}, &CaptureError{Code: CodeUnknown, Message: err.Error(), Err: err}
	}

	if len(results) == 0 {
		return RawImage{}, &CaptureError{Code: CodeEmptyResult, Message: "scan returned no images"}
	}
	if len(results) > 1 {
		d.logger.Debug("scan returned extra images, keeping the first", "count", len(results))
	}

	img := results[0]
	if len(img.Bytes) == 0 {
		return RawImage{}, &CaptureError{Code: CodeEmptyImage, Message: "scan returned an image without bytes"}
	}
	if img.MIMEType == "" {
		img = NewRawImage(img.Bytes)
	}

	d.logger.Info("image captured", "bytes", img.Len(), "mime", img.MIMEType)
	return img, nil
}
