package bridge

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/teslashibe/go-geostamp/pkg/capture"
	"github.com/teslashibe/go-geostamp/pkg/geo"
	"github.com/teslashibe/go-geostamp/pkg/protocol"
)

// Locator is the geo.Provider view of the bridge.
type Locator struct{ b *Bridge }

// Locator returns the bridge as a location provider.
func (b *Bridge) Locator() *Locator { return &Locator{b: b} }

func hasLocation(c protocol.Capabilities) bool { return c.Location }
func hasScanner(c protocol.Capabilities) bool  { return c.Scanner }

// Available reports whether a connected device offers location.
func (l *Locator) Available() bool {
	return l.b.pick(hasLocation) != nil
}

// AcquireFix asks the device for one fix.
func (l *Locator) AcquireFix(ctx context.Context, opts geo.Options) (geo.Coordinate, error) {
	dev := l.b.pick(hasLocation)
	if dev == nil {
		return geo.Coordinate{}, fmt.Errorf("%w: %v", geo.ErrLocationUnavailable, ErrNoDevice)
	}
	req, err := protocol.NewLocateMessage(uuid.NewString(), opts.HighAccuracy)
	if err != nil {
		return geo.Coordinate{}, err
	}

	resp, err := l.b.request(ctx, dev, req)
	if err != nil {
		if ctx.Err() != nil {
			return geo.Coordinate{}, err
		}
		return geo.Coordinate{}, fmt.Errorf("%w: %v", geo.ErrLocationUnavailable, err)
	}

	switch resp.Type {
	case protocol.TypeLocation:
		d, err := resp.GetLocationData()
		if err != nil {
			return geo.Coordinate{}, fmt.Errorf("%w: bad location payload: %v", geo.ErrLocationUnavailable, err)
		}
		c := geo.Coordinate{Latitude: d.Latitude, Longitude: d.Longitude}
		if !c.Valid() {
			return geo.Coordinate{}, fmt.Errorf("%w: device returned %v", geo.ErrLocationUnavailable, c)
		}
		return c, nil

	case protocol.TypeError:
		d, _ := resp.GetErrorData()
		if strings.EqualFold(d.Code, protocol.CodePermissionDenied) {
			return geo.Coordinate{}, fmt.Errorf("%w: %s", geo.ErrPermissionDenied, d.Message)
		}
		return geo.Coordinate{}, fmt.Errorf("%w: %s: %s", geo.ErrLocationUnavailable, d.Code, d.Message)

	default:
		return geo.Coordinate{}, fmt.Errorf("%w: unexpected %s response", geo.ErrLocationUnavailable, resp.Type)
	}
}

// Scanner is the capture.Scanner view of the bridge.
type Scanner struct{ b *Bridge }

// Scanner returns the bridge as a capture scanner.
func (b *Bridge) Scanner() *Scanner { return &Scanner{b: b} }

// Available reports whether a connected device offers a scanner.
func (s *Scanner) Available() bool {
	return s.b.pick(hasScanner) != nil
}

// Scan asks the device for a photo. Device-side failures come back as
// *capture.CaptureError with the device's code and message.
func (s *Scanner) Scan(ctx context.Context, opts capture.ScanOptions) ([]capture.RawImage, error) {
	dev := s.b.pick(hasScanner)
	if dev == nil {
		return nil, &capture.CaptureError{Code: protocol.CodeUnavailable, Message: ErrNoDevice.Error(), Err: ErrNoDevice}
	}
	req, err := protocol.NewScanMessage(uuid.NewString(), string(opts.Source))
	if err != nil {
		return nil, err
	}

	resp, err := s.b.request(ctx, dev, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		if errors.Is(err, ErrDisconnected) {
			return nil, &capture.CaptureError{Code: "device_disconnected", Message: err.Error(), Err: err}
		}
		return nil, err
	}

	switch resp.Type {
	case protocol.TypeScanResult:
		d, err := resp.GetScanResultData()
		if err != nil {
			return nil, &capture.CaptureError{Code: "bad_payload", Message: err.Error(), Err: err}
		}
		images := make([]capture.RawImage, 0, len(d.Images))
		for _, img := range d.Images {
			data, err := img.Decode()
			if err != nil {
				return nil, &capture.CaptureError{Code: "bad_payload", Message: err.Error(), Err: err}
			}
			images = append(images, capture.RawImage{Bytes: data, MIMEType: img.MIMEType})
		}
		return images, nil

	case protocol.TypeError:
		d, _ := resp.GetErrorData()
		return nil, &capture.CaptureError{Code: d.Code, Message: d.Message}

	default:
		return nil, &capture.CaptureError{Code: "bad_payload", Message: fmt.Sprintf("unexpected %s response", resp.Type)}
	}
}

var (
	_ geo.Provider    = (*Locator)(nil)
	_ capture.Scanner = (*Scanner)(nil)
)
