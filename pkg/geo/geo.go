// Package geo resolves the handheld device's position.
//
// A Provider wraps one geolocation capability and answers single-shot fix
// requests. The most recent successful fix is kept in a LastKnown value that
// the caller owns and passes to whoever needs the position:
//
//	fixes := geo.NewLastKnown()
//	if p.Available() {
//	    coord, err := fixes.Acquire(ctx, p, geo.DefaultOptions())
//	    ...
//	}
//	fix, err := fixes.Await(ctx) // waits only while an acquisition is in flight
package geo

import (
	"context"
	"math"
	"strconv"
)

// Coordinate is a latitude/longitude pair in decimal degrees.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether the pair lies within WGS84 bounds.
func (c Coordinate) Valid() bool {
	if math.IsNaN(c.Latitude) || math.IsNaN(c.Longitude) {
		return false
	}
	return c.Latitude >= -90 && c.Latitude <= 90 &&
		c.Longitude >= -180 && c.Longitude <= 180
}

// String renders "<lat>, <lon>" using the shortest decimal form that
// round-trips each float64. Negative zero renders as "0".
func (c Coordinate) String() string {
	return formatDegrees(c.Latitude) + ", " + formatDegrees(c.Longitude)
}

func formatDegrees(v float64) string {
	if v == 0 {
		return "0"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Options tunes a single fix request.
type Options struct {
	// HighAccuracy asks the capability for its most precise source (GPS over
	// network positioning), at the cost of latency and battery.
	HighAccuracy bool `json:"high_accuracy"`
}

// DefaultOptions requests a high-accuracy fix.
func DefaultOptions() Options {
	return Options{HighAccuracy: true}
}

// Provider is a geolocation capability.
type Provider interface {
	// Available reports synchronously whether the capability can be used at all.
	Available() bool

	// AcquireFix resolves a single coordinate. It fails with
	// ErrLocationUnavailable or ErrPermissionDenied. No timeout is imposed
	// beyond ctx.
	AcquireFix(ctx context.Context, opts Options) (Coordinate, error)
}
