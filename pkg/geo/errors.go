package geo

import (
	"errors"
	"fmt"
)

// Sentinel errors for location failures.
var (
	// ErrCapabilityUnavailable is returned when the provider reports it cannot
	// be used on this device.
	ErrCapabilityUnavailable = errors.New("geo: location capability unavailable")

	// ErrLocationUnavailable is returned when a fix could not be resolved.
	ErrLocationUnavailable = errors.New("geo: location unavailable")

	// ErrPermissionDenied is returned when the user or OS refused location access.
	ErrPermissionDenied = errors.New("geo: permission denied")

	// ErrNoFix is returned by LastKnown.Await when no fix has ever resolved and
	// no acquisition is in flight.
	ErrNoFix = errors.New("geo: no location fix available")
)

// unavailable wraps a cause under ErrLocationUnavailable.
func unavailable(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrLocationUnavailable, fmt.Sprintf(format, args...))
}
