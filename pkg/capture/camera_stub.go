//go:build !gocv

package capture

import (
	"errors"
	"log/slog"
)

// OpenCamera returns an error when built without OpenCV support.
func OpenCamera(cfg Config, logger *slog.Logger) (Camera, error) {
	return nil, errors.New("capture: OpenCV camera support not compiled in (build with -tags gocv)")
}
