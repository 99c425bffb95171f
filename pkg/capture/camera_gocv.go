//go:build gocv

package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"gocv.io/x/gocv"
)

// cvCamera captures stills from a local camera through OpenCV.
type cvCamera struct {
	cfg    Config
	logger *slog.Logger

	mu  sync.Mutex
	vc  *gocv.VideoCapture
	err error
}

// OpenCamera returns an OpenCV-backed camera. The device is opened lazily on
// the first availability check.
func OpenCamera(cfg Config, logger *slog.Logger) (Camera, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("capture: invalid camera config: %v", errs)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &cvCamera{cfg: cfg, logger: logger.With("component", "capture.gocv")}, nil
}

// Available opens the device if needed and reports whether it is usable.
func (c *cvCamera) Available() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.openLocked() == nil
}

func (c *cvCamera) openLocked() error {
	if c.vc != nil && c.vc.IsOpened() {
		return nil
	}
	vc, err := gocv.OpenVideoCapture(c.cfg.DeviceID)
	if err != nil {
		c.err = err
		c.logger.Warn("camera open failed", "device", c.cfg.DeviceID, "error", err)
		return err
	}
	vc.Set(gocv.VideoCaptureFrameWidth, float64(c.cfg.Width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(c.cfg.Height))
	c.vc = vc
	c.err = nil
	c.logger.Info("camera opened", "device", c.cfg.DeviceID, "width", c.cfg.Width, "height", c.cfg.Height)
	return nil
}

// Scan grabs one frame and encodes it as JPEG.
func (c *cvCamera) Scan(ctx context.Context, opts ScanOptions) ([]RawImage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.openLocked(); err != nil {
		return nil, &CaptureError{Code: "camera_unavailable", Message: err.Error(), Err: err}
	}

	frame := gocv.NewMat()
	defer frame.Close()

	for i := 0; i < c.cfg.WarmupFrames; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c.vc.Read(&frame)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if ok := c.vc.Read(&frame); !ok || frame.Empty() {
		return nil, &CaptureError{Code: CodeReadFailed, Message: "camera returned no frame"}
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, frame, []int{int(gocv.IMWriteJpegQuality), c.cfg.Quality})
	if err != nil {
		return nil, &CaptureError{Code: CodeEncode, Message: err.Error(), Err: err}
	}
	defer buf.Close()

	data := append([]byte(nil), buf.GetBytes()...)
	return []RawImage{{Bytes: data, MIMEType: "image/jpeg"}}, nil
}

// Close releases the device.
func (c *cvCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.vc == nil {
		return nil
	}
	err := c.vc.Close()
	c.vc = nil
	return err
}
