// Package annotate stamps a coordinate onto a photograph.
//
// Annotate decodes the raw capture, scales it down to the configured maximum
// width, draws the "<lat>, <lon>" text in the bottom-right corner and encodes
// the result as JPEG. It does no I/O and keeps nothing between calls.
package annotate

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"log/slog"
	"math"
	"sync"

	// Decoders registered with image.Decode.
	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/teslashibe/go-geostamp/pkg/geo"
)

// Image is an annotated, JPEG-encoded photograph.
type Image struct {
	Data   []byte `json:"-"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Text   string `json:"text"`

	// Anchor is the bottom-right corner of the text's bounding box.
	Anchor image.Point `json:"anchor"`
}

// Len returns the encoded size in bytes.
func (img *Image) Len() int {
	if img == nil {
		return 0
	}
	return len(img.Data)
}

// FormatCoordinate renders the overlay text for c.
func FormatCoordinate(c geo.Coordinate) string {
	return c.String()
}

var boldFont = sync.OnceValues(func() (*opentype.Font, error) {
	return opentype.Parse(gobold.TTF)
})

// Annotator composites coordinate overlays. It is safe for concurrent use.
type Annotator struct {
	mu     sync.RWMutex
	cfg    Config
	color  color.RGBA
	logger *slog.Logger
}

// New creates an Annotator from DefaultConfig and opts.
func New(opts ...Option) (*Annotator, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	if _, err := boldFont(); err != nil {
		return nil, fmt.Errorf("annotate: load font: %w", err)
	}
	a := &Annotator{}
	if err := a.Reconfigure(*cfg); err != nil {
		return nil, err
	}
	return a, nil
}

// Reconfigure swaps the style. Annotations already running keep the old one.
func (a *Annotator) Reconfigure(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("annotate: %w", err)
	}
	col, _ := ParseColor(cfg.Color)
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.cfg = cfg
	a.color = col
	a.logger = logger.With("component", "annotate")
	return nil
}

// Config returns a copy of the active configuration.
func (a *Annotator) Config() Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cfg
}

// MaxPixels caps the source resolution Annotate will decode. Headers are
// checked before any pixel buffer is allocated.
const MaxPixels = 120_000_000

// OutputSize returns the canvas size for a w×h source: at most maxWidth wide,
// aspect ratio kept, never upscaled.
func OutputSize(w, h, maxWidth int) (int, int) {
	if w <= maxWidth {
		return w, h
	}
	ratio := float64(w) / float64(h)
	outH := int(math.Round(float64(maxWidth) / ratio))
	return maxWidth, max(outH, 1)
}

// Annotate decodes raw, stamps c onto it and returns the JPEG result.
func (a *Annotator) Annotate(raw []byte, c geo.Coordinate) (*Image, error) {
	if len(raw) == 0 {
		return nil, ErrEmptyImage
	}

	a.mu.RLock()
	cfg, col, logger := a.cfg, a.color, a.logger
	a.mu.RUnlock()

	hdr, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	if px := int64(hdr.Width) * int64(hdr.Height); px > MaxPixels {
		return nil, &DecodeError{Format: format, Err: fmt.Errorf("%w: %dx%d", ErrTooLarge, hdr.Width, hdr.Height)}
	}

	src, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	b := src.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, &DecodeError{Format: format, Err: fmt.Errorf("zero-sized image %dx%d", b.Dx(), b.Dy())}
	}

	w, h := OutputSize(b.Dx(), b.Dy(), cfg.MaxWidth)
	canvas := image.NewRGBA(image.Rect(0, 0, w, h))
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(canvas, canvas.Bounds(), src, b.Min, draw.Src)
	} else {
		draw.CatmullRom.Scale(canvas, canvas.Bounds(), src, b, draw.Src, nil)
	}

	text := FormatCoordinate(c)
	anchor, err := drawText(canvas, text, cfg, col)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: cfg.Quality}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}

	logger.Debug("image annotated",
		"format", format,
		"src", fmt.Sprintf("%dx%d", b.Dx(), b.Dy()),
		"out", fmt.Sprintf("%dx%d", w, h),
		"text", text,
		"bytes", buf.Len())

	return &Image{
		Data:   buf.Bytes(),
		Width:  w,
		Height: h,
		Text:   text,
		Anchor: anchor,
	}, nil
}

// drawText right- and bottom-aligns text so its box ends Margin pixels from
// the canvas edges, and returns that corner.
func drawText(dst *image.RGBA, text string, cfg Config, col color.RGBA) (image.Point, error) {
	f, err := boldFont()
	if err != nil {
		return image.Point{}, fmt.Errorf("annotate: load font: %w", err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    cfg.FontSize,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return image.Point{}, fmt.Errorf("annotate: font face: %w", err)
	}
	defer face.Close()

	b := dst.Bounds()
	anchor := image.Pt(b.Dx()-cfg.Margin, b.Dy()-cfg.Margin)

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(col),
		Face: face,
	}
	width := d.MeasureString(text)
	descent := face.Metrics().Descent
	d.Dot = fixed.Point26_6{
		X: fixed.I(anchor.X) - width,
		Y: fixed.I(anchor.Y) - descent,
	}
	d.DrawString(text)
	return anchor, nil
}
