package annotate

import (
	"errors"
	"fmt"
	"image/color"
	"log/slog"
	"strconv"
	"strings"
)

// Config controls the output geometry and the overlay style.
type Config struct {
	// MaxWidth caps the output width. Narrower images keep their size.
	MaxWidth int

	// Margin is the distance in pixels from the right and bottom edges to the
	// text's bounding box.
	Margin int

	// FontSize is the overlay text height in pixels.
	FontSize float64

	// Color is "#RRGGBB", "#RGB" or one of the names ParseColor knows.
	Color string

	// Quality is the JPEG quality, 1-100.
	Quality int

	Logger *slog.Logger
}

// Option is a functional option for configuring the Annotator.
type Option func(*Config)

// WithMaxWidth sets the maximum output width.
func WithMaxWidth(w int) Option {
	return func(c *Config) {
		c.MaxWidth = w
	}
}

// WithMargin sets the text inset from the bottom-right corner.
func WithMargin(px int) Option {
	return func(c *Config) {
		c.Margin = px
	}
}

// WithFontSize sets the overlay font size.
func WithFontSize(px float64) Option {
	return func(c *Config) {
		c.FontSize = px
	}
}

// WithColor sets the overlay color.
func WithColor(s string) Option {
	return func(c *Config) {
		c.Color = s
	}
}

// WithQuality sets the JPEG quality.
func WithQuality(q int) Option {
	return func(c *Config) {
		c.Quality = q
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// DefaultConfig returns an 800px wide canvas with 40px white text inset 20px.
func DefaultConfig() *Config {
	return &Config{
		MaxWidth: 800,
		Margin:   20,
		FontSize: 40,
		Color:    "white",
		Quality:  92,
		Logger:   slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks that every value is usable.
func (c *Config) Validate() error {
	var errs []error
	if c.MaxWidth < 1 {
		errs = append(errs, fmt.Errorf("max width %d must be positive", c.MaxWidth))
	}
	if c.Margin < 0 {
		errs = append(errs, fmt.Errorf("margin %d must not be negative", c.Margin))
	}
	if c.FontSize <= 0 {
		errs = append(errs, fmt.Errorf("font size %g must be positive", c.FontSize))
	}
	if c.Quality < 1 || c.Quality > 100 {
		errs = append(errs, fmt.Errorf("quality %d must be between 1 and 100", c.Quality))
	}
	if _, err := ParseColor(c.Color); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

var namedColors = map[string]color.RGBA{
	"white":  {0xff, 0xff, 0xff, 0xff},
	"black":  {0x00, 0x00, 0x00, 0xff},
	"yellow": {0xff, 0xff, 0x00, 0xff},
	"red":    {0xff, 0x00, 0x00, 0xff},
}

// ParseColor parses "#RRGGBB", "#RGB" or a color name.
func ParseColor(s string) (color.RGBA, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if c, ok := namedColors[s]; ok {
		return c, nil
	}
	hex, ok := strings.CutPrefix(s, "#")
	if !ok {
		return color.RGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return color.RGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}
