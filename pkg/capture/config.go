package capture

import "fmt"

// Config holds camera settings for the OpenCV scanner.
type Config struct {
	DeviceID int `json:"device_id" yaml:"device_id"` // V4L2/AVFoundation index
	Width    int `json:"width" yaml:"width"`         // Requested frame width in pixels
	Height   int `json:"height" yaml:"height"`       // Requested frame height in pixels
	Quality  int `json:"quality" yaml:"quality"`     // JPEG quality 1-100

	// WarmupFrames are read and discarded after opening so auto exposure
	// settles before the real shot.
	WarmupFrames int `json:"warmup_frames" yaml:"warmup_frames"`
}

// Limits for camera settings.
const (
	MaxWidth        = 4608
	MaxHeight       = 3456
	MaxWarmupFrames = 60
)

// Preset names for common configurations.
const (
	PresetDefault = "default"
	Preset720p    = "720p"
	Preset1080p   = "1080p"
	Preset4K      = "4k"
)

// DefaultConfig returns 1080p at quality 90 from the first camera.
func DefaultConfig() Config {
	return Config{
		DeviceID:     0,
		Width:        1920,
		Height:       1080,
		Quality:      90,
		WarmupFrames: 5,
	}
}

// Presets returns all available preset configurations.
func Presets() map[string]Config {
	hd := DefaultConfig()
	hd.Width, hd.Height = 1280, 720

	uhd := DefaultConfig()
	uhd.Width, uhd.Height = 3840, 2160

	return map[string]Config{
		PresetDefault: DefaultConfig(),
		Preset720p:    hd,
		Preset1080p:   DefaultConfig(),
		Preset4K:      uhd,
	}
}

// GetPreset returns a preset config by name, or nil if not found.
func GetPreset(name string) *Config {
	if cfg, ok := Presets()[name]; ok {
		return &cfg
	}
	return nil
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errs []string
	if c.DeviceID < 0 {
		errs = append(errs, "device_id must not be negative")
	}
	if c.Width < 160 || c.Width > MaxWidth {
		errs = append(errs, fmt.Sprintf("width must be between 160 and %d", MaxWidth))
	}
	if c.Height < 120 || c.Height > MaxHeight {
		errs = append(errs, fmt.Sprintf("height must be between 120 and %d", MaxHeight))
	}
	if c.Quality < 1 || c.Quality > 100 {
		errs = append(errs, "quality must be between 1 and 100")
	}
	if c.WarmupFrames < 0 || c.WarmupFrames > MaxWarmupFrames {
		errs = append(errs, fmt.Sprintf("warmup_frames must be between 0 and %d", MaxWarmupFrames))
	}
	return errs
}
