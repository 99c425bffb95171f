// Package config loads go-geostamp process configuration from a YAML file
// with environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Backend names accepted by the config file.
const (
	LocationBridge = "bridge"
	LocationHTTP   = "http"
	LocationStatic = "static"

	CaptureBridge = "bridge"
	CaptureGoCV   = "gocv"
	CaptureFile   = "file"

	RecordsSQLite = "sqlite"
	RecordsDrive  = "drive"
	RecordsHTTP   = "http"
)

// DefaultFileName is the attachment name used when an upload names none.
const DefaultFileName = "CapturedImage.png"

// Config is the root configuration for the server and agent commands.
type Config struct {
	LogLevel string         `yaml:"log_level"`
	HTTP     HTTPConfig     `yaml:"http"`
	Location LocationConfig `yaml:"location"`
	Capture  CaptureConfig  `yaml:"capture"`
	Annotate AnnotateConfig `yaml:"annotate"`
	Records  RecordsConfig  `yaml:"records"`
	Agent    AgentConfig    `yaml:"agent"`
}

// HTTPConfig configures the web server.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
	CORS bool   `yaml:"cors"`
}

// LocationConfig selects and configures the location provider.
type LocationConfig struct {
	Backend      string        `yaml:"backend"`
	URL          string        `yaml:"url"`
	HighAccuracy bool          `yaml:"high_accuracy"`
	Latitude     float64       `yaml:"latitude"`
	Longitude    float64       `yaml:"longitude"`
	Timeout      time.Duration `yaml:"timeout"`

	// RefreshOnCapture re-acquires a fix in the background on every capture.
	RefreshOnCapture bool `yaml:"refresh_on_capture"`
}

// CaptureConfig selects and configures the capture scanner.
type CaptureConfig struct {
	Backend  string        `yaml:"backend"`
	DeviceID int           `yaml:"device_id"`
	Width    int           `yaml:"width"`
	Height   int           `yaml:"height"`
	Quality  int           `yaml:"quality"`
	File     string        `yaml:"file"`
	Timeout  time.Duration `yaml:"timeout"`
}

// AnnotateConfig is the overlay style. It can be reloaded at runtime.
type AnnotateConfig struct {
	MaxWidth int     `yaml:"max_width"`
	Margin   int     `yaml:"margin"`
	FontSize float64 `yaml:"font_size"`
	Color    string  `yaml:"color"`
	Quality  int     `yaml:"quality"`
}

// RecordsConfig selects the persistence collaborator.
type RecordsConfig struct {
	Backend        string `yaml:"backend"`
	LinkedRecordID string `yaml:"linked_record_id"`
	FileName       string `yaml:"file_name"`

	SQLitePath string `yaml:"sqlite_path"`

	DriveFolderID     string `yaml:"drive_folder_id"`
	DriveClientID     string `yaml:"drive_client_id"`
	DriveClientSecret string `yaml:"drive_client_secret"`
	DriveTokenPath    string `yaml:"drive_token_path"`

	HTTPBaseURL string `yaml:"http_base_url"`
	HTTPToken   string `yaml:"http_token"`
}

// AgentConfig configures the handheld agent.
type AgentConfig struct {
	ServerURL string `yaml:"server_url"`
	DeviceID  string `yaml:"device_id"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel: "info",
		HTTP:     HTTPConfig{Addr: ":8080", CORS: true},
		Location: LocationConfig{
			Backend:      LocationBridge,
			HighAccuracy: true,
		},
		Capture: CaptureConfig{
			Backend: CaptureBridge,
			Width:   1920,
			Height:  1080,
			Quality: 90,
		},
		Annotate: AnnotateConfig{
			MaxWidth: 800,
			Margin:   20,
			FontSize: 40,
			Color:    "white",
			Quality:  92,
		},
		Records: RecordsConfig{
			Backend:    RecordsSQLite,
			FileName:   DefaultFileName,
			SQLitePath: "geostamp.db",
		},
		Agent: AgentConfig{
			ServerURL: "ws://localhost:8080/ws/device",
		},
	}
}

// Load reads path (if non-empty), then applies environment overrides.
// A missing file is not an error when path is empty.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := Parse(data, &cfg); err != nil {
			return cfg, err
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Parse decodes YAML onto cfg, keeping fields the document leaves out.
func Parse(data []byte, cfg *Config) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.LogLevel = getenv("GEOSTAMP_LOG_LEVEL", cfg.LogLevel)
	cfg.HTTP.Addr = getenv("GEOSTAMP_HTTP_ADDR", cfg.HTTP.Addr)
	cfg.Location.Backend = getenv("GEOSTAMP_LOCATION_BACKEND", cfg.Location.Backend)
	cfg.Location.URL = getenv("GEOSTAMP_LOCATION_URL", cfg.Location.URL)
	cfg.Location.Latitude = getenvFloat("GEOSTAMP_LATITUDE", cfg.Location.Latitude)
	cfg.Location.Longitude = getenvFloat("GEOSTAMP_LONGITUDE", cfg.Location.Longitude)
	cfg.Capture.Backend = getenv("GEOSTAMP_CAPTURE_BACKEND", cfg.Capture.Backend)
	cfg.Capture.DeviceID = getenvInt("GEOSTAMP_CAMERA_DEVICE", cfg.Capture.DeviceID)
	cfg.Capture.File = getenv("GEOSTAMP_CAPTURE_FILE", cfg.Capture.File)
	cfg.Annotate.Color = getenv("GEOSTAMP_OVERLAY_COLOR", cfg.Annotate.Color)
	cfg.Records.Backend = getenv("GEOSTAMP_RECORDS_BACKEND", cfg.Records.Backend)
	cfg.Records.LinkedRecordID = getenv("GEOSTAMP_RECORD_ID", cfg.Records.LinkedRecordID)
	cfg.Records.SQLitePath = getenv("GEOSTAMP_SQLITE_PATH", cfg.Records.SQLitePath)
	cfg.Records.DriveFolderID = getenv("GEOSTAMP_DRIVE_FOLDER_ID", cfg.Records.DriveFolderID)
	cfg.Records.DriveClientID = getenv("GOOGLE_CLIENT_ID", cfg.Records.DriveClientID)
	cfg.Records.DriveClientSecret = getenv("GOOGLE_CLIENT_SECRET", cfg.Records.DriveClientSecret)
	cfg.Records.HTTPBaseURL = getenv("GEOSTAMP_RECORDS_URL", cfg.Records.HTTPBaseURL)
	cfg.Records.HTTPToken = getenv("GEOSTAMP_RECORDS_TOKEN", cfg.Records.HTTPToken)
	cfg.Agent.ServerURL = getenv("GEOSTAMP_SERVER_URL", cfg.Agent.ServerURL)
	cfg.Agent.DeviceID = getenv("GEOSTAMP_DEVICE_ID", cfg.Agent.DeviceID)
}

// Validate checks backend names and required per-backend settings.
func (c Config) Validate() error {
	var errs []error

	switch c.Location.Backend {
	case LocationBridge, LocationStatic:
	case LocationHTTP:
		if c.Location.URL == "" {
			errs = append(errs, errors.New("location.url is required for the http backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown location backend %q", c.Location.Backend))
	}

	switch c.Capture.Backend {
	case CaptureBridge, CaptureGoCV:
	case CaptureFile:
		if c.Capture.File == "" {
			errs = append(errs, errors.New("capture.file is required for the file backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown capture backend %q", c.Capture.Backend))
	}

	switch c.Records.Backend {
	case RecordsSQLite:
		if c.Records.SQLitePath == "" {
			errs = append(errs, errors.New("records.sqlite_path is required for the sqlite backend"))
		}
	case RecordsDrive:
		if c.Records.DriveClientID == "" || c.Records.DriveClientSecret == "" {
			errs = append(errs, errors.New("records.drive_client_id and drive_client_secret are required for the drive backend"))
		}
	case RecordsHTTP:
		if c.Records.HTTPBaseURL == "" {
			errs = append(errs, errors.New("records.http_base_url is required for the http backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown records backend %q", c.Records.Backend))
	}

	if c.Annotate.MaxWidth <= 0 {
		errs = append(errs, errors.New("annotate.max_width must be positive"))
	}
	if c.Annotate.Quality < 1 || c.Annotate.Quality > 100 {
		errs = append(errs, errors.New("annotate.quality must be between 1 and 100"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Warnings lists settings that pass Validate but leave a server feature
// unusable. The agent shares this config and ignores them.
func (c Config) Warnings() []string {
	var w []string
	if strings.TrimSpace(c.Records.LinkedRecordID) == "" {
		w = append(w, "records.linked_record_id is empty; every upload will be rejected")
	}
	return w
}

// FileNameOrDefault returns the configured attachment name or the default.
func (r RecordsConfig) FileNameOrDefault() string {
	if strings.TrimSpace(r.FileName) == "" {
		return DefaultFileName
	}
	return r.FileName
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getenvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
