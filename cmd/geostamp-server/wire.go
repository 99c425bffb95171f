package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/teslashibe/go-geostamp/internal/config"
	"github.com/teslashibe/go-geostamp/pkg/annotate"
	"github.com/teslashibe/go-geostamp/pkg/bridge"
	"github.com/teslashibe/go-geostamp/pkg/capture"
	"github.com/teslashibe/go-geostamp/pkg/geo"
	"github.com/teslashibe/go-geostamp/pkg/records"
	"github.com/teslashibe/go-geostamp/pkg/web"
)

func newLocator(cfg config.LocationConfig, br *bridge.Bridge, logger *slog.Logger) (geo.Provider, error) {
	switch cfg.Backend {
	case config.LocationBridge:
		return br.Locator(), nil
	case config.LocationHTTP:
		return geo.NewHTTPProvider(cfg.URL, geo.WithLogger(logger))
	case config.LocationStatic:
		return geo.NewStatic(geo.Coordinate{Latitude: cfg.Latitude, Longitude: cfg.Longitude}), nil
	default:
		return nil, fmt.Errorf("unknown location backend %q", cfg.Backend)
	}
}

// newScanner returns the configured scanner and a function releasing it.
func newScanner(cfg config.CaptureConfig, br *bridge.Bridge, logger *slog.Logger) (capture.Scanner, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Backend {
	case config.CaptureBridge:
		return br.Scanner(), noop, nil
	case config.CaptureFile:
		return capture.NewFileScanner(cfg.File), noop, nil
	case config.CaptureGoCV:
		camCfg := capture.DefaultConfig()
		camCfg.DeviceID = cfg.DeviceID
		if cfg.Width > 0 {
			camCfg.Width = cfg.Width
		}
		if cfg.Height > 0 {
			camCfg.Height = cfg.Height
		}
		if cfg.Quality > 0 {
			camCfg.Quality = cfg.Quality
		}
		cam, err := capture.OpenCamera(camCfg, logger)
		if err != nil {
			return nil, nil, err
		}
		return cam, cam.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown capture backend %q", cfg.Backend)
	}
}

// newRepository returns the record store, its OAuth surface when it has one,
// and a function releasing it.
func newRepository(cfg config.Config, logger *slog.Logger) (records.Repository, web.DriveAuth, func() error, error) {
	noop := func() error { return nil }
	rc := cfg.Records
	switch rc.Backend {
	case config.RecordsSQLite:
		store, err := records.Open(rc.SQLitePath)
		if err != nil {
			return nil, nil, nil, err
		}
		return store, nil, store.Close, nil
	case config.RecordsHTTP:
		store, err := records.NewHTTPStore(rc.HTTPBaseURL,
			records.WithToken(rc.HTTPToken),
			records.WithLogger(logger))
		if err != nil {
			return nil, nil, nil, err
		}
		return store, nil, noop, nil
	case config.RecordsDrive:
		store, err := records.NewDriveStore(records.DriveConfig{
			ClientID:     rc.DriveClientID,
			ClientSecret: rc.DriveClientSecret,
			RedirectURL:  callbackURL(cfg.HTTP.Addr),
			TokenPath:    rc.DriveTokenPath,
			FolderID:     rc.DriveFolderID,
			Logger:       logger,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		if !store.IsAuthenticated() {
			logger.Warn("google drive not authorized", "visit", "/api/drive/auth")
		}
		return store, store, noop, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown records backend %q", rc.Backend)
	}
}

func callbackURL(addr string) string {
	host := addr
	if strings.HasPrefix(addr, ":") {
		host = "localhost" + addr
	}
	return "http://" + host + "/api/drive/callback"
}

func annotateConfig(cfg config.AnnotateConfig, logger *slog.Logger) annotate.Config {
	c := annotate.DefaultConfig()
	c.Apply(
		annotate.WithMaxWidth(cfg.MaxWidth),
		annotate.WithMargin(cfg.Margin),
		annotate.WithFontSize(cfg.FontSize),
		annotate.WithColor(cfg.Color),
		annotate.WithQuality(cfg.Quality),
		annotate.WithLogger(logger),
	)
	return *c
}
