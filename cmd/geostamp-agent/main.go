// geostamp-agent: lend this machine's camera and location to a
// geostamp-server over its device websocket.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/teslashibe/go-geostamp/internal/config"
	"github.com/teslashibe/go-geostamp/internal/log"
	"github.com/teslashibe/go-geostamp/pkg/agent"
	"github.com/teslashibe/go-geostamp/pkg/capture"
	"github.com/teslashibe/go-geostamp/pkg/geo"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	server := flag.String("server", "", "Server device endpoint (overrides agent.server_url)")
	deviceID := flag.String("id", "", "Device ID (overrides agent.device_id)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *server != "" {
		cfg.Agent.ServerURL = *server
	}
	if *deviceID != "" {
		cfg.Agent.DeviceID = *deviceID
	}
	if cfg.Agent.DeviceID == "" {
		host, _ := os.Hostname()
		cfg.Agent.DeviceID = host
	}
	log.Init(cfg.LogLevel)
	logger := log.Component("geostamp-agent")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	locator, err := agentLocator(cfg.Location)
	if err != nil {
		logger.Warn("no location capability", "error", err)
	}
	scanner, closeScanner, err := agentScanner(cfg.Capture)
	if err != nil {
		logger.Warn("no camera capability", "error", err)
	}
	defer closeScanner()

	a, err := agent.New(agent.Config{
		ServerURL: cfg.Agent.ServerURL,
		DeviceID:  cfg.Agent.DeviceID,
		Locator:   locator,
		Scanner:   scanner,
		Logger:    log.L(),
	})
	if err != nil {
		logger.Error("invalid agent config", "error", err)
		os.Exit(1)
	}

	if err := a.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("agent stopped", "error", err)
		os.Exit(1)
	}
}

// agentLocator picks the device-side location source. The bridge backend
// makes no sense on the device itself.
func agentLocator(cfg config.LocationConfig) (geo.Provider, error) {
	switch cfg.Backend {
	case config.LocationStatic:
		return geo.NewStatic(geo.Coordinate{Latitude: cfg.Latitude, Longitude: cfg.Longitude}), nil
	case config.LocationHTTP:
		p, err := geo.NewHTTPProvider(cfg.URL, geo.WithLogger(log.L()))
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("location backend %q cannot run on a device", cfg.Backend)
	}
}

func agentScanner(cfg config.CaptureConfig) (capture.Scanner, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Backend {
	case config.CaptureFile:
		return capture.NewFileScanner(cfg.File), noop, nil
	case config.CaptureGoCV:
		camCfg := capture.DefaultConfig()
		camCfg.DeviceID = cfg.DeviceID
		if cfg.Width > 0 {
			camCfg.Width, camCfg.Height = cfg.Width, cfg.Height
		}
		if cfg.Quality > 0 {
			camCfg.Quality = cfg.Quality
		}
		cam, err := capture.OpenCamera(camCfg, log.L())
		if err != nil {
			return nil, noop, err
		}
		return cam, cam.Close, nil
	default:
		return nil, noop, fmt.Errorf("capture backend %q cannot run on a device", cfg.Backend)
	}
}
