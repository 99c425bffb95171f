// geostamp-server: capture, geo-stamp and upload site photos over HTTP.
// Handheld devices connect on /ws/device and lend the server their camera
// and location; the browser drives the workflow through /api.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teslashibe/go-geostamp/internal/config"
	"github.com/teslashibe/go-geostamp/internal/log"
	"github.com/teslashibe/go-geostamp/pkg/annotate"
	"github.com/teslashibe/go-geostamp/pkg/bridge"
	"github.com/teslashibe/go-geostamp/pkg/capture"
	"github.com/teslashibe/go-geostamp/pkg/geo"
	"github.com/teslashibe/go-geostamp/pkg/hub"
	"github.com/teslashibe/go-geostamp/pkg/notify"
	"github.com/teslashibe/go-geostamp/pkg/protocol"
	"github.com/teslashibe/go-geostamp/pkg/upload"
	"github.com/teslashibe/go-geostamp/pkg/web"
	"github.com/teslashibe/go-geostamp/pkg/workflow"
)

var version = "0.1.0"

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	addr := flag.String("addr", "", "Listen address (overrides http.addr)")
	static := flag.String("static", "", "Directory served at /")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.HTTP.Addr = *addr
	}
	if *debug {
		cfg.LogLevel = "debug"
	}
	log.Init(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, *configPath, *static); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, configPath, staticDir string) error {
	logger := log.Component("geostamp-server")
	base := log.L()
	for _, w := range cfg.Warnings() {
		logger.Warn("config", "warning", w)
	}

	br := bridge.New(bridge.WithLogger(base), bridge.WithPreferredDevice(cfg.Agent.DeviceID))

	locator, err := newLocator(cfg.Location, br, base)
	if err != nil {
		return err
	}
	scanner, closeScanner, err := newScanner(cfg.Capture, br, base)
	if err != nil {
		return err
	}
	defer closeScanner()

	repo, drive, closeRepo, err := newRepository(cfg, base)
	if err != nil {
		return err
	}
	defer closeRepo()

	ann, err := annotate.New()
	if err != nil {
		return err
	}
	if err := ann.Reconfigure(annotateConfig(cfg.Annotate, base)); err != nil {
		return err
	}

	events := notify.NewRecorder(100)
	notifications := hub.New("notifications", base)
	previews := hub.New("previews", base)

	wf, err := workflow.New(workflow.Config{
		Locator:          locator,
		Camera:           capture.NewDevice(scanner, base),
		Annotator:        ann,
		Uploader:         upload.NewCoordinator(repo, base),
		Sink:             notify.Multi{notify.NewLogSink(base), events, notify.NewHubSink(notifications)},
		LinkedRecordID:   cfg.Records.LinkedRecordID,
		FileName:         cfg.Records.FileNameOrDefault(),
		LocationOptions:  geo.Options{HighAccuracy: cfg.Location.HighAccuracy},
		RefreshOnCapture: cfg.Location.RefreshOnCapture,
		LocationTimeout:  cfg.Location.Timeout,
		Logger:           base,
	})
	if err != nil {
		return err
	}

	// A device that shows up after startup re-enables capture.
	if cfg.Location.Backend == config.LocationBridge {
		br.OnReady(func(id string, caps protocol.Capabilities) {
			if caps.Location && !wf.CaptureEnabled() {
				logger.Info("location device ready, rechecking", "device", id)
				wf.RecheckLocation(ctx)
			}
		})
	}

	srv, err := web.NewServer(web.Config{
		Addr:           cfg.HTTP.Addr,
		CORS:           cfg.HTTP.CORS,
		Version:        version,
		Workflow:       wf,
		CaptureTimeout: cfg.Capture.Timeout,
		Bridge:         br,
		Drive:          drive,
		Events:         events,
		Notifications:  notifications,
		Previews:       previews,
		StaticDir:      staticDir,
		Logger:         base,
	})
	if err != nil {
		return err
	}

	if configPath != "" {
		err := config.Watch(ctx, configPath, base, func(next config.Config) {
			if err := ann.Reconfigure(annotateConfig(next.Annotate, base)); err != nil {
				logger.Warn("overlay style not applied", "error", err)
				return
			}
			logger.Info("overlay style updated", "color", next.Annotate.Color, "font_size", next.Annotate.FontSize)
		})
		if err != nil {
			logger.Warn("config watch disabled", "path", configPath, "error", err)
		}
	}

	logger.Info("starting",
		"version", version,
		"addr", cfg.HTTP.Addr,
		"location", cfg.Location.Backend,
		"capture", cfg.Capture.Backend,
		"records", cfg.Records.Backend)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
