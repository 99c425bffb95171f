// Package web serves the geostamp HTTP API and live websocket feeds.
package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-geostamp/pkg/bridge"
	"github.com/teslashibe/go-geostamp/pkg/hub"
	"github.com/teslashibe/go-geostamp/pkg/notify"
	"github.com/teslashibe/go-geostamp/pkg/workflow"
)

// DriveAuth is the OAuth surface of a Drive-backed record store.
type DriveAuth interface {
	IsAuthenticated() bool
	AuthURL(state string) string
	HandleCallback(ctx context.Context, code string) error
}

// Config wires the server. Workflow is required; everything else is optional.
type Config struct {
	Addr     string
	CORS     bool
	Version  string
	Workflow *workflow.Workflow

	// CaptureTimeout bounds POST /api/capture. Zero means none.
	CaptureTimeout time.Duration

	// Bridge, when set, accepts handheld devices on /ws/device.
	Bridge *bridge.Bridge

	// Drive, when set, exposes the OAuth consent flow under /api/drive.
	Drive DriveAuth

	// Events backs GET /api/notifications.
	Events *notify.Recorder

	// Notifications carries JSON events and session snapshots to
	// /ws/notifications. Previews carries annotated JPEGs to /ws/preview.
	Notifications *hub.Hub
	Previews      *hub.Hub

	// StaticDir is served at / when non-empty.
	StaticDir string

	Logger *slog.Logger
}

// Server is the geostamp web server.
type Server struct {
	app    *fiber.App
	cfg    Config
	wf     *workflow.Workflow
	logger *slog.Logger

	// base outlives requests; background fix acquisitions run under it.
	mu   sync.RWMutex
	base context.Context

	// OAuth states issued by /api/drive/auth, keyed to their expiry.
	stateMu sync.Mutex
	states  map[string]time.Time
}

// oauthStateTTL bounds how long a consent redirect may take.
const oauthStateTTL = 10 * time.Minute

// NewServer builds the fiber app and mounts every route.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Workflow == nil {
		return nil, errors.New("web: workflow is required")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Events == nil {
		cfg.Events = notify.NewRecorder(100)
	}
	if cfg.Notifications == nil {
		cfg.Notifications = hub.New("notifications", logger)
	}
	if cfg.Previews == nil {
		cfg.Previews = hub.New("previews", logger)
	}

	s := &Server{
		cfg:    cfg,
		wf:     cfg.Workflow,
		logger: logger.With("component", "web"),
		base:   context.Background(),
		states: make(map[string]time.Time),
	}

	app := fiber.New(fiber.Config{
		AppName:               "geostamp",
		DisableStartupMessage: true,
		BodyLimit:             16 * 1024 * 1024,
	})
	app.Use(recover.New())
	if cfg.CORS {
		app.Use(cors.New(cors.Config{
			AllowOrigins: "*",
			AllowMethods: "GET,POST,OPTIONS",
			AllowHeaders: "Content-Type,Authorization",
		}))
	}

	app.Get("/health", s.handleHealth)

	api := app.Group("/api")
	api.Get("/session", s.handleSession)
	api.Get("/session/image", s.handleSessionImage)
	api.Post("/capture", s.handleCapture)
	api.Post("/upload", s.handleUpload)
	api.Post("/reset", s.handleReset)
	api.Get("/location", s.handleLocation)
	api.Post("/location/recheck", s.handleRecheck)
	api.Post("/location/refresh", s.handleRefresh)
	api.Get("/notifications", s.handleNotifications)

	if cfg.Drive != nil {
		api.Get("/drive/status", s.handleDriveStatus)
		api.Get("/drive/auth", s.handleDriveAuth)
		api.Get("/drive/callback", s.handleDriveCallback)
	}

	if cfg.Bridge != nil {
		cfg.Bridge.RegisterRoutes(app)
		cfg.Bridge.RegisterAPIRoutes(api)
	}

	app.Use("/ws/notifications", upgradeOnly)
	app.Get("/ws/notifications", websocket.New(cfg.Notifications.Handler()))
	app.Use("/ws/preview", upgradeOnly)
	app.Get("/ws/preview", websocket.New(cfg.Previews.Handler()))

	if cfg.StaticDir != "" {
		app.Static("/", cfg.StaticDir)
	}

	s.app = app
	return s, nil
}

func upgradeOnly(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start runs the hubs, starts the workflow's location check under ctx and
// listens until the app is shut down.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	s.base = ctx
	s.mu.Unlock()

	go s.cfg.Notifications.Run(ctx)
	go s.cfg.Previews.Run(ctx)

	if err := s.wf.Start(ctx); err != nil {
		s.logger.Warn("capture disabled at startup", "error", err)
	}

	s.logger.Info("listening", "addr", s.cfg.Addr)
	if err := s.app.Listen(s.cfg.Addr); err != nil {
		return fmt.Errorf("web: listen: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) baseContext() context.Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.base
}
