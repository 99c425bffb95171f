// Package agent runs on the handheld device. It dials the server's device
// bridge, announces which capabilities it has and answers locate and scan
// requests with local providers.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-geostamp/pkg/capture"
	"github.com/teslashibe/go-geostamp/pkg/geo"
	"github.com/teslashibe/go-geostamp/pkg/protocol"
)

// Config configures an Agent.
type Config struct {
	ServerURL string // e.g. ws://host:8080/ws/device
	DeviceID  string

	Locator geo.Provider    // nil: no location capability
	Scanner capture.Scanner // nil: no camera capability

	// Reconnect delays grow from MinBackoff to MaxBackoff.
	MinBackoff time.Duration
	MaxBackoff time.Duration

	Logger *slog.Logger
}

// Agent is the device-side end of the bridge.
type Agent struct {
	cfg    Config
	logger *slog.Logger

	wmu  sync.Mutex
	conn *websocket.Conn

	connected chan struct{} // closed on first successful hello
	once      sync.Once
}

// New validates cfg and returns an agent.
func New(cfg Config) (*Agent, error) {
	u, err := url.Parse(cfg.ServerURL)
	if err != nil {
		return nil, fmt.Errorf("agent: parse server url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("agent: server url %q must be ws:// or wss://", cfg.ServerURL)
	}
	if cfg.DeviceID == "" {
		return nil, errors.New("agent: device id is required")
	}
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = 500 * time.Millisecond
	}
	if cfg.MaxBackoff < cfg.MinBackoff {
		cfg.MaxBackoff = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{
		cfg:       cfg,
		logger:    logger.With("component", "agent", "device", cfg.DeviceID),
		connected: make(chan struct{}),
	}, nil
}

// Connected is closed once the first hello has been sent.
func (a *Agent) Connected() <-chan struct{} {
	return a.connected
}

func (a *Agent) endpoint() string {
	return strings.TrimRight(a.cfg.ServerURL, "/") + "/" + url.PathEscape(a.cfg.DeviceID)
}

func (a *Agent) capabilities() protocol.Capabilities {
	return protocol.Capabilities{
		Location: a.cfg.Locator != nil && a.cfg.Locator.Available(),
		Scanner:  a.cfg.Scanner != nil && a.cfg.Scanner.Available(),
	}
}

// Run keeps a connection to the server until ctx is done, reconnecting with
// backoff. It returns ctx.Err().
func (a *Agent) Run(ctx context.Context) error {
	backoff := a.cfg.MinBackoff
	for {
		start := time.Now()
		err := a.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if time.Since(start) > a.cfg.MaxBackoff {
			backoff = a.cfg.MinBackoff
		}
		a.logger.Warn("connection lost, retrying", "error", err, "in", backoff)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, a.cfg.MaxBackoff)
	}
}

// session runs one connection until it fails or ctx is done.
func (a *Agent) session(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, a.endpoint(), nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	a.wmu.Lock()
	a.conn = conn
	a.wmu.Unlock()

	sctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-sctx.Done()
		conn.Close()
	}()

	caps := a.capabilities()
	hello, err := protocol.NewHelloMessage(a.cfg.DeviceID, runtime.GOOS, caps)
	if err != nil {
		return err
	}
	if err := a.send(hello); err != nil {
		return fmt.Errorf("hello: %w", err)
	}
	a.logger.Info("connected", "server", a.endpoint(), "location", caps.Location, "scanner", caps.Scanner)
	a.once.Do(func() { close(a.connected) })

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		msg, err := protocol.ParseMessage(data)
		if err != nil {
			a.logger.Warn("bad message", "error", err)
			continue
		}
		switch msg.Type {
		case protocol.TypeLocate:
			go a.handleLocate(sctx, msg)
		case protocol.TypeScan:
			go a.handleScan(sctx, msg)
		case protocol.TypePing:
			var ping protocol.PingData
			msg.ParseData(&ping)
			if pong, err := protocol.NewPongMessage(ping.SentAt); err == nil {
				a.send(pong)
			}
		}
	}
}

func (a *Agent) send(msg *protocol.Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}
	a.wmu.Lock()
	defer a.wmu.Unlock()
	if a.conn == nil {
		return errors.New("not connected")
	}
	a.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return a.conn.WriteMessage(websocket.TextMessage, data)
}

func (a *Agent) replyError(id, code, message string) {
	msg, err := protocol.NewErrorMessage(id, code, message)
	if err == nil {
		err = a.send(msg)
	}
	if err != nil {
		a.logger.Warn("failed to send error reply", "id", id, "error", err)
	}
}

func (a *Agent) handleLocate(ctx context.Context, msg *protocol.Message) {
	if a.cfg.Locator == nil {
		a.replyError(msg.ID, protocol.CodeUnsupported, "location is not available on this device")
		return
	}
	req, _ := msg.GetLocateRequest()
	c, err := a.cfg.Locator.AcquireFix(ctx, geo.Options{HighAccuracy: req.HighAccuracy})
	switch {
	case errors.Is(err, geo.ErrPermissionDenied):
		a.replyError(msg.ID, protocol.CodePermissionDenied, err.Error())
		return
	case err != nil:
		a.replyError(msg.ID, protocol.CodeUnavailable, err.Error())
		return
	}

	resp, err := protocol.NewLocationMessage(msg.ID, c.Latitude, c.Longitude, 0)
	if err == nil {
		err = a.send(resp)
	}
	if err != nil {
		a.logger.Warn("failed to send location", "id", msg.ID, "error", err)
		return
	}
	a.logger.Debug("location sent", "id", msg.ID, "coordinate", c.String())
}

func (a *Agent) handleScan(ctx context.Context, msg *protocol.Message) {
	if a.cfg.Scanner == nil {
		a.replyError(msg.ID, protocol.CodeUnsupported, "camera is not available on this device")
		return
	}
	req, _ := msg.GetScanRequest()
	images, err := a.cfg.Scanner.Scan(ctx, capture.ScanOptions{
		Source:           capture.Source(req.ImageSource),
		ReturnImageBytes: req.ReturnImageBytes,
	})
	if err != nil {
		var ce *capture.CaptureError
		if errors.As(err, &ce) {
			a.replyError(msg.ID, ce.Code, ce.Message)
		} else {
			a.replyError(msg.ID, capture.CodeUnknown, err.Error())
		}
		return
	}

	out := make([]protocol.ScanImage, 0, len(images))
	for _, img := range images {
		out = append(out, protocol.EncodeImage(img.MIMEType, img.Bytes))
	}
	resp, err := protocol.NewScanResultMessage(msg.ID, out)
	if err == nil {
		err = a.send(resp)
	}
	if err != nil {
		a.logger.Warn("failed to send scan result", "id", msg.ID, "error", err)
		return
	}
	a.logger.Info("scan sent", "id", msg.ID, "images", len(out))
}
