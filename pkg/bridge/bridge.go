// Package bridge exposes the location and camera capabilities of a handheld
// device connected over websocket.
//
// The device runs an agent that dials /ws/device/:id, announces its
// capabilities with a hello message and then answers locate and scan
// requests. Locator and Scanner adapt the connected device to geo.Provider
// and capture.Scanner so the workflow cannot tell it from a local device.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/teslashibe/go-geostamp/pkg/protocol"
)

// Sentinel errors.
var (
	ErrNoDevice     = errors.New("bridge: no device connected")
	ErrDisconnected = errors.New("bridge: device disconnected")
)

// Device is a connected handheld.
type Device struct {
	ID        string
	Connected time.Time

	conn *websocket.Conn
	wmu  sync.Mutex // serialises writes

	mu       sync.Mutex
	caps     protocol.Capabilities
	platform string
	lastSeen time.Time
	pending  map[string]chan *protocol.Message

	closed chan struct{}
}

func (d *Device) send(msg *protocol.Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}
	d.wmu.Lock()
	defer d.wmu.Unlock()
	return d.conn.WriteMessage(websocket.TextMessage, data)
}

// Capabilities returns what the device announced.
func (d *Device) Capabilities() protocol.Capabilities {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.caps
}

// Bridge tracks connected devices and routes requests to them.
type Bridge struct {
	logger    *slog.Logger
	preferred string

	mu      sync.RWMutex
	devices map[string]*Device
	onReady func(id string, caps protocol.Capabilities)

	messagesReceived atomic.Uint64
	messagesSent     atomic.Uint64
	requestsFailed   atomic.Uint64
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bridge) { b.logger = logger }
}

// WithPreferredDevice routes requests to id whenever it is connected.
func WithPreferredDevice(id string) Option {
	return func(b *Bridge) { b.preferred = id }
}

// New creates a bridge with no devices.
func New(opts ...Option) *Bridge {
	b := &Bridge{
		logger:  slog.Default(),
		devices: make(map[string]*Device),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With("component", "bridge")
	return b
}

// OnReady sets a callback run after a device announces its capabilities.
// It runs on the device's read goroutine and must not block.
func (b *Bridge) OnReady(fn func(id string, caps protocol.Capabilities)) {
	b.mu.Lock()
	b.onReady = fn
	b.mu.Unlock()
}

// RegisterRoutes mounts the device endpoint on app.
func (b *Bridge) RegisterRoutes(app fiber.Router) {
	app.Use("/ws/device", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/device", websocket.New(b.handleDevice))
	app.Get("/ws/device/:id", websocket.New(b.handleDevice))
}

func (b *Bridge) handleDevice(c *websocket.Conn) {
	id := c.Params("id")
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now()
	dev := &Device{
		ID:        id,
		Connected: now,
		conn:      c,
		lastSeen:  now,
		pending:   make(map[string]chan *protocol.Message),
		closed:    make(chan struct{}),
	}

	b.mu.Lock()
	if old, ok := b.devices[id]; ok {
		old.conn.Close()
	}
	b.devices[id] = dev
	count := len(b.devices)
	b.mu.Unlock()
	b.logger.Info("device connected", "device", id, "devices", count)

	defer func() {
		b.mu.Lock()
		if b.devices[id] == dev {
			delete(b.devices, id)
		}
		count := len(b.devices)
		b.mu.Unlock()
		close(dev.closed)
		b.logger.Info("device disconnected", "device", id, "devices", count)
	}()

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			b.logger.Debug("device read ended", "device", id, "error", err)
			return
		}
		b.messagesReceived.Add(1)

		dev.mu.Lock()
		dev.lastSeen = time.Now()
		dev.mu.Unlock()

		b.handleMessage(dev, data)
	}
}

func (b *Bridge) handleMessage(dev *Device, data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		b.logger.Warn("bad message from device", "device", dev.ID, "error", err)
		return
	}

	switch msg.Type {
	case protocol.TypeHello:
		hello, err := msg.GetHelloData()
		if err != nil {
			b.logger.Warn("bad hello", "device", dev.ID, "error", err)
			return
		}
		dev.mu.Lock()
		dev.caps = hello.Capabilities
		dev.platform = hello.Platform
		dev.mu.Unlock()
		b.logger.Info("device ready", "device", dev.ID,
			"location", hello.Capabilities.Location,
			"scanner", hello.Capabilities.Scanner,
			"platform", hello.Platform)

		b.mu.RLock()
		fn := b.onReady
		b.mu.RUnlock()
		if fn != nil {
			fn(dev.ID, hello.Capabilities)
		}

	case protocol.TypeLocation, protocol.TypeScanResult, protocol.TypeError:
		dev.mu.Lock()
		ch, ok := dev.pending[msg.ID]
		delete(dev.pending, msg.ID)
		dev.mu.Unlock()
		if !ok {
			b.logger.Debug("response for unknown request", "device", dev.ID, "id", msg.ID, "type", msg.Type)
			return
		}
		ch <- msg

	case protocol.TypePing:
		var ping protocol.PingData
		msg.ParseData(&ping)
		if pong, err := protocol.NewPongMessage(ping.SentAt); err == nil {
			b.messagesSent.Add(1)
			dev.send(pong)
		}

	case protocol.TypePong:
	}
}

// pick returns the device that should serve a request needing has.
func (b *Bridge) pick(has func(protocol.Capabilities) bool) *Device {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.preferred != "" {
		if d, ok := b.devices[b.preferred]; ok && has(d.Capabilities()) {
			return d
		}
	}
	var best *Device
	for _, d := range b.devices {
		if !has(d.Capabilities()) {
			continue
		}
		if best == nil || d.Connected.After(best.Connected) {
			best = d
		}
	}
	return best
}

// request sends msg to dev and waits for the response with the same ID.
func (b *Bridge) request(ctx context.Context, dev *Device, msg *protocol.Message) (*protocol.Message, error) {
	ch := make(chan *protocol.Message, 1)
	dev.mu.Lock()
	dev.pending[msg.ID] = ch
	dev.mu.Unlock()

	cleanup := func() {
		dev.mu.Lock()
		delete(dev.pending, msg.ID)
		dev.mu.Unlock()
	}

	b.messagesSent.Add(1)
	if err := dev.send(msg); err != nil {
		cleanup()
		b.requestsFailed.Add(1)
		return nil, fmt.Errorf("%w: %v", ErrDisconnected, err)
	}

	select {
	case resp := <-ch:
		return resp, nil
	case <-dev.closed:
		cleanup()
		b.requestsFailed.Add(1)
		return nil, ErrDisconnected
	case <-ctx.Done():
		cleanup()
		b.requestsFailed.Add(1)
		return nil, ctx.Err()
	}
}

// DeviceInfo describes a connected device.
type DeviceInfo struct {
	ID           string                `json:"id"`
	Platform     string                `json:"platform,omitempty"`
	Capabilities protocol.Capabilities `json:"capabilities"`
	Connected    time.Time             `json:"connected"`
	LastSeen     time.Time             `json:"last_seen"`
	Pending      int                   `json:"pending"`
}

// Devices lists connected devices ordered by ID.
func (b *Bridge) Devices() []DeviceInfo {
	b.mu.RLock()
	defer b.mu.RUnlock()

	infos := make([]DeviceInfo, 0, len(b.devices))
	for _, d := range b.devices {
		d.mu.Lock()
		infos = append(infos, DeviceInfo{
			ID:           d.ID,
			Platform:     d.platform,
			Capabilities: d.caps,
			Connected:    d.Connected,
			LastSeen:     d.lastSeen,
			Pending:      len(d.pending),
		})
		d.mu.Unlock()
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// DeviceCount returns the number of connected devices.
func (b *Bridge) DeviceCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.devices)
}

// Stats contains bridge counters.
type Stats struct {
	DeviceCount      int    `json:"device_count"`
	MessagesReceived uint64 `json:"messages_received"`
	MessagesSent     uint64 `json:"messages_sent"`
	RequestsFailed   uint64 `json:"requests_failed"`
}

// GetStats returns bridge counters.
func (b *Bridge) GetStats() Stats {
	return Stats{
		DeviceCount:      b.DeviceCount(),
		MessagesReceived: b.messagesReceived.Load(),
		MessagesSent:     b.messagesSent.Load(),
		RequestsFailed:   b.requestsFailed.Load(),
	}
}

// RegisterAPIRoutes mounts GET /devices and GET /devices/stats on api.
func (b *Bridge) RegisterAPIRoutes(api fiber.Router) {
	devices := api.Group("/devices")
	devices.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"devices": b.Devices(),
			"count":   b.DeviceCount(),
		})
	})
	devices.Get("/stats", func(c *fiber.Ctx) error {
		return c.JSON(b.GetStats())
	})
}
