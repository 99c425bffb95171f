package agent

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-geostamp/pkg/bridge"
	"github.com/teslashibe/go-geostamp/pkg/capture"
	"github.com/teslashibe/go-geostamp/pkg/geo"
)

func startBridge(t *testing.T) (*bridge.Bridge, string) {
	t.Helper()
	b := bridge.New()
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	b.RegisterRoutes(app)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	go app.Listener(ln)
	t.Cleanup(func() { app.Shutdown() })
	return b, "ws://" + ln.Addr().String() + "/ws/device"
}

func runAgent(t *testing.T, cfg Config) {
	t.Helper()
	a, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go a.Run(ctx)

	select {
	case <-a.Connected():
	case <-time.After(3 * time.Second):
		t.Fatal("agent did not connect")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestAgentServesBridge(t *testing.T) {
	b, url := startBridge(t)
	sf := geo.Coordinate{Latitude: 37.7749, Longitude: -122.4194}
	photo := []byte{0xff, 0xd8, 0xff, 0xe0, 0, 0x10, 'J', 'F', 'I', 'F', 0}

	runAgent(t, Config{
		ServerURL: url,
		DeviceID:  "phone-1",
		Locator:   geo.NewMock(sf),
		Scanner:   capture.NewMock(photo),
	})
	waitFor(t, func() bool { return b.Locator().Available() && b.Scanner().Available() })

	c, err := b.Locator().AcquireFix(context.Background(), geo.DefaultOptions())
	if err != nil {
		t.Fatalf("AcquireFix() error = %v", err)
	}
	if c != sf {
		t.Errorf("coordinate = %v, want %v", c, sf)
	}

	dev := capture.NewDevice(b.Scanner(), nil)
	img, err := dev.Capture(context.Background(), capture.SourceCamera)
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	if img.Len() != len(photo) || img.MIMEType != "image/jpeg" {
		t.Errorf("image = %d bytes %s", img.Len(), img.MIMEType)
	}
}

func TestAgentErrors(t *testing.T) {
	b, url := startBridge(t)

	runAgent(t, Config{
		ServerURL: url,
		DeviceID:  "phone-2",
		Locator:   geo.WithError(geo.ErrPermissionDenied),
		Scanner:   capture.WithError(&capture.CaptureError{Code: "USER_DISMISSED", Message: "dismissed"}),
	})
	waitFor(t, func() bool { return b.Locator().Available() })

	_, err := b.Locator().AcquireFix(context.Background(), geo.DefaultOptions())
	if !errors.Is(err, geo.ErrPermissionDenied) {
		t.Errorf("AcquireFix() = %v, want ErrPermissionDenied", err)
	}

	_, err = capture.NewDevice(b.Scanner(), nil).Capture(context.Background(), capture.SourceCamera)
	var ce *capture.CaptureError
	if !errors.As(err, &ce) || ce.Code != "USER_DISMISSED" || ce.Message != "dismissed" {
		t.Errorf("Capture() = %v", err)
	}
}

func TestAgentWithoutCapabilities(t *testing.T) {
	b, url := startBridge(t)
	runAgent(t, Config{ServerURL: url, DeviceID: "bare"})
	waitFor(t, func() bool { return b.DeviceCount() == 1 })

	if b.Locator().Available() || b.Scanner().Available() {
		t.Error("capabilities advertised without providers")
	}
}

func TestNewValidates(t *testing.T) {
	tests := []Config{
		{ServerURL: "http://host/ws/device", DeviceID: "x"},
		{ServerURL: "ws://host/ws/device"},
		{ServerURL: "::bad", DeviceID: "x"},
	}
	for _, cfg := range tests {
		if _, err := New(cfg); err == nil {
			t.Errorf("New(%+v) succeeded", cfg)
		}
	}
}
