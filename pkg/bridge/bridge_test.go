package bridge

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-geostamp/pkg/capture"
	"github.com/teslashibe/go-geostamp/pkg/geo"
	"github.com/teslashibe/go-geostamp/pkg/protocol"
)

func startBridge(t *testing.T, opts ...Option) (*Bridge, string) {
	t.Helper()
	b := New(opts...)
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	b.RegisterRoutes(app)
	b.RegisterAPIRoutes(app.Group("/api"))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	go app.Listener(ln)
	t.Cleanup(func() { app.Shutdown() })
	return b, "ws://" + ln.Addr().String()
}

// dialDevice connects and says hello with caps.
func dialDevice(t *testing.T, base, id string, caps protocol.Capabilities) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(base+"/ws/device/"+id, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	hello, _ := protocol.NewHelloMessage(id, "test", caps)
	data, _ := hello.Bytes()
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatal(err)
	}
	return conn
}

func readRequest(t *testing.T, conn *websocket.Conn) *protocol.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		t.Fatal(err)
	}
	return msg
}

func reply(t *testing.T, conn *websocket.Conn, msg *protocol.Message) {
	t.Helper()
	data, _ := msg.Bytes()
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatal(err)
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

type fixResult struct {
	c   geo.Coordinate
	err error
}

func TestLocator(t *testing.T) {
	b, base := startBridge(t)
	loc := b.Locator()

	if loc.Available() {
		t.Fatal("Available() = true with no device")
	}
	if _, err := loc.AcquireFix(context.Background(), geo.DefaultOptions()); !errors.Is(err, geo.ErrLocationUnavailable) {
		t.Errorf("AcquireFix() with no device = %v", err)
	}

	conn := dialDevice(t, base, "phone-1", protocol.Capabilities{Location: true})
	waitFor(t, loc.Available)
	if b.Scanner().Available() {
		t.Error("scanner available on a location-only device")
	}

	acquire := func() chan fixResult {
		done := make(chan fixResult, 1)
		go func() {
			c, err := loc.AcquireFix(context.Background(), geo.DefaultOptions())
			done <- fixResult{c, err}
		}()
		return done
	}

	t.Run("fix", func(t *testing.T) {
		done := acquire()
		req := readRequest(t, conn)
		if req.Type != protocol.TypeLocate || req.ID == "" {
			t.Fatalf("request = %+v", req)
		}
		if lr, _ := req.GetLocateRequest(); !lr.HighAccuracy {
			t.Error("high accuracy not requested")
		}
		resp, _ := protocol.NewLocationMessage(req.ID, 37.7749, -122.4194, 5)
		reply(t, conn, resp)

		r := <-done
		if r.err != nil {
			t.Fatalf("AcquireFix() error = %v", r.err)
		}
		if r.c != (geo.Coordinate{Latitude: 37.7749, Longitude: -122.4194}) {
			t.Errorf("coordinate = %v", r.c)
		}
	})

	t.Run("permission denied", func(t *testing.T) {
		done := acquire()
		req := readRequest(t, conn)
		resp, _ := protocol.NewErrorMessage(req.ID, protocol.CodePermissionDenied, "User denied Geolocation")
		reply(t, conn, resp)

		r := <-done
		if !errors.Is(r.err, geo.ErrPermissionDenied) {
			t.Errorf("error = %v, want ErrPermissionDenied", r.err)
		}
	})

	t.Run("position unavailable", func(t *testing.T) {
		done := acquire()
		req := readRequest(t, conn)
		resp, _ := protocol.NewErrorMessage(req.ID, "position_unavailable", "no satellites")
		reply(t, conn, resp)

		r := <-done
		if !errors.Is(r.err, geo.ErrLocationUnavailable) || errors.Is(r.err, geo.ErrPermissionDenied) {
			t.Errorf("error = %v, want ErrLocationUnavailable only", r.err)
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() {
			_, err := loc.AcquireFix(ctx, geo.DefaultOptions())
			done <- err
		}()
		readRequest(t, conn)
		cancel()
		if err := <-done; !errors.Is(err, context.Canceled) {
			t.Errorf("error = %v, want context.Canceled", err)
		}
	})

	t.Run("disconnect fails pending request", func(t *testing.T) {
		done := acquire()
		readRequest(t, conn)
		conn.Close()

		select {
		case r := <-done:
			if !errors.Is(r.err, geo.ErrLocationUnavailable) {
				t.Errorf("error = %v, want ErrLocationUnavailable", r.err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("AcquireFix did not return after disconnect")
		}
		waitFor(t, func() bool { return !loc.Available() })
	})
}

func TestScanner(t *testing.T) {
	b, base := startBridge(t)
	sc := b.Scanner()
	conn := dialDevice(t, base, "phone-2", protocol.Capabilities{Location: true, Scanner: true})
	waitFor(t, sc.Available)

	type scanResult struct {
		images []capture.RawImage
		err    error
	}
	scan := func() chan scanResult {
		done := make(chan scanResult, 1)
		go func() {
			imgs, err := sc.Scan(context.Background(), capture.ScanOptions{Source: capture.SourceCamera, ReturnImageBytes: true})
			done <- scanResult{imgs, err}
		}()
		return done
	}

	t.Run("images", func(t *testing.T) {
		done := scan()
		req := readRequest(t, conn)
		if sr, _ := req.GetScanRequest(); sr.ImageSource != "DEVICE_CAMERA" || !sr.ReturnImageBytes {
			t.Errorf("scan request = %+v", sr)
		}
		resp, _ := protocol.NewScanResultMessage(req.ID, []protocol.ScanImage{
			protocol.EncodeImage("image/jpeg", []byte{0xff, 0xd8, 0xff, 0xd9}),
		})
		reply(t, conn, resp)

		r := <-done
		if r.err != nil {
			t.Fatalf("Scan() error = %v", r.err)
		}
		if len(r.images) != 1 || r.images[0].Len() != 4 || r.images[0].MIMEType != "image/jpeg" {
			t.Errorf("images = %+v", r.images)
		}
	})

	t.Run("device error keeps code and message", func(t *testing.T) {
		done := scan()
		req := readRequest(t, conn)
		resp, _ := protocol.NewErrorMessage(req.ID, "USER_DISMISSED", "The user dismissed the scanner.")
		reply(t, conn, resp)

		r := <-done
		var ce *capture.CaptureError
		if !errors.As(r.err, &ce) {
			t.Fatalf("error = %v, want *CaptureError", r.err)
		}
		if ce.Code != "USER_DISMISSED" || ce.Message != "The user dismissed the scanner." {
			t.Errorf("got %q / %q", ce.Code, ce.Message)
		}
	})

	t.Run("device listing", func(t *testing.T) {
		devices := b.Devices()
		if len(devices) != 1 || devices[0].ID != "phone-2" || !devices[0].Capabilities.Scanner {
			t.Errorf("Devices() = %+v", devices)
		}
		if stats := b.GetStats(); stats.DeviceCount != 1 || stats.MessagesReceived == 0 {
			t.Errorf("GetStats() = %+v", stats)
		}
	})
}

func TestPreferredDevice(t *testing.T) {
	b, base := startBridge(t, WithPreferredDevice("tablet"))
	tablet := dialDevice(t, base, "tablet", protocol.Capabilities{Location: true})
	waitFor(t, func() bool { return b.Locator().Available() })
	phone := dialDevice(t, base, "phone", protocol.Capabilities{Location: true})
	waitFor(t, func() bool { return b.DeviceCount() == 2 })
	_ = phone

	done := make(chan error, 1)
	go func() {
		_, err := b.Locator().AcquireFix(context.Background(), geo.DefaultOptions())
		done <- err
	}()

	req := readRequest(t, tablet)
	resp, _ := protocol.NewLocationMessage(req.ID, 1, 2, 0)
	reply(t, tablet, resp)
	if err := <-done; err != nil {
		t.Fatalf("AcquireFix() error = %v", err)
	}
}

func TestPing(t *testing.T) {
	_, base := startBridge(t)
	conn := dialDevice(t, base, "pinger", protocol.Capabilities{})

	ping, _ := protocol.NewPingMessage()
	reply(t, conn, ping)
	msg := readRequest(t, conn)
	if msg.Type != protocol.TypePong {
		t.Errorf("got %s, want pong", msg.Type)
	}
}

func TestOnReady(t *testing.T) {
	b, base := startBridge(t)

	type ready struct {
		id   string
		caps protocol.Capabilities
	}
	got := make(chan ready, 1)
	b.OnReady(func(id string, caps protocol.Capabilities) {
		got <- ready{id, caps}
	})

	dialDevice(t, base, "tablet-7", protocol.Capabilities{Location: true, Scanner: true})

	select {
	case r := <-got:
		if r.id != "tablet-7" || !r.caps.Location || !r.caps.Scanner {
			t.Errorf("ready = %+v", r)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("OnReady not called")
	}
}
