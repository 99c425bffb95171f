package geo

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCoordinateString(t *testing.T) {
	tests := []struct {
		c    Coordinate
		want string
	}{
		{Coordinate{37.7749, -122.4194}, "37.7749, -122.4194"},
		{Coordinate{0, 0}, "0, 0"},
		{Coordinate{math.Copysign(0, -1), 10}, "0, 10"},
		{Coordinate{51.50735091, -0.12775829}, "51.50735091, -0.12775829"},
		{Coordinate{-33.8688, 151.2093}, "-33.8688, 151.2093"},
		{Coordinate{45, 90.5}, "45, 90.5"},
	}
	for _, tt := range tests {
		if got := tt.c.String(); got != tt.want {
			t.Errorf("String(%v) = %q, want %q", tt.c, got, tt.want)
		}
	}
}

func TestCoordinateValid(t *testing.T) {
	if !(Coordinate{90, -180}).Valid() {
		t.Error("bounds should be valid")
	}
	if (Coordinate{91, 0}).Valid() {
		t.Error("latitude 91 should be invalid")
	}
	if (Coordinate{0, math.NaN()}).Valid() {
		t.Error("NaN should be invalid")
	}
}

func TestLastKnownAcquire(t *testing.T) {
	ctx := context.Background()
	fixes := NewLastKnown()
	first := Coordinate{37.7749, -122.4194}

	t.Run("success records the fix", func(t *testing.T) {
		c, err := fixes.Acquire(ctx, NewMock(first), DefaultOptions())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if c != first {
			t.Errorf("got %v, want %v", c, first)
		}
		f, ok := fixes.Get()
		if !ok || f.Coordinate != first {
			t.Errorf("Get = %v, %v", f, ok)
		}
	})

	t.Run("failure keeps the previous fix", func(t *testing.T) {
		_, err := fixes.Acquire(ctx, WithError(ErrPermissionDenied), DefaultOptions())
		if !errors.Is(err, ErrPermissionDenied) {
			t.Fatalf("expected ErrPermissionDenied, got %v", err)
		}
		f, ok := fixes.Get()
		if !ok || f.Coordinate != first {
			t.Errorf("previous fix lost: %v, %v", f, ok)
		}
	})

	t.Run("out of range result is rejected", func(t *testing.T) {
		_, err := fixes.Acquire(ctx, NewMock(Coordinate{200, 0}), DefaultOptions())
		if !errors.Is(err, ErrLocationUnavailable) {
			t.Fatalf("expected ErrLocationUnavailable, got %v", err)
		}
		if fixes.Pending() {
			t.Error("acquisition should not be pending")
		}
	})

	t.Run("options are forwarded", func(t *testing.T) {
		m := NewMock(first)
		fixes.Acquire(ctx, m, Options{HighAccuracy: true})
		calls := m.Calls()
		if len(calls) != 1 || !calls[0].Options.HighAccuracy {
			t.Errorf("calls = %+v", calls)
		}
	})
}

func TestLastKnownAwait(t *testing.T) {
	t.Run("no fix and nothing pending", func(t *testing.T) {
		fixes := NewLastKnown()
		if _, err := fixes.Await(context.Background()); !errors.Is(err, ErrNoFix) {
			t.Fatalf("expected ErrNoFix, got %v", err)
		}
	})

	t.Run("waits for in-flight acquisition", func(t *testing.T) {
		fixes := NewLastKnown()
		release := make(chan struct{})
		want := Coordinate{48.8566, 2.3522}

		go fixes.Acquire(context.Background(), Blocking(want, release), DefaultOptions())
		for !fixes.Pending() {
			time.Sleep(time.Millisecond)
		}

		result := make(chan Fix, 1)
		go func() {
			f, err := fixes.Await(context.Background())
			if err != nil {
				t.Errorf("Await: %v", err)
			}
			result <- f
		}()

		close(release)
		select {
		case f := <-result:
			if f.Coordinate != want {
				t.Errorf("got %v, want %v", f.Coordinate, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Await did not return")
		}
	})

	t.Run("in-flight acquisition fails", func(t *testing.T) {
		fixes := NewLastKnown()
		done := fixes.Begin()

		errCh := make(chan error, 1)
		go func() {
			_, err := fixes.Await(context.Background())
			errCh <- err
		}()

		time.Sleep(10 * time.Millisecond)
		done()

		select {
		case err := <-errCh:
			if !errors.Is(err, ErrNoFix) {
				t.Errorf("expected ErrNoFix, got %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Await did not return")
		}
	})

	t.Run("context cancellation", func(t *testing.T) {
		fixes := NewLastKnown()
		done := fixes.Begin()
		defer done()

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		if _, err := fixes.Await(ctx); !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected deadline error, got %v", err)
		}
	})

	t.Run("async acquisition is pending immediately", func(t *testing.T) {
		fixes := NewLastKnown()
		release := make(chan struct{})
		want := Coordinate{-33.8688, 151.2093}

		settled := make(chan error, 1)
		fixes.AcquireAsync(context.Background(), Blocking(want, release), DefaultOptions(), func(c Coordinate, err error) {
			settled <- err
		})
		if !fixes.Pending() {
			t.Fatal("Pending() = false right after AcquireAsync")
		}

		close(release)
		f, err := fixes.Await(context.Background())
		if err != nil || f.Coordinate != want {
			t.Fatalf("Await() = %v, %v", f, err)
		}
		if err := <-settled; err != nil {
			t.Errorf("callback error = %v", err)
		}
	})

	t.Run("stale fix is reused", func(t *testing.T) {
		fixes := NewLastKnown()
		old := Coordinate{1, 2}
		fixes.Set(old)
		done := fixes.Begin()
		defer done()

		f, err := fixes.Await(context.Background())
		if err != nil {
			t.Fatalf("Await: %v", err)
		}
		if f.Coordinate != old {
			t.Errorf("got %v, want %v", f.Coordinate, old)
		}
	})
}

func TestStatic(t *testing.T) {
	s := NewStatic(Coordinate{10, 20})
	if !s.Available() {
		t.Fatal("expected available")
	}
	c, err := s.AcquireFix(context.Background(), DefaultOptions())
	if err != nil || c != (Coordinate{10, 20}) {
		t.Errorf("AcquireFix = %v, %v", c, err)
	}
	if NewStatic(Coordinate{100, 0}).Available() {
		t.Error("out of range static should be unavailable")
	}
}

func TestHTTPProvider(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
		want    Coordinate
	}{
		{"success", 200, `{"latitude":37.7749,"longitude":-122.4194,"accuracy":5}`, nil, Coordinate{37.7749, -122.4194}},
		{"forbidden", 403, `{"message":"denied"}`, ErrPermissionDenied, Coordinate{}},
		{"permission code", 503, `{"code":"PERMISSION_DENIED"}`, ErrPermissionDenied, Coordinate{}},
		{"server error", 500, `{"message":"gps cold"}`, ErrLocationUnavailable, Coordinate{}},
		{"missing fields", 200, `{"accuracy":5}`, ErrLocationUnavailable, Coordinate{}},
		{"bad json", 200, `not json`, ErrLocationUnavailable, Coordinate{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotQuery string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotQuery = r.URL.RawQuery
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			p, err := NewHTTPProvider(srv.URL + "/location")
			if err != nil {
				t.Fatalf("NewHTTPProvider: %v", err)
			}
			if !p.Available() {
				t.Fatal("expected available")
			}

			c, err := p.AcquireFix(context.Background(), DefaultOptions())
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if c != tt.want {
				t.Errorf("got %v, want %v", c, tt.want)
			}
			if gotQuery != "high_accuracy=true" {
				t.Errorf("query = %q", gotQuery)
			}
		})
	}
}

func TestNewHTTPProviderRejectsBadURL(t *testing.T) {
	if _, err := NewHTTPProvider("ftp://device/location"); err == nil {
		t.Error("expected error for ftp scheme")
	}
}
