package geo

import (
	"context"
	"sync"
	"time"
)

// Mock implements Provider for testing.
type Mock struct {
	// AvailableFunc is called by Available. If nil, Available returns true.
	AvailableFunc func() bool

	// AcquireFunc is called by AcquireFix. If nil, AcquireFix fails with
	// ErrLocationUnavailable.
	AcquireFunc func(ctx context.Context, opts Options) (Coordinate, error)

	mu    sync.Mutex
	calls []MockCall
}

// MockCall records a method invocation.
type MockCall struct {
	Method  string
	Options Options
	Time    time.Time
}

// NewMock returns a mock that always resolves c.
func NewMock(c Coordinate) *Mock {
	return &Mock{
		AcquireFunc: func(ctx context.Context, opts Options) (Coordinate, error) {
			return c, nil
		},
	}
}

// WithError returns an available mock whose acquisitions fail with err.
func WithError(err error) *Mock {
	return &Mock{
		AcquireFunc: func(ctx context.Context, opts Options) (Coordinate, error) {
			return Coordinate{}, err
		},
	}
}

// Unavailable returns a mock whose availability check fails.
func Unavailable() *Mock {
	return &Mock{AvailableFunc: func() bool { return false }}
}

// Blocking returns a mock whose acquisitions wait for release (or ctx) and
// then resolve c.
func Blocking(c Coordinate, release <-chan struct{}) *Mock {
	return &Mock{
		AcquireFunc: func(ctx context.Context, opts Options) (Coordinate, error) {
			select {
			case <-release:
				return c, nil
			case <-ctx.Done():
				return Coordinate{}, ctx.Err()
			}
		},
	}
}

// Available calls AvailableFunc and records the call.
func (m *Mock) Available() bool {
	m.record("Available", Options{})
	if m.AvailableFunc != nil {
		return m.AvailableFunc()
	}
	return true
}

// AcquireFix calls AcquireFunc and records the call.
func (m *Mock) AcquireFix(ctx context.Context, opts Options) (Coordinate, error) {
	m.record("AcquireFix", opts)
	if m.AcquireFunc != nil {
		return m.AcquireFunc(ctx, opts)
	}
	return Coordinate{}, ErrLocationUnavailable
}

func (m *Mock) record(method string, opts Options) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{Method: method, Options: opts, Time: time.Now()})
}

// Calls returns all recorded method calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]MockCall, len(m.calls))
	copy(result, m.calls)
	return result
}

// CallCount returns the number of times a method was called.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, c := range m.calls {
		if c.Method == method {
			count++
		}
	}
	return count
}

// Reset clears all recorded calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// Verify Mock implements Provider at compile time.
var _ Provider = (*Mock)(nil)
