package capture

import (
	"context"
	"sync"
	"time"
)

// Mock implements Scanner for testing.
type Mock struct {
	// AvailableFunc is called by Available. If nil, Available returns true.
	AvailableFunc func() bool

	// ScanFunc is called by Scan. If nil, Scan returns no images.
	ScanFunc func(ctx context.Context, opts ScanOptions) ([]RawImage, error)

	mu    sync.Mutex
	calls []MockCall
}

// MockCall records a method invocation.
type MockCall struct {
	Method  string
	Options ScanOptions
	Time    time.Time
}

// NewMock returns a scanner that always returns one image with data.
func NewMock(data []byte) *Mock {
	return &Mock{
		ScanFunc: func(ctx context.Context, opts ScanOptions) ([]RawImage, error) {
			return []RawImage{NewRawImage(data)}, nil
		},
	}
}

// WithError returns an available scanner that always fails with err.
func WithError(err error) *Mock {
	return &Mock{
		ScanFunc: func(ctx context.Context, opts ScanOptions) ([]RawImage, error) {
			return nil, err
		},
	}
}

// Unavailable returns a scanner whose availability check fails.
func Unavailable() *Mock {
	return &Mock{AvailableFunc: func() bool { return false }}
}

// Blocking returns a scanner that waits for release (or ctx) before
// returning data.
func Blocking(data []byte, release <-chan struct{}) *Mock {
	return &Mock{
		ScanFunc: func(ctx context.Context, opts ScanOptions) ([]RawImage, error) {
			select {
			case <-release:
				return []RawImage{NewRawImage(data)}, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	}
}

// Available calls AvailableFunc and records the call.
func (m *Mock) Available() bool {
	m.record("Available", ScanOptions{})
	if m.AvailableFunc != nil {
		return m.AvailableFunc()
	}
	return true
}

// Scan calls ScanFunc and records the call.
func (m *Mock) Scan(ctx context.Context, opts ScanOptions) ([]RawImage, error) {
	m.record("Scan", opts)
	if m.ScanFunc != nil {
		return m.ScanFunc(ctx, opts)
	}
	return nil, nil
}

func (m *Mock) record(method string, opts ScanOptions) {
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

// Verify Mock implements Scanner at compile time.
var _ Scanner = (*Mock)(nil)
