package records

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Mock implements Repository for testing.
type Mock struct {
	// CreateFunc is called by Create. If nil, Create returns a record with a
	// sequential ID.
	CreateFunc func(ctx context.Context, req CreateRequest) (*Record, error)

	mu    sync.Mutex
	calls []MockCall
}

// MockCall records a method invocation.
type MockCall struct {
	Method  string
	Request CreateRequest
	Time    time.Time
}

// NewMock returns a repository that accepts every request.
func NewMock() *Mock {
	return &Mock{}
}

// WithError returns a repository that always fails with err.
func WithError(err error) *Mock {
	return &Mock{
		CreateFunc: func(ctx context.Context, req CreateRequest) (*Record, error) {
			return nil, err
		},
	}
}

// Create calls CreateFunc and records the call.
func (m *Mock) Create(ctx context.Context, req CreateRequest) (*Record, error) {
	m.mu.Lock()
	m.calls = append(m.calls, MockCall{Method: "Create", Request: req, Time: time.Now()})
	n := len(m.calls)
	m.mu.Unlock()

	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, req)
	}
	data, _ := req.Decode()
	return &Record{
		ID:             fmt.Sprintf("mock-%d", n),
		Title:          req.Title,
		PathOnClient:   req.PathOnClient,
		LinkedRecordID: req.FirstPublishLocationID,
		Size:           int64(len(data)),
		CreatedAt:      time.Now().UTC(),
	}, nil
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

var _ Repository = (*Mock)(nil)
