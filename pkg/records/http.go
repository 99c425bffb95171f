package records

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/teslashibe/go-geostamp/internal/httpc"
)

// HTTPStore posts CreateRequests as JSON to <base>/records.
type HTTPStore struct {
	endpoint string
	token    string
	client   *http.Client
	logger   *slog.Logger
}

// HTTPOption configures an HTTPStore.
type HTTPOption func(*HTTPStore)

// WithToken sends "Authorization: Bearer <token>".
func WithToken(token string) HTTPOption {
	return func(s *HTTPStore) { s.token = token }
}

// WithHTTPClient overrides the shared client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(s *HTTPStore) { s.client = c }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) HTTPOption {
	return func(s *HTTPStore) { s.logger = logger }
}

// NewHTTPStore validates baseURL and returns a store.
func NewHTTPStore(baseURL string, opts ...HTTPOption) (*HTTPStore, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("records: parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return nil, fmt.Errorf("records: base url %q must be absolute http(s)", baseURL)
	}
	s := &HTTPStore{
		endpoint: strings.TrimRight(u.String(), "/") + "/records",
		client:   httpc.Client,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "records.http")
	return s, nil
}

// apiErrorBody accepts both {"message": ...} and [{"message": ...}].
type apiErrorBody struct {
	Message   string `json:"message"`
	ErrorCode string `json:"errorCode"`
}

// Create posts req and decodes the created record.
func (s *HTTPStore) Create(ctx context.Context, req CreateRequest) (*Record, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if s.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("records: post: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("records: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := parseAPIError(resp.StatusCode, data)
		s.logger.Warn("create failed", "status", resp.StatusCode, "message", apiErr.Message)
		return nil, apiErr
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("records: decode response: %w", err)
	}
	if rec.ID == "" {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: "response has no record id"}
	}
	if rec.Title == "" {
		rec.Title = req.Title
	}
	if rec.PathOnClient == "" {
		rec.PathOnClient = req.PathOnClient
	}
	if rec.LinkedRecordID == "" {
		rec.LinkedRecordID = req.FirstPublishLocationID
	}
	return &rec, nil
}

func parseAPIError(status int, data []byte) *APIError {
	var one apiErrorBody
	if err := json.Unmarshal(data, &one); err == nil && one.Message != "" {
		return &APIError{StatusCode: status, Code: one.ErrorCode, Message: one.Message}
	}
	var many []apiErrorBody
	if err := json.Unmarshal(data, &many); err == nil && len(many) > 0 && many[0].Message != "" {
		return &APIError{StatusCode: status, Code: many[0].ErrorCode, Message: many[0].Message}
	}
	msg := strings.TrimSpace(string(data))
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &APIError{StatusCode: status, Message: msg}
}

var _ Repository = (*HTTPStore)(nil)
