package geo

import (
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

// HTTPProvider asks a location agent running on the device for a fix.
//
// The agent answers GET <url>?high_accuracy=true with
// {"latitude":..,"longitude":..} or an error body {"code":..,"message":..}.
// 401/403 or code "permission_denied" map to ErrPermissionDenied.
type HTTPProvider struct {
	endpoint *url.URL
	client   *http.Client
	logger   *slog.Logger
}

// HTTPOption configures an HTTPProvider.
type HTTPOption func(*HTTPProvider)

// WithHTTPClient overrides the HTTP client. The default carries no timeout
// of its own so the caller's context decides.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(p *HTTPProvider) { p.client = c }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) HTTPOption {
	return func(p *HTTPProvider) { p.logger = l }
}

// NewHTTPProvider creates a provider for the agent at rawURL.
func NewHTTPProvider(rawURL string, opts ...HTTPOption) (*HTTPProvider, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("geo: invalid location url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("geo: unsupported location url scheme %q", u.Scheme)
	}
	p := &HTTPProvider{
		endpoint: u,
		client:   httpc.NewClient(0),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "geo.http")
	return p, nil
}

// Available reports whether an endpoint is configured. It does not touch the
// network.
func (p *HTTPProvider) Available() bool {
	return p != nil && p.endpoint != nil && p.endpoint.Host != ""
}

type httpFix struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Accuracy  float64  `json:"accuracy"`
}

type httpError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// AcquireFix performs one request against the agent.
func (p *HTTPProvider) AcquireFix(ctx context.Context, opts Options) (Coordinate, error) {
	u := *p.endpoint
	q := u.Query()
	if opts.HighAccuracy {
		q.Set("high_accuracy", "true")
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Coordinate{}, unavailable("build request: %v", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Coordinate{}, ctx.Err()
		}
		return Coordinate{}, unavailable("request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return Coordinate{}, unavailable("read response: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr httpError
		_ = json.Unmarshal(body, &apiErr)
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden ||
			strings.EqualFold(apiErr.Code, "permission_denied") {
			return Coordinate{}, fmt.Errorf("%w: %s", ErrPermissionDenied, apiErr.Message)
		}
		return Coordinate{}, unavailable("agent returned %d: %s", resp.StatusCode, apiErr.Message)
	}

	var fix httpFix
	if err := json.Unmarshal(body, &fix); err != nil {
		return Coordinate{}, unavailable("decode response: %v", err)
	}
	if fix.Latitude == nil || fix.Longitude == nil {
		return Coordinate{}, unavailable("response missing latitude/longitude")
	}

	c := Coordinate{Latitude: *fix.Latitude, Longitude: *fix.Longitude}
	p.logger.Debug("fix resolved", "lat", c.Latitude, "lon", c.Longitude, "accuracy_m", fix.Accuracy)
	return c, nil
}

var _ Provider = (*HTTPProvider)(nil)
