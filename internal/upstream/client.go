// Package upstream implements the HTTP client for the AI engine.
package upstream

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
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultTimeout bounds regular AI engine calls.
	DefaultTimeout = 30 * time.Second
	// DefaultHealthTimeout bounds health probes.
	DefaultHealthTimeout = 3 * time.Second

	healthPath      = "/health"
	requestIDHeader = "X-Request-ID"
)

// Client is the transport to the AI engine. Implementations never retry.
type Client interface {
	// Request performs a call and returns the data member of the response envelope.
	Request(ctx context.Context, method, path string, body any, opts ...RequestOption) (json.RawMessage, error)

	// Health queries the engine health endpoint.
	Health(ctx context.Context) (*HealthStatus, error)
}

// HealthStatus is the body returned by GET /health.
type HealthStatus struct {
	Status    string  `json:"status"`
	Service   string  `json:"service"`
	Timestamp string  `json:"timestamp"`
	Uptime    float64 `json:"uptime"`
}

// Healthy reports whether the engine declared itself healthy.
func (h *HealthStatus) Healthy() bool {
	return h != nil && strings.EqualFold(h.Status, "healthy")
}

// Config holds construction parameters for HTTPClient.
type Config struct {
	BaseURL       string
	Timeout       time.Duration
	HealthTimeout time.Duration
	HTTPClient    *http.Client
	Logger        *slog.Logger
}

// HTTPClient talks JSON over HTTP to the AI engine.
type HTTPClient struct {
	baseURL       string
	timeout       time.Duration
	healthTimeout time.Duration
	httpClient    *http.Client
	logger        *slog.Logger
}

// Ensure HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates a client for the engine at cfg.BaseURL.
func NewHTTPClient(cfg Config) (*HTTPClient, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse ai engine url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("ai engine url %q must be absolute", cfg.BaseURL)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.HealthTimeout <= 0 {
		cfg.HealthTimeout = DefaultHealthTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		// Deadlines come from the request context; uploads must not be cut
		// off by a client-wide timeout.
		httpClient = &http.Client{}
	}

	return &HTTPClient{
		baseURL:       base.String(),
		timeout:       cfg.Timeout,
		healthTimeout: cfg.HealthTimeout,
		httpClient:    httpClient,
		logger:        cfg.Logger,
	}, nil
}

// BaseURL returns the engine base URL.
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

type requestOptions struct {
	timeout time.Duration
	query   url.Values
}

// RequestOption customizes a single Request call.
type RequestOption func(*requestOptions)

// WithTimeout overrides the default per-call timeout.
func WithTimeout(d time.Duration) RequestOption {
	return func(o *requestOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithQuery appends query parameters to the request URL.
func WithQuery(q url.Values) RequestOption {
	return func(o *requestOptions) {
		o.query = q
	}
}

// envelope is the {success, data} wrapper used by every engine response.
type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

func (e envelope) reason() string {
	if e.Error != "" {
		return e.Error
	}
	return e.Message
}

// Request performs method on path. body is JSON encoded unless it is a
// *Multipart, which is streamed as multipart/form-data.
func (c *HTTPClient) Request(ctx context.Context, method, path string, body any, opts ...RequestOption) (json.RawMessage, error) {
	o := requestOptions{timeout: c.timeout}
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	reqBody, contentType, err := encodeBody(body)
	if err != nil {
		return nil, &TransportError{Method: method, Path: path, Message: "encode request body", Err: err}
	}

	target := c.baseURL + path
	if len(o.query) > 0 {
		target += "?" + o.query.Encode()
	}

	req, err := newRequest(ctx, method, target, reqBody, contentType)
	if err != nil {
		return nil, &TransportError{Method: method, Path: path, Message: "create request", Err: err}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Method: method, Path: path, Message: "request failed", Err: err}
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Debug("failed to close ai engine response body", "error", closeErr)
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Method: method, Path: path, StatusCode: resp.StatusCode, Message: "read response", Err: err}
	}

	c.logger.Debug("AI engine call completed",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := http.StatusText(resp.StatusCode)
		if decodeErr == nil && env.reason() != "" {
			msg = env.reason()
		}
		return nil, &TransportError{Method: method, Path: path, StatusCode: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return nil, &TransportError{Method: method, Path: path, StatusCode: resp.StatusCode, Message: "malformed response body", Err: decodeErr}
	}
	if env.Success != nil && !*env.Success {
		msg := env.reason()
		if msg == "" {
			msg = "engine reported failure"
		}
		return nil, &TransportError{Method: method, Path: path, StatusCode: resp.StatusCode, Message: msg}
	}
	if len(env.Data) == 0 || bytes.Equal(env.Data, []byte("null")) {
		return nil, &TransportError{Method: method, Path: path, StatusCode: resp.StatusCode, Message: "response has no data"}
	}

	return env.Data, nil
}

// Health queries GET /health with the health timeout. The health endpoint is
// not wrapped in an envelope.
func (c *HTTPClient) Health(ctx context.Context) (*HealthStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+healthPath, nil)
	if err != nil {
		return nil, &TransportError{Method: http.MethodGet, Path: healthPath, Message: "create request", Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Method: http.MethodGet, Path: healthPath, Message: "health check failed", Err: err}
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Debug("failed to close health response body", "error", closeErr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransportError{Method: http.MethodGet, Path: healthPath, StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}

	var status HealthStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, &TransportError{Method: http.MethodGet, Path: healthPath, StatusCode: resp.StatusCode, Message: "malformed health body", Err: err}
	}
	return &status, nil
}

// newRequest builds an outgoing request. A streaming body is closed when the
// request cannot be built, which stops its writer goroutine.
func newRequest(ctx context.Context, method, target string, body io.Reader, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		if c, ok := body.(io.Closer); ok {
			_ = c.Close()
		}
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(requestIDHeader, uuid.NewString())
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req, nil
}

func encodeBody(body any) (io.Reader, string, error) {
	switch b := body.(type) {
	case nil:
		return nil, "", nil
	case *Multipart:
		r, contentType := b.stream()
		return r, contentType, nil
	default:
		payload, err := json.Marshal(b)
		if err != nil {
			return nil, "", err
		}
		return bytes.NewReader(payload), "application/json", nil
	}
}
