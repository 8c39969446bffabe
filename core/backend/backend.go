// Package backend is the JSON-over-HTTP transport shared by the auth gateway
// and the payment client. It reports transport failures, non-2xx statuses and
// undecodable bodies as distinct errors so callers can map them onto their own
// error taxonomy.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrymomot/evservice/core/logger"
)

const maxBodySize = 1 << 20

var (
	// ErrTransport is returned when the request never produced a response.
	ErrTransport = errors.New("backend: transport failure")
	// ErrDecode is returned when a 2xx body cannot be decoded.
	ErrDecode = errors.New("backend: malformed response body")
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend: unexpected status %d", e.Status)
	}
	return fmt.Sprintf("backend: unexpected status %d: %s", e.Status, e.Message)
}

// Request describes one backend call.
type Request struct {
	Method   string
	Path     string
	RawQuery string
	Token    string
	Body     any
}

// Client performs JSON requests against the backend base URL.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// Option configures Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets a per-request timeout on the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http = &http.Client{Timeout: d, Transport: c.http.Transport}
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a Client for baseURL (e.g. "https://api.example.com/api").
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		logger:  logger.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do sends req and decodes a 2xx body into out (when out is non-nil).
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	var body io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return fmt.Errorf("backend: encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	target := c.baseURL + req.Path
	if req.RawQuery != "" {
		target += "?" + req.RawQuery
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return errors.Join(ErrTransport, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.Token)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.logger.DebugContext(ctx, "backend request failed",
			logger.Method(req.Method), logger.Path(req.Path), logger.Error(err))
		return errors.Join(ErrTransport, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return errors.Join(ErrTransport, err)
	}

	c.logger.DebugContext(ctx, "backend request",
		logger.Method(req.Method), logger.Path(req.Path),
		logger.StatusCode(resp.StatusCode), logger.Duration(time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Status: resp.StatusCode, Message: errorMessage(raw)}
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		if out != nil {
			return ErrDecode
		}
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.Join(ErrDecode, err)
	}
	return nil
}

// errorMessage extracts {"message": ...} or {"error": ...} from an error body.
func errorMessage(raw []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(raw, &body) != nil {
		return ""
	}
	if body.Message != "" {
		return body.Message
	}
	return body.Error
}

// Unwrap descends through envelope keys such as "data" or "user" when present.
// Keys that are missing or null are skipped.
func Unwrap(raw json.RawMessage, keys ...string) json.RawMessage {
	for _, key := range keys {
		var obj map[string]json.RawMessage
		if json.Unmarshal(raw, &obj) != nil {
			return raw
		}
		inner, ok := obj[key]
		if !ok || len(inner) == 0 || string(inner) == "null" {
			continue
		}
		raw = inner
	}
	return raw
}
