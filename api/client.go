// Package api wraps outbound HTTP calls to the Connecto API, injecting the
// session token and normalizing failures into the client's error shape.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"connecto/models"
	"connecto/payload"
	"connecto/session"
)

// Client issues verb-scoped requests against paths relative to a base URL.
// Before each request it reads the session store; when a token is present it
// is attached as a bearer credential. A 401 on any request, not only auth
// endpoints, triggers the registered teardown hook so a stale credential is
// never retried.
type Client struct {
	baseURL        string
	httpc          *http.Client
	store          session.Store
	log            *slog.Logger
	onUnauthorized func()
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpc *http.Client) Option {
	return func(c *Client) { c.httpc = httpc }
}

// WithLogger overrides the request logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// New builds a client for the given base URL (e.g. "http://localhost:5000/api")
// reading credentials from store.
func New(baseURL string, store session.Store, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{},
		store:   store,
		log: slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelWarn,
		})),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetUnauthorizedHandler registers the session teardown invoked when any
// response carries an authorization-failure status. The lifecycle controller
// wires its logout path here.
func (c *Client) SetUnauthorizedHandler(fn func()) {
	c.onUnauthorized = fn
}

// Get issues a GET and decodes the response into out when out is non-nil.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// Post issues a POST with the given body.
func (c *Client) Post(ctx context.Context, path string, body *payload.Body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

// Put issues a PUT with the given body.
func (c *Client) Put(ctx context.Context, path string, body *payload.Body, out any) error {
	return c.do(ctx, http.MethodPut, path, body, out)
}

// Delete issues a DELETE. No response body is expected.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body *payload.Body, out any) error {
	var reader io.Reader
	contentType := ""
	if body != nil {
		reader = body.Reader
		contentType = body.ContentType
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	sess, err := c.store.Get(ctx)
	if err != nil {
		return fmt.Errorf("read session: %w", err)
	}
	if sess.Token != "" {
		req.Header.Set("Authorization", "Bearer "+sess.Token)
	}

	start := time.Now()
	resp, err := c.httpc.Do(req)
	if err != nil {
		c.log.Warn("request failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()))
		return models.NewRequestError(0, "could not reach the server", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.NewRequestError(resp.StatusCode, "read response", err)
	}

	c.log.Debug("request processed",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("latency", time.Since(start)))

	if resp.StatusCode == http.StatusUnauthorized {
		if c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		msg := serverMessage(data)
		if msg == "" {
			msg = "session expired"
		}
		return models.NewUnauthorizedError(msg)
	}
	if resp.StatusCode >= 400 {
		msg := serverMessage(data)
		if msg == "" {
			msg = fmt.Sprintf("request failed with status %d", resp.StatusCode)
		}
		return models.NewRequestError(resp.StatusCode, msg, nil)
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// serverMessage extracts the message field from a JSON error body, returning
// "" when none is present.
func serverMessage(data []byte) string {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}
	return body.Message
}
