// Package apiclient is the HTTP client for the FlowTrack API: assets,
// authentication and user-management profiles.
package apiclient

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

	"github.com/google/uuid"
)

// DefaultBaseURL is the API location used when none is configured
const DefaultBaseURL = "http://localhost:8000"

// FetchError is returned when the API answers with a non-success status
type FetchError struct {
	Op         string
	StatusCode int
	Status     string
	Detail     string
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("failed to %s: %s", e.Op, e.Status)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// IsStatus reports whether err is a FetchError carrying the given HTTP status
func IsStatus(err error, code int) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.StatusCode == code
}

// TokenSource returns the bearer token to attach, or "" for none
type TokenSource func() string

type Client struct {
	baseURL      string
	httpClient   *http.Client
	logger       *slog.Logger
	token        TokenSource
	strictStatus bool
}

type Option func(*Client)

// WithHTTPClient replaces the transport client
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithLogger sets the logger used for normalization warnings
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithToken attaches a bearer token to every request when the source returns one
func WithToken(ts TokenSource) Option {
	return func(c *Client) { c.token = ts }
}

// WithStrictStatus rejects inbound statuses outside the known vocabulary
// instead of passing them through lowercased
func WithStrictStatus(strict bool) Option {
	return func(c *Client) { c.strictStatus = strict }
}

// New creates a client for the API rooted at baseURL
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: http.DefaultClient,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root the client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// do sends one request and returns the raw body. Transport failures are
// returned unchanged; non-success statuses become a FetchError.
func (c *Client) do(ctx context.Context, op, method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != nil {
		if tok := c.token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return data, &FetchError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Detail:     extractDetail(data),
		}
	}
	return data, nil
}

// decodeJSON decodes data keeping numbers as json.Number
func decodeJSON(data []byte) (any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// extractDetail pulls a human message out of an error body. It understands
// {"detail": "..."}, {"detail": [{"msg": "..."}]} and {"error": "..."}.
func extractDetail(data []byte) string {
	v, err := decodeJSON(data)
	if err != nil {
		return ""
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return ""
	}
	switch d := obj["detail"].(type) {
	case string:
		return d
	case []any:
		if len(d) > 0 {
			if first, ok := d[0].(map[string]any); ok {
				if msg, ok := first["msg"].(string); ok {
					return msg
				}
			}
		}
	}
	if e, ok := obj["error"].(string); ok {
		return e
	}
	return ""
}
