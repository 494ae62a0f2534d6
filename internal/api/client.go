// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/jeranaias/chatcore/internal/logging"
)

// Configuration constants.
const (
	// DefaultTimeout bounds non-streaming requests.
	DefaultTimeout = 30 * time.Second

	// MaxResponseSize caps how much of a response body is read.
	// SECURITY: prevents memory exhaustion from a misbehaving server.
	MaxResponseSize = 10 * 1024 * 1024

	// UserAgent identifies the client.
	UserAgent = "chatcore/0.1"
)

// PERFORMANCE: one pooled transport for every client in the process.
var sharedTransport = &http.Transport{
	Proxy:               http.ProxyFromEnvironment,
	MaxIdleConns:        100,
	MaxIdleConnsPerHost: 10,
	IdleConnTimeout:     90 * time.Second,
	TLSHandshakeTimeout: 10 * time.Second,
	TLSClientConfig: &tls.Config{
		MinVersion: tls.VersionTLS12,
	},
}

// TokenSource supplies the bearer token. An empty token with a nil error
// means "not signed in".
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Client talks to the chat service.
type Client struct {
	baseURL string

	// httpClient serves REST calls and carries a timeout. streamClient has
	// none: stream deadlines are enforced by the reader.
	httpClient   *http.Client
	streamClient *http.Client

	tokens  TokenSource
	limiter *rate.Limiter
	log     logrus.FieldLogger
}

// NewClient creates a client for the service at baseURL. tokens may be nil.
func NewClient(baseURL string, tokens TokenSource) *Client {
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   &http.Client{Transport: sharedTransport, Timeout: DefaultTimeout},
		streamClient: &http.Client{Transport: sharedTransport},
		tokens:       tokens,
		limiter:      rate.NewLimiter(rate.Limit(5), 10),
		log:          logging.L(),
	}
}

// WithTimeout sets the timeout for non-streaming requests.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	c.httpClient.Timeout = timeout
	return c
}

// WithRateLimit shapes non-streaming requests to rps with the given burst.
func (c *Client) WithRateLimit(rps float64, burst int) *Client {
	c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	return c
}

// WithLogger sets the logger.
func (c *Client) WithLogger(l logrus.FieldLogger) *Client {
	c.log = logging.Or(l)
	return c
}

// WithHTTPClient replaces the underlying transport for both REST and
// streaming calls, keeping the configured REST timeout.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	timeout := c.httpClient.Timeout
	rest := *hc
	rest.Timeout = timeout
	stream := *hc
	stream.Timeout = 0
	c.httpClient = &rest
	c.streamClient = &stream
	return c
}

// BaseURL returns the service root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// =============================================================================
// REQUEST PLUMBING
// =============================================================================

// newRequest builds a request with the common headers.
func (c *Client) newRequest(ctx context.Context, method, path string, in any) (*http.Request, string, error) {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, "", fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("X-Request-ID", requestID)
	c.setAuth(ctx, req)
	return req, requestID, nil
}

// setAuth attaches the bearer token when one is available. Storage
// failures are not fatal: the request goes out unauthenticated.
func (c *Client) setAuth(ctx context.Context, req *http.Request) {
	if c.tokens == nil {
		return
	}
	tok, err := c.tokens.Token(ctx)
	if err != nil {
		c.log.WithError(err).Debug("token unavailable, sending unauthenticated request")
		return
	}
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
}

// do performs a rate-limited JSON round trip. out may be nil.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	req, requestID, err := c.newRequest(ctx, method, path, in)
	if err != nil {
		return err
	}
	entry := c.log.WithFields(logrus.Fields{"method": method, "path": path, "request_id": requestID})

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		entry.WithError(err).Debug("request failed")
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	entry.WithFields(logrus.Fields{"status": resp.StatusCode, "elapsed": time.Since(start)}).Debug("response")

	body, err := readResponse(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &TransportError{Status: resp.StatusCode, Body: string(body)}
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse %s response: %w", path, err)
	}
	return nil
}

// readResponse reads at most MaxResponseSize bytes.
func readResponse(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if len(body) > MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

// unwrapList decodes either a bare JSON array or an object holding the
// array under key.
func unwrapList[T any](raw json.RawMessage, key string) ([]T, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	var out []T
	if raw[0] == '[' {
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, err
		}
		return out, nil
	}
	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, err
	}
	inner, ok := wrapped[key]
	if !ok {
		return nil, nil
	}
	if err := json.Unmarshal(inner, &out); err != nil {
		return nil, err
	}
	return out, nil
}
