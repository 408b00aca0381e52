// Package httpx wraps outbound HTTP calls with bounded retry, transient-error
// classification, and Retry-After aware backoff. Callers branch on the
// returned error kind instead of catching exceptions mid-flight.
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultTimeout     = 20 * time.Second
	defaultMaxAttempts = 4
	defaultBaseDelay   = 800 * time.Millisecond
)

// StatusError is returned for any non-2xx response. Transient statuses are
// retried before one of these escapes to the caller.
type StatusError struct {
	Code       int
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.Code, strings.TrimSpace(e.Body))
}

func transientStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// IsTransient reports whether err represents a retryable condition: a
// transient HTTP status or a network-level failure.
func IsTransient(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return transientStatus(statusErr.Code)
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// IsConflict reports whether err is the remote service telling us the
// requested state already exists (409, or an "already ..." message).
func IsConflict(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		if statusErr.Code == http.StatusConflict {
			return true
		}
		return strings.Contains(strings.ToLower(statusErr.Body), "already")
	}
	return false
}

// IsNotFound reports whether err is a 404 from the remote service.
func IsNotFound(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound
}

// Client issues HTTP requests with the retry policy applied uniformly.
type Client struct {
	http        *http.Client
	maxAttempts int
	baseDelay   time.Duration
	sleep       func(time.Duration)
	jitter      func() float64
	logger      *slog.Logger
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client (used for OAuth
// transports and tests).
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithMaxAttempts overrides the bounded attempt count (defaults to 4).
func WithMaxAttempts(attempts int) Option {
	return func(c *Client) {
		if attempts > 0 {
			c.maxAttempts = attempts
		}
	}
}

// WithBaseDelay overrides the backoff base delay.
func WithBaseDelay(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.baseDelay = d
		}
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleep func(time.Duration)) Option {
	return func(c *Client) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

// WithJitter overrides the jitter source (useful for tests).
func WithJitter(jitter func() float64) Option {
	return func(c *Client) {
		if jitter != nil {
			c.jitter = jitter
		}
	}
}

// WithLogger overrides the retry logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient constructs a retrying client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		http:        &http.Client{Timeout: defaultTimeout},
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultBaseDelay,
		sleep:       time.Sleep,
		jitter:      rand.Float64,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetJSON issues a GET and decodes the JSON response body into out.
func (c *Client) GetJSON(ctx context.Context, rawURL string, params url.Values, headers http.Header, out any) error {
	if len(params) > 0 {
		sep := "?"
		if strings.Contains(rawURL, "?") {
			sep = "&"
		}
		rawURL += sep + params.Encode()
	}
	body, err := c.do(ctx, http.MethodGet, rawURL, headers, nil)
	if err != nil {
		return err
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response from %s: %w", rawURL, err)
	}
	return nil
}

// PostJSON issues a POST with an optional JSON payload and decodes any JSON
// response body into out. Mutating calls carry the same retry policy as GETs.
func (c *Client) PostJSON(ctx context.Context, rawURL string, headers http.Header, payload, out any) error {
	var encoded []byte
	if payload != nil {
		var err error
		encoded, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		if headers == nil {
			headers = http.Header{}
		}
		headers = headers.Clone()
		headers.Set("Content-Type", "application/json")
	}
	body, err := c.do(ctx, http.MethodPost, rawURL, headers, encoded)
	if err != nil {
		return err
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response from %s: %w", rawURL, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, rawURL string, headers http.Header, body []byte) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		respBody, err := c.send(ctx, method, rawURL, headers, body)
		if err == nil {
			return respBody, nil
		}
		lastErr = err

		delay, retry := c.retryDelay(ctx, err, attempt)
		if !retry {
			return nil, err
		}
		c.logger.Warn("retrying request",
			"method", method, "url", rawURL,
			"attempt", attempt, "max_attempts", c.maxAttempts,
			"sleep", delay.Round(100*time.Millisecond), "err", err)
		c.sleep(delay)
	}
	return nil, lastErr
}

func (c *Client) send(ctx context.Context, method, rawURL string, headers http.Header, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{
			Code:       resp.StatusCode,
			Body:       string(respBody),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}
	return respBody, nil
}

// retryDelay classifies an error and computes the sleep before the next
// attempt. Rate limiting honors a server-provided Retry-After, or backs off
// twice as hard as other transient statuses; everything transient gets
// random jitter so callers do not stampede.
func (c *Client) retryDelay(ctx context.Context, err error, attempt int) (time.Duration, bool) {
	if attempt >= c.maxAttempts || ctx.Err() != nil {
		return 0, false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		if !transientStatus(statusErr.Code) {
			return 0, false
		}
		if statusErr.Code == http.StatusTooManyRequests {
			if statusErr.RetryAfter > 0 {
				return statusErr.RetryAfter + c.jitterUpTo(time.Second), true
			}
			return c.backoff(attempt)*2 + c.jitterUpTo(time.Second), true
		}
		return c.backoff(attempt) + c.jitterUpTo(250*time.Millisecond), true
	}

	// Network-level failures (timeouts, refused connections) retry with
	// plain exponential backoff.
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return c.backoff(attempt) + c.jitterUpTo(250*time.Millisecond), true
	}
	return 0, false
}

// backoff returns base * 2^(attempt-1).
func (c *Client) backoff(attempt int) time.Duration {
	delay := c.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
	}
	return delay
}

func (c *Client) jitterUpTo(max time.Duration) time.Duration {
	return time.Duration(c.jitter() * float64(max))
}

func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}
