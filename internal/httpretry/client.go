// Package httpretry provides the shared retrying HTTP client used for every
// origin-side fetch (aggregator records, IIIF manifests, media bytes, HEAD
// probes). Only idempotent verbs are offered; uploads to the target
// repository go through their own non-retrying client.
package httpretry

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout bounds a single request attempt.
	DefaultTimeout = 60 * time.Second
	// DefaultMaxRetries is the number of re-attempts after the first try.
	DefaultMaxRetries = 3
	// DefaultUserAgent identifies the pipeline to origin servers.
	DefaultUserAgent = "DPLA-Wikimedia-Ingest/1.0 (+https://dp.la; tech@dp.la)"
)

// retryableStatus holds the response codes worth another attempt. Everything
// else is returned to the caller as-is.
var retryableStatus = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// Client issues GET and HEAD requests with bounded exponential-backoff
// retries and an optional rate limit. Each pipeline worker owns its own
// Client so retry and connection state are never shared across goroutines.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	userAgent  string
	logger     zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// Header is an extra header applied to a single request. Credentials travel
// here rather than in the URL, which is logged on every retry.
type Header struct {
	Key   string
	Value string
}

// WithHTTPClient sets a custom underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRateLimit caps outgoing requests at rps per second.
func WithRateLimit(rps float64) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(rps), 1) }
}

// WithMaxRetries overrides the retry budget.
func WithMaxRetries(n int) Option {
	return func(c *Client) { c.maxRetries = n }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithLogger attaches a logger for retry diagnostics.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New constructs a Client with defaults applied.
func New(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		maxRetries: DefaultMaxRetries,
		userAgent:  DefaultUserAgent,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get issues a GET for rawURL. On success the caller owns resp.Body.
func (c *Client) Get(ctx context.Context, rawURL string, headers ...Header) (*http.Response, error) {
	return c.do(ctx, http.MethodGet, rawURL, headers)
}

// Head issues a HEAD for rawURL. The response body is already closed.
func (c *Client) Head(ctx context.Context, rawURL string, headers ...Header) (*http.Response, error) {
	resp, err := c.do(ctx, http.MethodHead, rawURL, headers)
	if err != nil {
		return nil, err
	}
	resp.Body.Close()
	return resp, nil
}

// GetBytes issues a GET and reads the full body, capped at limit bytes
// (0 means no cap). Non-2xx responses are returned as errors.
func (c *Client) GetBytes(ctx context.Context, rawURL string, limit int64, headers ...Header) ([]byte, error) {
	resp, err := c.Get(ctx, rawURL, headers...)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d fetching %q", resp.StatusCode, rawURL)
	}

	var r io.Reader = resp.Body
	if limit > 0 {
		r = io.LimitReader(resp.Body, limit)
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading body of %q: %w", rawURL, err)
	}
	return body, nil
}

// do runs one request with the retry budget. A response with a retryable
// status is drained, closed, and retried; any other response is returned to
// the caller, body open.
func (c *Client) do(ctx context.Context, method, rawURL string, headers []Header) (*http.Response, error) {
	schedule := backoff.NewExponentialBackOff()
	schedule.InitialInterval = time.Second
	schedule.MaxInterval = 30 * time.Second
	schedule.Reset()

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := schedule.NextBackOff()
			c.logger.Debug().
				Str("method", method).
				Str("url", rawURL).
				Int("attempt", attempt).
				Dur("delay", delay).
				Msg("httpretry: retrying")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limiter: %w", err)
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
		if err != nil {
			return nil, fmt.Errorf("creating %s request for %q: %w", method, rawURL, err)
		}
		req.Header.Set("User-Agent", c.userAgent)
		for _, h := range headers {
			req.Header.Set(h.Key, h.Value)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%s %q: %w", method, rawURL, err)
			continue
		}

		if retryableStatus[resp.StatusCode] {
			lastErr = fmt.Errorf("%s %q: status %d", method, rawURL, resp.StatusCode)
			io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck
			resp.Body.Close()
			continue
		}

		return resp, nil
	}

	return nil, fmt.Errorf("retries exhausted: %w", lastErr)
}
