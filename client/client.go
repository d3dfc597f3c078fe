// Package client provides a rate-limited HTTP JSON client for registry
// and metadata APIs, with retry, backoff, and per-host circuit breaking.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/cenk/backoff"
	"github.com/rs/dnscache"
)

const (
	defaultTimeout     = 30 * time.Second
	defaultMaxAttempts = 3
	defaultBaseDelay   = 500 * time.Millisecond
	defaultBurst       = 20
	defaultRate        = 10 // tokens per second

	maxRetryAfter = 300 // seconds; 429 Retry-After beyond this is not honored
)

// Client is an HTTP client for registry APIs. All requests share one
// token bucket and one set of per-host circuit breakers.
type Client struct {
	http        *http.Client
	limiter     *RateLimiter
	breakers    *breakerSet
	userAgent   string
	maxAttempts int
	baseDelay   time.Duration
	authFn      func(url string) (headerName, headerValue string)
	debugf      func(format string, args ...any)
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the total per-request budget (connect + read).
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithMaxAttempts sets the attempt budget per logical call.
func WithMaxAttempts(n int) Option {
	return func(c *Client) { c.maxAttempts = n }
}

// WithBaseDelay sets the base delay for retry backoff.
func WithBaseDelay(d time.Duration) Option {
	return func(c *Client) { c.baseDelay = d }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithRateLimit replaces the default token bucket.
func WithRateLimit(burst int, perSecond float64) Option {
	return func(c *Client) { c.limiter = NewRateLimiter(burst, perSecond) }
}

// WithAuthFunc sets a function that returns an auth header for a given URL.
// Return empty strings to send the request anonymously.
func WithAuthFunc(fn func(url string) (headerName, headerValue string)) Option {
	return func(c *Client) { c.authFn = fn }
}

// WithDebugLog sets a debug log function. Nil disables debug output.
func WithDebugLog(fn func(format string, args ...any)) Option {
	return func(c *Client) { c.debugf = fn }
}

// New creates a Client with the given options.
func New(opts ...Option) *Client {
	// DNS cache refreshed in the background; registries resolve constantly
	// during a large scan.
	resolver := &dnscache.Resolver{}
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			resolver.Refresh(true)
		}
	}()

	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	c := &Client{
		http: &http.Client{
			Timeout: defaultTimeout,
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
					host, port, err := net.SplitHostPort(addr)
					if err != nil {
						return nil, err
					}
					ips, err := resolver.LookupHost(ctx, host)
					if err != nil {
						return nil, err
					}
					for _, ip := range ips {
						conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
						if err == nil {
							return conn, nil
						}
					}
					return nil, fmt.Errorf("failed to dial any resolved IP for %s", host)
				},
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		limiter:     NewRateLimiter(defaultBurst, defaultRate),
		breakers:    newBreakerSet(),
		userAgent:   "slopguard/1.0",
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultBaseDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Default returns a client with library defaults.
func Default() *Client {
	return &Client{
		http:        &http.Client{Timeout: defaultTimeout},
		limiter:     NewRateLimiter(defaultBurst, defaultRate),
		breakers:    newBreakerSet(),
		userAgent:   "slopguard/1.0",
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultBaseDelay,
	}
}

// GetJSON fetches url and unmarshals the response body into v.
// Returns ErrNotFound for 404/410, ErrBadPayload for undecodable bodies,
// and ErrQuotaExhausted when the source host reports spent quota.
func (c *Client) GetJSON(ctx context.Context, url string, v any) error {
	body, err := c.GetBody(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		if c.debugf != nil {
			c.debugf("bad payload from %s: %v", url, err)
		}
		return fmt.Errorf("%w: %s", ErrBadPayload, url)
	}
	return nil
}

// GetText fetches url and returns the response body as a string.
func (c *Client) GetText(ctx context.Context, url string) (string, error) {
	body, err := c.GetBody(ctx, url)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// GetBody fetches url and returns the raw response body, retrying
// transient failures within the attempt budget.
func (c *Client) GetBody(ctx context.Context, url string) ([]byte, error) {
	var body []byte

	err := c.breakers.call(url, func() error {
		b, err := c.getWithRetry(ctx, url)
		body = b
		return err
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) getWithRetry(ctx context.Context, url string) ([]byte, error) {
	var body []byte

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.baseDelay
	policy.Multiplier = 2.0
	policy.RandomizationFactor = 0.1
	policy.Reset()

	attempts := uint64(c.maxAttempts)
	if attempts > 0 {
		attempts--
	}

	op := func() error {
		b, err := c.doGet(ctx, url)
		if err == nil {
			body = b
			return nil
		}

		switch {
		case IsNotFound(err), IsFatal(err):
			return backoff.Permanent(err)
		}

		if errors.Is(err, errRetryAfterMissing) {
			// 429 with no usable Retry-After: give up, signal unavailable.
			return backoff.Permanent(err)
		}

		var httpErr *HTTPError
		if errors.As(err, &httpErr) {
			switch {
			case httpErr.StatusCode == http.StatusTooManyRequests:
				// doGet already slept on Retry-After before returning.
				return err
			case httpErr.StatusCode >= 500:
				return err
			default:
				return backoff.Permanent(err)
			}
		}

		// Connection reset, timeout: retryable.
		return err
	}

	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(policy, attempts), ctx))
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) doGet(ctx context.Context, url string) ([]byte, error) {
	if err := c.limiter.Acquire(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	if c.authFn != nil {
		if name, value := c.authFn(url); name != "" && value != "" {
			req.Header.Set(name, value)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", url, err)
		}
		return body, nil

	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, &HTTPError{StatusCode: resp.StatusCode, URL: url}

	case resp.StatusCode == http.StatusTooManyRequests:
		secs, ok := retryAfterSeconds(resp)
		if !ok {
			return nil, fmt.Errorf("%w: %s", errRetryAfterMissing, url)
		}
		if c.debugf != nil {
			c.debugf("429 from %s, honoring Retry-After %ds", url, secs)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(secs) * time.Second):
		}
		return nil, &HTTPError{StatusCode: resp.StatusCode, URL: url}

	case resp.StatusCode == http.StatusForbidden && quotaExhausted(resp):
		return nil, fmt.Errorf("%s: %w", url, ErrQuotaExhausted)

	default:
		return nil, &HTTPError{StatusCode: resp.StatusCode, URL: url}
	}
}

var errRetryAfterMissing = errors.New("rate limited without usable Retry-After")

// retryAfterSeconds parses a Retry-After header, rejecting absent or
// excessive values.
func retryAfterSeconds(resp *http.Response) (int, bool) {
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return 0, false
	}
	secs, err := strconv.Atoi(header)
	if err != nil || secs < 0 || secs > maxRetryAfter {
		return 0, false
	}
	return secs, true
}

// quotaExhausted reports whether a 403 carries a spent rate-limit quota,
// the way code-hosting APIs signal it.
func quotaExhausted(resp *http.Response) bool {
	return resp.Header.Get("X-RateLimit-Remaining") == "0"
}
