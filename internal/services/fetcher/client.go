// Package fetcher downloads target sources over HTTP.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultUserAgent is sent when the target does not set its own.
	DefaultUserAgent = "decatholac-mango-tarnished"

	// DefaultMaxBodySize caps a response body at 10MB.
	DefaultMaxBodySize = 10 * 1024 * 1024
)

// ErrBodyTooLarge is returned instead of a truncated body.
var ErrBodyTooLarge = errors.New("response body too large")

// HTTPError is returned for a non-2xx response.
type HTTPError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// Client fetches target sources with per-host rate limiting and retries.
type Client struct {
	httpClient *http.Client
	logger     arbor.ILogger
	userAgent  string
	interval   time.Duration
	retry      *RetryPolicy
	maxBody    int64

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout sets the request timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithUserAgent sets the default user agent.
func WithUserAgent(userAgent string) ClientOption {
	return func(c *Client) {
		if userAgent != "" {
			c.userAgent = userAgent
		}
	}
}

// WithPerHostInterval sets the minimum gap between two requests to one host.
// Zero disables rate limiting.
func WithPerHostInterval(interval time.Duration) ClientOption {
	return func(c *Client) {
		c.interval = interval
	}
}

// WithRetryPolicy replaces the retry policy.
func WithRetryPolicy(policy *RetryPolicy) ClientOption {
	return func(c *Client) {
		c.retry = policy
	}
}

// WithMaxBodySize sets the largest body Fetch accepts.
func WithMaxBodySize(size int64) ClientOption {
	return func(c *Client) {
		if size > 0 {
			c.maxBody = size
		}
	}
}

// NewClient creates a new fetch client.
func NewClient(logger arbor.ILogger, opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger:    logger,
		userAgent: DefaultUserAgent,
		interval:  time.Second,
		retry:     NewRetryPolicy(3),
		maxBody:   DefaultMaxBodySize,
		limiters:  make(map[string]*rate.Limiter),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Fetch GETs rawURL and returns the body. headers override the defaults.
func (c *Client) Fetch(ctx context.Context, rawURL string, headers http.Header) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid url %s: %w", rawURL, err)
	}

	var body string
	_, err = c.retry.ExecuteWithRetry(ctx, c.logger, func() (int, error) {
		if err := c.wait(ctx, parsed.Host); err != nil {
			return 0, err
		}

		result, status, err := c.do(ctx, rawURL, headers)
		if err != nil {
			return status, err
		}
		body = result
		return status, nil
	})
	if err != nil {
		return "", err
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, rawURL string, headers http.Header) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	for key, values := range headers {
		req.Header.Del(key)
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	c.logger.Debug().Str("url", rawURL).Msg("Fetching source")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return "", resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(data)) > c.maxBody {
		return "", resp.StatusCode, fmt.Errorf("%w: %s exceeds %d bytes", ErrBodyTooLarge, rawURL, c.maxBody)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", resp.StatusCode, &HTTPError{
			StatusCode: resp.StatusCode,
			URL:        rawURL,
			Body:       truncate(string(data), 200),
		}
	}

	return string(data), resp.StatusCode, nil
}

// wait blocks until host may be contacted again
func (c *Client) wait(ctx context.Context, host string) error {
	if c.interval <= 0 || host == "" {
		return nil
	}

	c.mu.Lock()
	limiter, ok := c.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(c.interval), 1)
		c.limiters[host] = limiter
	}
	c.mu.Unlock()

	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait for %s: %w", host, err)
	}
	return nil
}

// HeadersFrom converts a target's header map into an http.Header
func HeadersFrom(values map[string]string) http.Header {
	headers := make(http.Header, len(values))
	for key, value := range values {
		headers.Set(strings.TrimSpace(key), value)
	}
	return headers
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
