package papersources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// HTTPClientConfig configures the HTTP client.
type HTTPClientConfig struct {
	// Timeout bounds every single request, including reading the body.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// MaxRetries is the number of additional attempts on 429, 5xx and network
	// errors. Zero means exactly one attempt; metadata lookups use that and leave
	// retries to the batch layer.
	MaxRetries int

	// RetryDelay is the base delay between retries.
	RetryDelay time.Duration

	// UserAgent is the User-Agent header sent with requests.
	UserAgent string

	// APIKey is an optional API key for authentication.
	APIKey string

	// APIKeyHeader is the header name for the API key (e.g., "X-API-Key", "Authorization").
	APIKeyHeader string
}

// HTTPClient wraps http.Client with rate limiting and optional retries.
// It is safe for concurrent use.
type HTTPClient struct {
	client      *http.Client
	rateLimiter *RateLimiter
	config      HTTPClientConfig
}

// NewHTTPClient creates a new HTTP client with rate limiting.
func NewHTTPClient(cfg HTTPClientConfig) *HTTPClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 1
	}
	if cfg.BurstSize == 0 {
		cfg.BurstSize = 1
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "Helixir-AuthorMatching/1.0"
	}

	return &HTTPClient{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		rateLimiter: NewRateLimiter(cfg.RateLimit, cfg.BurstSize),
		config:      cfg,
	}
}

// Do executes an HTTP request after waiting on the rate limiter.
//
// Retryable responses (429, 5xx) are retried up to MaxRetries times. Once the
// attempts are used up the last response is returned unread, so callers can
// map its status code to a typed error. Network errors on the last attempt are
// returned as errors.
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	if c.config.APIKey != "" && c.config.APIKeyHeader != "" {
		req.Header.Set(c.config.APIKeyHeader, c.config.APIKey)
	}

	for attempt := 0; ; attempt++ {
		if err := c.rateLimiter.Wait(req.Context()); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}

		lastAttempt := attempt >= c.config.MaxRetries

		resp, err := c.client.Do(req)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			if lastAttempt {
				return nil, fmt.Errorf("request failed after %d attempt(s): %w", attempt+1, err)
			}
			if err := c.prepareRetry(req, c.config.RetryDelay); err != nil {
				return nil, err
			}
			continue
		}

		if !shouldRetry(resp.StatusCode) || lastAttempt {
			c.adjustRate(resp)
			return resp, nil
		}

		delay := c.retryDelay(resp)
		drain(resp)
		if err := c.prepareRetry(req, delay); err != nil {
			return nil, err
		}
	}
}

// adjustRate honors a final 429's Retry-After for the following requests and
// lifts the slowdown once the registry answers normally again.
func (c *HTTPClient) adjustRate(resp *http.Response) {
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		c.rateLimiter.Throttle(RetryAfter(resp))
	case resp.StatusCode < 300:
		c.rateLimiter.Restore()
	}
}

func (c *HTTPClient) prepareRetry(req *http.Request, delay time.Duration) error {
	if err := waitForRetry(req.Context(), delay); err != nil {
		return err
	}
	if req.Body == nil || req.GetBody == nil {
		return nil
	}
	body, err := req.GetBody()
	if err != nil {
		return fmt.Errorf("cannot retry request: %w", err)
	}
	req.Body = body
	return nil
}

// RetryAfter parses a Retry-After header as seconds or an HTTP date.
// It returns zero when the header is absent or unparsable.
func RetryAfter(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	if seconds, err := strconv.ParseInt(v, 10, 64); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

func (c *HTTPClient) retryDelay(resp *http.Response) time.Duration {
	if d := RetryAfter(resp); d > 0 {
		return d
	}
	return c.config.RetryDelay
}

func shouldRetry(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || (statusCode >= 500 && statusCode < 600)
}

func waitForRetry(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func drain(resp *http.Response) {
	if resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
	resp.Body.Close()
}
