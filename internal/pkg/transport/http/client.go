// Package http provides a configurable HTTP client with retry logic. It wraps
// the HashiCorp retryablehttp.Client and exposes functional options for
// customizing timeouts and retry behavior.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// config holds internal settings for the HTTP client.
type config struct {
	timeout      time.Duration            // maximum duration for a single HTTP request
	retryWaitMin time.Duration            // minimum delay between retry attempts
	retryWaitMax time.Duration            // maximum delay between retry attempts
	retryMax     int                      // maximum number of retry attempts
	checkRetry   retryablehttp.CheckRetry // custom retry policy (nil keeps the default)
}

// Option is a functional option for configuring the HTTP client.
type Option func(*config)

// NewClient returns a retryablehttp.Client configured with the provided
// options. Defaults: 5s timeout, 1s..5s retry wait, 2 retries, and the
// retryablehttp default retry policy.
func NewClient(opts ...Option) *retryablehttp.Client {
	cfg := config{
		timeout:      5 * time.Second,
		retryWaitMin: 1 * time.Second,
		retryWaitMax: 5 * time.Second,
		retryMax:     2,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	client := retryablehttp.NewClient()
	client.Logger = nil
	client.HTTPClient.Timeout = cfg.timeout
	client.RetryWaitMin = cfg.retryWaitMin
	client.RetryWaitMax = cfg.retryWaitMax
	client.RetryMax = cfg.retryMax
	if cfg.checkRetry != nil {
		client.CheckRetry = cfg.checkRetry
	}
	return client
}

// RetryOnNonSuccess is a retry policy that retries any response outside the
// 2xx range, in addition to transport-level failures. Webhook delivery uses it
// because subscribers signal acceptance purely through the status code.
func RetryOnNonSuccess(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return true, nil
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return true, nil
	}
	return false, nil
}

// WithTimeout sets the maximum duration allowed for a single HTTP request.
// Default: 5 seconds.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithRetryWaitMin sets the minimum delay between retry attempts.
// Default: 1 second.
func WithRetryWaitMin(d time.Duration) Option {
	return func(c *config) {
		c.retryWaitMin = d
	}
}

// WithRetryWaitMax sets the maximum delay between retry attempts.
// Default: 5 seconds.
func WithRetryWaitMax(d time.Duration) Option {
	return func(c *config) {
		c.retryWaitMax = d
	}
}

// WithRetryMax sets the maximum number of retry attempts for failed requests.
// Default: 2 retries.
func WithRetryMax(n int) Option {
	return func(c *config) {
		c.retryMax = n
	}
}

// WithCheckRetry overrides the client's retry policy.
func WithCheckRetry(policy retryablehttp.CheckRetry) Option {
	return func(c *config) {
		c.checkRetry = policy
	}
}
