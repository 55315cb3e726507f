// Package retry provides a configurable retry mechanism for operations that
// may fail temporarily. It wraps the Avast retry-go package behind a small
// interface with functional options.
//
// Exponential backoff is the default delay strategy. Flows that need a
// predictable cadence between attempts (e.g. webhook handshakes) can switch to
// a fixed delay with WithFixedDelay.
package retry

import (
	"context"
	"time"

	retry "github.com/avast/retry-go/v4"
)

// Retry executes operations with automatic retry logic.
type Retry interface {
	// Execute runs the given operation with the configured retry logic. The
	// operation should be idempotent. It returns nil if the operation succeeds
	// within the configured number of attempts, the last error if all attempts
	// fail, or the context error if ctx is done first.
	Execute(ctx context.Context, operation func() error) error
}

// config holds internal settings for the retry mechanism.
type config struct {
	attempts   uint          // maximum number of attempts, including the first
	delay      time.Duration // base delay between attempts
	maxDelay   time.Duration // cap for the backoff growth
	fixedDelay bool          // use a constant delay instead of backoff
}

// Option is a functional option for configuring the retry mechanism.
type Option func(*config)

// retrier implements the Retry interface on top of retry-go.
type retrier struct {
	cfg config
}

var _ Retry = (*retrier)(nil)

// New returns a Retry configured with the provided options.
//
// Defaults: 3 attempts, 1s base delay, 5s max delay, exponential backoff,
// only the last error returned.
func New(opts ...Option) Retry {
	cfg := config{
		attempts: 3,
		delay:    1 * time.Second,
		maxDelay: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &retrier{
		cfg: cfg,
	}
}

// Execute implements the Retry interface.
func (r *retrier) Execute(ctx context.Context, operation func() error) error {
	delayType := retry.BackOffDelay
	if r.cfg.fixedDelay {
		delayType = retry.FixedDelay
	}

	options := []retry.Option{
		retry.Attempts(r.cfg.attempts),
		retry.Delay(r.cfg.delay),
		retry.MaxDelay(r.cfg.maxDelay),
		retry.DelayType(delayType),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	}

	return retry.Do(operation, options...)
}

// WithAttempts sets the maximum number of attempts, including the initial one.
// Default: 3.
func WithAttempts(n uint) Option {
	return func(c *config) {
		c.attempts = n
	}
}

// WithDelay sets the base delay between attempts. Under exponential backoff
// subsequent delays grow from this value; under a fixed delay every wait uses
// it as-is. Default: 1 second.
func WithDelay(d time.Duration) Option {
	return func(c *config) {
		c.delay = d
	}
}

// WithMaxDelay caps the delay between attempts. Default: 5 seconds.
func WithMaxDelay(d time.Duration) Option {
	return func(c *config) {
		c.maxDelay = d
	}
}

// WithFixedDelay switches the delay strategy from exponential backoff to a
// constant wait equal to the configured base delay.
func WithFixedDelay() Option {
	return func(c *config) {
		c.fixedDelay = true
	}
}
