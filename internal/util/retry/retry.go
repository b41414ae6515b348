package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/juju/clock"
	jujuretry "github.com/juju/retry"
)

// Config holds retry configuration.
type Config struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Clock        clock.Clock
	// Notify is called after every failed attempt.
	Notify func(err error, attempt int)
}

// Option is a functional option for retry configuration.
type Option func(*Config)

// WithExponentialBackoff executes the operation with exponential backoff retry.
// It retries the operation up to MaxRetries times, with exponentially increasing
// delays between attempts. Context cancellation is respected between attempts.
//
// Errors wrapped with Fatal() are not retried.
func WithExponentialBackoff(ctx context.Context, operation func() error, opts ...Option) error {
	cfg := &Config{
		MaxRetries:   5,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Clock:        clock.WallClock,
	}

	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = time.Millisecond
	}

	attempts := 0
	err := jujuretry.Call(jujuretry.CallArgs{
		Func: func() error {
			attempts++
			return operation()
		},
		IsFatalError: IsFatal,
		NotifyFunc:   cfg.Notify,
		Attempts:     cfg.MaxRetries + 1,
		Delay:        cfg.InitialDelay,
		MaxDelay:     cfg.MaxDelay,
		BackoffFunc:  backoff(cfg.Multiplier),
		Clock:        cfg.Clock,
		Stop:         ctx.Done(),
	})

	switch {
	case err == nil:
		return nil
	case IsFatal(err):
		return fmt.Errorf("fatal error (not retrying): %w", err)
	case jujuretry.IsRetryStopped(err):
		return fmt.Errorf("context cancelled after %d attempts: %w", attempts, ctx.Err())
	case jujuretry.IsAttemptsExceeded(err):
		return fmt.Errorf("operation failed after %d retries: %w", attempts, jujuretry.LastError(err))
	default:
		return err
	}
}

// backoff returns the delay progression for the given multiplier.
// The first retry always waits the initial delay.
func backoff(multiplier float64) func(time.Duration, int) time.Duration {
	if multiplier == 2.0 {
		return jujuretry.DoubleDelay
	}
	return func(delay time.Duration, attempt int) time.Duration {
		if attempt == 1 {
			return delay
		}
		return time.Duration(float64(delay) * multiplier)
	}
}

// WithMaxRetries sets the maximum number of retries.
func WithMaxRetries(n int) Option {
	return func(c *Config) {
		c.MaxRetries = n
	}
}

// WithInitialDelay sets the initial delay between retries.
func WithInitialDelay(d time.Duration) Option {
	return func(c *Config) {
		c.InitialDelay = d
	}
}

// WithMaxDelay sets the maximum delay between retries.
func WithMaxDelay(d time.Duration) Option {
	return func(c *Config) {
		c.MaxDelay = d
	}
}

// WithMultiplier sets the backoff multiplier.
func WithMultiplier(m float64) Option {
	return func(c *Config) {
		c.Multiplier = m
	}
}

// WithClock replaces the wall clock, mostly for tests.
func WithClock(clk clock.Clock) Option {
	return func(c *Config) {
		c.Clock = clk
	}
}

// WithNotify registers a callback invoked after each failed attempt.
func WithNotify(fn func(err error, attempt int)) Option {
	return func(c *Config) {
		c.Notify = fn
	}
}

// FatalError wraps an error to mark it as fatal (non-retryable).
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return e.Err.Error()
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// Fatal marks an error as fatal (non-retryable).
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

// IsFatal checks if an error is fatal (non-retryable).
func IsFatal(err error) bool {
	var fatalErr *FatalError
	return errors.As(err, &fatalErr)
}
