package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// JitterStrategy defines the jitter strategy to use
type JitterStrategy int

const (
	// JitterNone disables jitter
	JitterNone JitterStrategy = iota
	// JitterEqual applies uniform jitter (equal chance of any delay in range)
	JitterEqual
	// JitterDecorrelated applies decorrelated jitter (AWS recommended)
	JitterDecorrelated
)

// Config defines retry configuration
type Config struct {
	// MaxAttempts is the maximum number of attempts (including the first one)
	MaxAttempts int
	// InitialDelay is the initial delay between retries
	InitialDelay time.Duration
	// MaxDelay is the maximum delay between retries
	MaxDelay time.Duration
	// Multiplier is the exponential backoff multiplier
	Multiplier float64
	// JitterStrategy defines the jitter algorithm to use
	JitterStrategy JitterStrategy
	// Rand is the random source for jitter (optional, uses local source if nil)
	Rand *rand.Rand
	// OnRetry is called on each retry attempt for observability
	OnRetry func(attempt int, err error, nextDelay time.Duration)
	// After creates a timer channel (for testing, defaults to time.After)
	After func(d time.Duration) <-chan time.Time
}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialDelay:   100 * time.Millisecond,
		MaxDelay:       30 * time.Second,
		Multiplier:     2.0,
		JitterStrategy: JitterNone,
	}
}

// Normalize validates and normalizes the configuration
func (c *Config) Normalize() error {
	if c.MaxAttempts <= 0 {
		return errors.New("retry: MaxAttempts must be positive")
	}
	if c.InitialDelay <= 0 {
		return errors.New("retry: InitialDelay must be positive")
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
	if c.InitialDelay > c.MaxDelay {
		return errors.New("retry: InitialDelay cannot be greater than MaxDelay")
	}
	if c.Multiplier == 0 {
		c.Multiplier = 2.0
	}
	if c.Multiplier < 1.0 {
		return errors.New("retry: Multiplier must be >= 1.0")
	}

	if c.Rand == nil {
		c.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if c.After == nil {
		c.After = time.After
	}

	return nil
}

// RetryableFunc is a function that can be retried
type RetryableFunc func(ctx context.Context) error

// IsRetryableFunc determines if an error should trigger a retry
type IsRetryableFunc func(err error) bool

// ExhaustedError is returned when all attempts failed with a retryable error.
type ExhaustedError struct {
	LastError error
	Attempts  int
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retry: attempts exhausted (%d): %v", e.Attempts, e.LastError)
}

func (e *ExhaustedError) Unwrap() error {
	return e.LastError
}

// Exhausted reports whether err is an ExhaustedError, meaning every attempt
// failed with an error the caller classified as retryable.
func Exhausted(err error) bool {
	var ex *ExhaustedError
	return errors.As(err, &ex)
}

// DefaultRetryable retries timeouts and errors advertising themselves as temporary.
// Context cancellation is never retried.
func DefaultRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	type temporary interface {
		Temporary() bool
	}
	if t, ok := err.(temporary); ok {
		return t.Temporary()
	}

	return false
}

// Do executes a function with retry logic using exponential backoff
func Do(ctx context.Context, config Config, fn RetryableFunc) error {
	return DoWithRetryable(ctx, config, fn, DefaultRetryable)
}

// DoWithRetryable executes fn up to config.MaxAttempts times, sleeping between
// attempts with exponential backoff and optional jitter.
//
// A non-retryable error is returned to the caller immediately and unchanged,
// no matter on which attempt it occurred. When every attempt fails with a
// retryable error, an *ExhaustedError wrapping the last one is returned.
func DoWithRetryable(ctx context.Context, config Config, fn RetryableFunc, isRetryable IsRetryableFunc) error {
	// Normalize and validate config on a copy to avoid modifying the original
	configCopy := config
	if err := configCopy.Normalize(); err != nil {
		return err
	}
	if isRetryable == nil {
		isRetryable = DefaultRetryable
	}

	var lastErr error

	for attempt := 1; attempt <= configCopy.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		// Non-retryable errors propagate unchanged, even on the last attempt
		if !isRetryable(lastErr) {
			return lastErr
		}

		if attempt == configCopy.MaxAttempts {
			break
		}

		delay := configCopy.applyJitter(configCopy.calculateDelay(attempt))

		// Respect context deadline
		if deadline, ok := ctx.Deadline(); ok {
			if remaining := time.Until(deadline); delay > remaining {
				delay = remaining
			}
		}

		if configCopy.OnRetry != nil {
			configCopy.OnRetry(attempt, lastErr, delay)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-configCopy.After(delay):
			// Continue to next attempt
		}
	}

	return &ExhaustedError{
		LastError: lastErr,
		Attempts:  configCopy.MaxAttempts,
	}
}

// calculateDelay calculates the delay for the given attempt using exponential backoff
func (c Config) calculateDelay(attempt int) time.Duration {
	delay := c.InitialDelay

	// Apply multiplier (attempt-1) times, guarding against overflow
	for i := 1; i < attempt; i++ {
		if delay > c.MaxDelay/time.Duration(c.Multiplier) {
			return c.MaxDelay
		}
		delay = time.Duration(float64(delay) * c.Multiplier)
		if delay > c.MaxDelay {
			return c.MaxDelay
		}
	}

	if delay > c.MaxDelay {
		delay = c.MaxDelay
	}
	return delay
}

// applyJitter applies the configured jitter strategy to the delay
func (c Config) applyJitter(baseDelay time.Duration) time.Duration {
	switch c.JitterStrategy {
	case JitterEqual:
		// Equal jitter: random value between baseDelay/2 and baseDelay
		half := baseDelay / 2
		jitter := half + time.Duration(c.Rand.Int63n(int64(half)+1))
		return clamp(jitter, c.InitialDelay, c.MaxDelay)

	case JitterDecorrelated:
		// Decorrelated jitter: baseDelay .. 3*baseDelay/2
		max := 3 * baseDelay / 2
		jitter := baseDelay + time.Duration(c.Rand.Int63n(int64(max-baseDelay)+1))
		return clamp(jitter, c.InitialDelay, c.MaxDelay)

	default:
		return baseDelay
	}
}

// clamp ensures the value is within the specified bounds
func clamp(value, min, max time.Duration) time.Duration {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// WithAttempts is a convenience function with custom max attempts
func WithAttempts(ctx context.Context, maxAttempts int, fn RetryableFunc) error {
	config := DefaultConfig()
	config.MaxAttempts = maxAttempts
	return Do(ctx, config, fn)
}
