package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
)

// Config holds retry configuration.
type Config struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration

	// Clock drives the waits between attempts. Defaults to the real clock.
	Clock clockwork.Clock
}

// DefaultConfig returns the default retry configuration for RPC calls.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		BaseBackoff: 500 * time.Millisecond,
		MaxBackoff:  5 * time.Second,
	}
}

// Do executes fn with jittered exponential backoff between attempts.
// Returns the last error if all attempts fail.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	_, err := DoWithResult(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// DoWithResult is Do for functions that produce a value.
func DoWithResult[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	var zero T
	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-clock.After(calculateBackoff(cfg.BaseBackoff, cfg.MaxBackoff, attempt-1)):
			}
		}

		v, err := fn()
		if err == nil {
			return v, nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return zero, err
		}
	}

	return zero, fmt.Errorf("failed after %d attempts: %w", cfg.MaxAttempts, lastErr)
}

// Exponential returns base * 2^attempt without jitter, capped at max when
// max is positive. Saturates instead of overflowing.
func Exponential(base, max time.Duration, attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	backoff := time.Duration(math.MaxInt64)
	if attempt < 62 && base <= time.Duration(math.MaxInt64>>uint(attempt)) {
		backoff = base << uint(attempt)
	}
	if max > 0 && backoff > max {
		backoff = max
	}
	return backoff
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	type hasStatusCode interface {
		StatusCode() int
	}
	var sc hasStatusCode
	if errors.As(err, &sc) {
		switch sc.StatusCode() {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
		return false
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}

var retryablePatterns = []string{
	"connection closed",
	"connection refused",
	"connection reset",
	"eof",
	"client is closing",
	"broken pipe",
	"timeout",
	"temporary failure",
	"service unavailable",
	"rate limit",
	"too many requests",
	"node is behind",
}

// calculateBackoff is Exponential with a 0.5-1.0 jitter factor so that many
// callers retrying against one RPC node spread out.
func calculateBackoff(base, max time.Duration, attempt int) time.Duration {
	backoff := Exponential(base, max, attempt)
	jitter := 0.5 + rand.Float64()*0.5
	return time.Duration(float64(backoff) * jitter)
}
