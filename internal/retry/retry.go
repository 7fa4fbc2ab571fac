// Package retry implements the bounded exponential backoff policy shared by
// the storage and embedding collaborators.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/fulvian/devstream/pkg/types"
)

// Default policy values
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 100 * time.Millisecond
	DefaultMaxDelay    = 5 * time.Second
	DefaultMultiplier  = 2.0
)

// Config configures exponential backoff retry behavior
type Config struct {
	MaxAttempts int           // Total attempts including the first one
	BaseDelay   time.Duration // Initial delay between attempts
	MaxDelay    time.Duration // Maximum delay between attempts
	Multiplier  float64       // Exponential backoff multiplier
}

// DefaultConfig returns the default retry policy
func DefaultConfig() Config {
	return Config{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		MaxDelay:    DefaultMaxDelay,
		Multiplier:  DefaultMultiplier,
	}
}

// permanentError marks an error that must not be retried
type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent wraps err so that Do returns it immediately
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsRetryable reports whether err is worth another attempt.
// Validation failures, permanent errors and cancellation are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var perm *permanentError
	if errors.As(err, &perm) {
		return false
	}

	// A per-request timeout is transient; the caller's own deadline is
	// checked by Do before each attempt.
	switch {
	case errors.Is(err, context.Canceled),
		errors.Is(err, types.ErrDimensionMismatch),
		errors.Is(err, types.ErrScoreLengthMismatch),
		errors.Is(err, types.ErrInvalidQuery),
		errors.Is(err, types.ErrInvalidTokenBudget),
		errors.Is(err, types.ErrInvalidContentType):
		return false
	}
	return true
}

// Do executes fn with exponential backoff.
// Retry stops early on non-retryable errors and on context cancellation.
func Do[T any](ctx context.Context, config Config, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	attempts := config.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := config.BaseDelay

	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		// Don't retry on context cancellation
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		if !IsRetryable(err) {
			return zero, unwrapPermanent(err)
		}

		// Apply exponential backoff before next attempt
		if attempt < attempts-1 {
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, ctx.Err()
			case <-timer.C:
			}
			backoff = time.Duration(float64(backoff) * config.Multiplier)
			if config.MaxDelay > 0 && backoff > config.MaxDelay {
				backoff = config.MaxDelay
			}
		}
	}

	return zero, unwrapPermanent(lastErr)
}

// unwrapPermanent strips a top-level Permanent marker. A marker nested
// inside another error stays in place so the outer wrapper survives.
func unwrapPermanent(err error) error {
	if perm, ok := err.(*permanentError); ok {
		return perm.err
	}
	return err
}
