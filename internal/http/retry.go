package http

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/handiism/albumpdf/internal/model"
)

// RetryPolicy bounds how often and how patiently an operation is retried.
//
// Only errors accepted by Retryable are retried; everything else is returned
// immediately. When the attempt budget runs out the last error is reported
// as an unclassified failure, so a transient classification never reaches
// the caller.
//
// Example:
//
//	policy := DefaultRetryPolicy()
//	err := policy.Do(ctx, func(ctx context.Context) error {
//	    return fetchOnce(ctx)
//	})
type RetryPolicy struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int

	// InitialBackoff is the delay after the first failed attempt.
	InitialBackoff time.Duration

	// MaxBackoff caps the delay between attempts.
	MaxBackoff time.Duration

	// Multiplier grows the delay after every failed attempt.
	Multiplier float64

	// Retryable decides whether an error is worth another attempt.
	Retryable func(error) bool

	// OnRetry is called before sleeping ahead of the next attempt.
	// attempt is the 1-based number of the attempt that just failed.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultRetryPolicy returns 3 attempts with exponential backoff from 1s to
// 10s, retrying transient failures only.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: time.Second,
		MaxBackoff:     10 * time.Second,
		Multiplier:     2,
		Retryable:      IsTransient,
	}
}

// IsTransient reports whether err is a connection-level failure or timeout.
func IsTransient(err error) bool {
	return model.KindOf(err) == model.KindTransient
}

// Backoff returns the delay after the given failed attempt (1-based).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	delay := float64(p.InitialBackoff) * math.Pow(mult, float64(attempt-1))
	if p.MaxBackoff > 0 && delay > float64(p.MaxBackoff) {
		return p.MaxBackoff
	}
	return time.Duration(delay)
}

// Do runs op until it succeeds, fails with a non-retryable error, or the
// attempt budget is spent. Waiting between attempts respects ctx.
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsTransient
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = op(ctx); err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}

		delay := p.Backoff(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return &model.Error{
		Kind:    model.KindUnclassified,
		Message: fmt.Sprintf("gave up after %d attempts", attempts),
		Err:     err,
	}
}

// WithMaxAttempts returns a copy of p with a different attempt budget.
// Non-positive values leave p unchanged.
func (p RetryPolicy) WithMaxAttempts(n int) RetryPolicy {
	if n > 0 {
		p.MaxAttempts = n
	}
	return p
}
