// Package retry provides the backoff policy applied at every external-call
// site (GenAI provider, embedding provider, vector store).
package retry

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// Policy configures exponential backoff with jitter.
type Policy struct {
	MaxAttempts int           // total attempts, including the first
	BaseDelay   time.Duration // delay before the first retry
	MaxDelay    time.Duration // cap on the delay between retries
	Multiplier  float64
	Jitter      float64 // fraction of the delay randomized, e.g. 0.2
}

// DefaultPolicy mirrors the limits we apply to rate-limited providers.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    8 * time.Second,
		Multiplier:  2.0,
		Jitter:      0.2,
	}
}

// Do runs fn until it succeeds, returns a non-retryable error, exhausts
// MaxAttempts, or ctx is cancelled. retryable decides whether a failure is
// worth another attempt; a nil retryable retries everything.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error, retryable func(error) bool) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	delay := p.BaseDelay
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if retryable != nil && !retryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.jittered(delay)):
		}

		delay = time.Duration(float64(delay) * p.Multiplier)
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}

	return fmt.Errorf("after %d attempts: %w", attempts, lastErr)
}

func (p Policy) jittered(d time.Duration) time.Duration {
	if p.Jitter <= 0 || d <= 0 {
		return d
	}
	// Spread the delay across [d*(1-jitter), d*(1+jitter)].
	span := float64(d) * p.Jitter
	offset := (rand.Float64()*2 - 1) * span
	return time.Duration(float64(d) + offset)
}
