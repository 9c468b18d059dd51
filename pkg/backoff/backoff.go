// Package backoff provides fixed-schedule retry with context cancellation.
package backoff

import (
	"context"
	"fmt"
	"time"
)

// Strategy is a schedule of delays between attempts. An attempt is made for
// each delay slot; the delay is waited after a failure.
type Strategy struct {
	Delays []time.Duration
}

var (
	// Quick suits interactive paths where a stalled call should surface fast.
	Quick = Strategy{
		Delays: []time.Duration{
			1 * time.Second,
			2 * time.Second,
			4 * time.Second,
		},
	}

	// Standard suits background LLM traffic that tolerates longer waits.
	Standard = Strategy{
		Delays: []time.Duration{
			500 * time.Millisecond,
			1 * time.Second,
			2 * time.Second,
			4 * time.Second,
			8 * time.Second,
		},
	}
)

// RetryFunc is the operation to retry. attempt is 1-based.
type RetryFunc func(ctx context.Context, attempt int) error

// Retry runs fn until it succeeds, the schedule is exhausted, or the context
// is cancelled. The last error is wrapped in the final failure.
func Retry(ctx context.Context, strategy Strategy, fn RetryFunc) error {
	var lastErr error

	for i := 0; i < len(strategy.Delays); i++ {
		if err := fn(ctx, i+1); err != nil {
			lastErr = err

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(strategy.Delays[i]):
			}
			continue
		}
		return nil
	}

	return fmt.Errorf("failed after %d attempts: %w", len(strategy.Delays), lastErr)
}

// RetryWithCallback is Retry with a hook invoked before each wait, for logging.
func RetryWithCallback(ctx context.Context, strategy Strategy, fn RetryFunc, onRetry func(attempt int, err error, delay time.Duration)) error {
	var lastErr error

	for i := 0; i < len(strategy.Delays); i++ {
		if err := fn(ctx, i+1); err != nil {
			lastErr = err

			if onRetry != nil {
				onRetry(i+1, err, strategy.Delays[i])
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(strategy.Delays[i]):
			}
			continue
		}
		return nil
	}

	return fmt.Errorf("failed after %d attempts: %w", len(strategy.Delays), lastErr)
}
