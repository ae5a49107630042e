package db

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"time"
)

func ExponentialBackoff(attempt int) time.Duration {
	base := 1 * time.Second

	capDelay := 1 * time.Minute
	// attempt=0 => 1s
	// attempt=1 => 2s
	// attempt=2 => 4s

	multiple := math.Pow(2, float64(attempt))
	delay := time.Duration(float64(base) * multiple)

	if delay > capDelay {
		delay = capDelay
	}

	// small jitter (0–250ms)
	delay += time.Duration(rand.Intn(250)) * time.Millisecond
	return delay
}

// RetryUntilReady runs fn until it succeeds or ctx ends, sleeping
// ExponentialBackoff between attempts. Used for boot-time schema work that
// must not block serving while the store is down.
func RetryUntilReady(ctx context.Context, log *slog.Logger, what string, fn func(context.Context) error) error {
	for attempt := 0; ; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err := fn(attemptCtx)
		cancel()

		if err == nil {
			if attempt > 0 {
				log.Info("store task succeeded after retry", "task", what, "attempts", attempt+1)
			}
			return nil
		}

		delay := ExponentialBackoff(attempt)
		log.Warn("store task failed, will retry", "task", what, "attempt", attempt+1, "retry_in", delay.String(), "err", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}
