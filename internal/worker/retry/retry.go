package retry

import (
	"context"
	"math"
	"time"

	"github.com/dmitrijs2005/absnotary/internal/logging"
)

// Config controls one retry loop. Submission and confirmation monitoring use
// independently configured instances.
type Config struct {
	// MaxRetries is the number of re-attempts after the first call, so the
	// operation runs at most MaxRetries+1 times.
	MaxRetries int
	// InitialDelay is the sleep before the first retry.
	InitialDelay time.Duration
	// Multiplier scales the delay after every failed attempt.
	Multiplier float64
}

// Do invokes fn until it succeeds, the error is classified non-retryable, or
// MaxRetries is exhausted. The sleep between attempts is
// InitialDelay * Multiplier^attempt and is cancellable through ctx.
//
// The last error is returned verbatim so callers can match it with
// errors.Is/errors.As.
func Do[T any](ctx context.Context, cfg Config, log logging.Logger, name string, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	for attempt := 0; ; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			if attempt > 0 {
				log.Info(ctx, "operation succeeded after retry", "operation", name, "attempt", attempt+1)
			}
			return result, nil
		}

		if attempt == cfg.MaxRetries {
			log.Error(ctx, "all retry attempts exhausted", "operation", name, "attempts", attempt+1, "error", err.Error())
			return zero, err
		}

		if !IsRetryable(err) {
			log.Error(ctx, "non-retryable error, not retrying", "operation", name, "error", err.Error())
			return zero, err
		}

		delay := time.Duration(float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt)))
		log.Warn(ctx, "operation failed, retrying",
			"operation", name,
			"attempt", attempt+1,
			"max_attempts", cfg.MaxRetries+1,
			"next_delay", delay.String(),
			"error", err.Error(),
		)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}
