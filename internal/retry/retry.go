// Package retry wraps fallible provider operations with bounded exponential
// backoff and jitter. The policy is stateless: one value is shared across all
// call sites, with error classification supplied by the services package (or
// overridden per policy).
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"tracksmith/internal/config"
	"tracksmith/internal/logging"
	"tracksmith/internal/services"
)

// Policy controls how an operation is retried.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration

	// Retriable decides whether a failure deserves another attempt.
	// Nil means services.IsRetriable.
	Retriable func(error) bool

	// Sleep is injectable for tests. Nil means a context-aware sleep.
	Sleep func(context.Context, time.Duration) error

	// Jitter returns a value in [0, 1). Nil means math/rand.
	Jitter func() float64
}

// FromConfig builds the shared policy from configuration.
func FromConfig(cfg config.Retry) Policy {
	return Policy{
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   time.Duration(cfg.BaseDelaySeconds * float64(time.Second)),
		MaxDelay:    time.Duration(cfg.MaxDelaySeconds * float64(time.Second)),
	}
}

// Do executes fn, retrying retriable failures until MaxAttempts is reached.
// Fatal failures are returned immediately. On exhaustion the last error is
// returned annotated with the total attempts made.
func (p Policy) Do(ctx context.Context, logger *slog.Logger, op string, fn func(context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	retriable := p.Retriable
	if retriable == nil {
		retriable = services.IsRetriable
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !retriable(err) {
			return err
		}
		if attempt == attempts {
			break
		}

		delay := p.delay(attempt)
		logger.Warn("retrying after transient failure",
			logging.String(logging.FieldEventType, "retry_attempt"),
			logging.String("operation", op),
			logging.Int(logging.FieldAttempt, attempt),
			logging.Int("max_attempts", attempts),
			logging.Duration(logging.FieldDelay, delay),
			logging.Error(err),
		)
		if err := p.sleep(ctx, delay); err != nil {
			return err
		}
	}

	return fmt.Errorf("%s: failed after %d attempts: %w", op, attempts, lastErr)
}

func (p Policy) delay(attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = time.Second
	}
	delay := base << (attempt - 1)
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	jitter := p.Jitter
	if jitter == nil {
		jitter = rand.Float64
	}
	return delay + time.Duration(jitter()*float64(base))
}

func (p Policy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
