package retry

import (
	"context"
	"math/rand"
	"time"

	"reelsweep/pkg/logger"
)

// Policy describes how an operation is retried. The zero value is not
// usable; construct with NewPolicy or fill every field.
type Policy struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int

	// BaseDelay seeds the exponential backoff schedule.
	BaseDelay time.Duration

	// MaxDelay caps a single backoff sleep. Zero means uncapped.
	MaxDelay time.Duration

	// Jitter adds up to this much random delay per sleep.
	Jitter time.Duration

	// RetryIf classifies errors. Nil retries every error.
	RetryIf func(error) bool

	// OnRetry is invoked before each sleep with the 1-based attempt
	// number and the error that triggered the retry.
	OnRetry func(attempt int, err error)

	// Logger, when set, records retry attempts at warn level.
	Logger logger.Logger

	// sleep is replaceable in tests.
	sleep func(context.Context, time.Duration) error
}

// NewPolicy returns a Policy with exponential backoff and jitter.
func NewPolicy(maxAttempts int, baseDelay time.Duration) *Policy {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return &Policy{
		MaxAttempts: maxAttempts,
		BaseDelay:   baseDelay,
		MaxDelay:    2 * time.Minute,
		Jitter:      time.Second,
		sleep:       sleepCtx,
	}
}

// Do runs fn until it succeeds, the classifier rejects the error, the
// attempts are exhausted, or ctx is done. It returns the last error.
func (p *Policy) Do(ctx context.Context, fn func() error) error {
	var lastErr error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if p.RetryIf != nil && !p.RetryIf(lastErr) {
			return lastErr
		}
		if attempt == p.MaxAttempts {
			break
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt, lastErr)
		}
		delay := p.backoff(attempt)
		if p.Logger != nil {
			p.Logger.WarnWithFields("retrying after error", map[string]interface{}{
				"attempt": attempt,
				"delay":   delay.String(),
				"error":   lastErr.Error(),
			})
		}
		if err := p.sleeper()(ctx, delay); err != nil {
			return err
		}
	}
	return lastErr
}

// DoWithResult is Do for operations that produce a value.
func DoWithResult[T any](ctx context.Context, p *Policy, fn func() (T, error)) (T, error) {
	var result T
	err := p.Do(ctx, func() error {
		var err error
		result, err = fn()
		return err
	})
	return result, err
}

// backoff computes the sleep before the next attempt: base * 2^(n-1)
// plus jitter, capped at MaxDelay.
func (p *Policy) backoff(attempt int) time.Duration {
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			delay = p.MaxDelay
			break
		}
	}
	if p.Jitter > 0 {
		delay += time.Duration(rand.Int63n(int64(p.Jitter)))
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

func (p *Policy) sleeper() func(context.Context, time.Duration) error {
	if p.sleep != nil {
		return p.sleep
	}
	return sleepCtx
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
