package agenda

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
)

// RetryPolicy bounds the attempts made by WithRetry.
type RetryPolicy struct {
	// Operation names the call in timeout errors.
	Operation string

	// Attempts is the total number of calls, including the first. Defaults to 3.
	Attempts int

	// Timeout bounds each attempt. Defaults to 10 seconds.
	Timeout time.Duration

	// BaseDelay is the wait after the first failed attempt; it doubles per attempt.
	// Defaults to 1 second.
	BaseDelay time.Duration

	// MaxDelay caps the exponential delay before jitter. Defaults to 30 seconds.
	MaxDelay time.Duration

	// Jitter adds up to Jitter*delay of random wait. Defaults to 0.30.
	Jitter float64
}

// DefaultRetryPolicy returns the policy used for remote sync calls.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:  3,
		Timeout:   10 * time.Second,
		BaseDelay: time.Second,
		MaxDelay:  30 * time.Second,
		Jitter:    0.30,
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	d := DefaultRetryPolicy()
	if p.Attempts <= 0 {
		p.Attempts = d.Attempts
	}
	if p.Timeout <= 0 {
		p.Timeout = d.Timeout
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = d.BaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = d.MaxDelay
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	return p
}

// Delay returns the wait before the attempt following attemptIndex (0-based),
// without jitter.
func (p RetryPolicy) Delay(attemptIndex int) time.Duration {
	d := p.BaseDelay
	for i := 0; i < attemptIndex; i++ {
		d *= 2
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// backoff yields min(2^i*base, max) plus uniform jitter in [0, Jitter*delay].
func (p RetryPolicy) backoff() retry.Backoff {
	var (
		mu      sync.Mutex
		attempt int
	)
	next := retry.BackoffFunc(func() (time.Duration, bool) {
		mu.Lock()
		i := attempt
		attempt++
		mu.Unlock()

		d := p.Delay(i)
		if p.Jitter > 0 {
			d += time.Duration(rand.Float64() * p.Jitter * float64(d))
		}
		return d, false
	})
	return retry.WithMaxRetries(uint64(p.Attempts-1), next)
}

// WithRetry calls op until it succeeds, fails with a non-retryable error, or
// the policy's attempts are exhausted. Each attempt runs under its own timeout;
// an attempt that overruns fails with *TimeoutError. On exhaustion the last
// error is returned.
func WithRetry[T any](ctx context.Context, policy RetryPolicy, op func(ctx context.Context) (T, error)) (T, error) {
	policy = policy.withDefaults()

	var result T
	err := retry.Do(ctx, policy.backoff(), func(ctx context.Context) error {
		v, err := runAttempt(ctx, policy, op)
		if err != nil {
			if IsRetryable(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		result = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

type attemptOutcome[T any] struct {
	value T
	err   error
}

func runAttempt[T any](ctx context.Context, policy RetryPolicy, op func(ctx context.Context) (T, error)) (T, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, policy.Timeout)
	defer cancel()

	done := make(chan attemptOutcome[T], 1)
	go func() {
		v, err := op(attemptCtx)
		done <- attemptOutcome[T]{value: v, err: err}
	}()

	timedOut := func() (T, error) {
		var zero T
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		return zero, &TimeoutError{Operation: policy.Operation, After: policy.Timeout}
	}

	select {
	case out := <-done:
		if out.err != nil && errors.Is(out.err, context.DeadlineExceeded) && attemptCtx.Err() != nil {
			return timedOut()
		}
		return out.value, out.err
	case <-attemptCtx.Done():
		return timedOut()
	}
}
