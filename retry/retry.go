// Package retry wraps transport calls with a configurable retry/backoff policy.
// Policies are plain values threaded through call sites; there is no ambient
// global state.
package retry

import (
	"context"
	"time"

	"github.com/availkit/go-node-client/entities"
)

// Policy controls which outcomes are retried and how the backoff grows.
// Precedence is resolved by the caller: an explicit per-call policy overrides
// the client-level policy, which overrides DefaultPolicy.
type Policy struct {
	// RetryOnError retries transport failures. Decoding errors, runtime
	// rejections and unsupported-method errors are never retried regardless.
	RetryOnError bool
	// RetryOnNone additionally retries calls that succeed but return no data.
	RetryOnNone bool
	// MaxAttempts bounds the total number of attempts (first try included).
	MaxAttempts int
	// InitialDelay is the backoff before the first retry; it doubles on every
	// subsequent retry up to MaxDelay.
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultPolicy retries transport errors with an exponential backoff capped at
// 30 seconds, and does not retry empty results.
func DefaultPolicy() Policy {
	return Policy{
		RetryOnError: true,
		RetryOnNone:  false,
		MaxAttempts:  6,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     30 * time.Second,
	}
}

// Disabled performs every call exactly once.
func Disabled() Policy {
	return Policy{MaxAttempts: 1}
}

func (p Policy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

func (p Policy) delay(retryCount int) time.Duration {
	d := p.InitialDelay
	if d <= 0 {
		d = 500 * time.Millisecond
	}
	for i := 0; i < retryCount; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Do invokes op until it succeeds, a non-retryable error occurs, the attempt
// budget is exhausted, or ctx is cancelled. Cancellation during a backoff wait
// returns ctx.Err() immediately with no further side effects.
func Do[T any](ctx context.Context, p Policy, op func(context.Context) (T, error)) (T, error) {
	var result T
	var err error
	for attempt := 0; ; attempt++ {
		result, err = op(ctx)
		if err == nil {
			return result, nil
		}
		if !p.RetryOnError || !entities.IsRetryable(err) {
			return result, err
		}
		if attempt+1 >= p.attempts() {
			return result, err
		}
		if waitErr := sleep(ctx, p.delay(attempt)); waitErr != nil {
			return result, waitErr
		}
	}
}

// DoOptional is Do for calls whose result may legitimately be absent (nil).
// Absence is returned as (nil, nil) unless RetryOnNone is set, in which case
// the call is retried on the same backoff schedule before giving up and
// returning the absence.
func DoOptional[T any](ctx context.Context, p Policy, op func(context.Context) (*T, error)) (*T, error) {
	var result *T
	var err error
	for attempt := 0; ; attempt++ {
		result, err = op(ctx)
		if err == nil && result != nil {
			return result, nil
		}
		if err != nil {
			if !p.RetryOnError || !entities.IsRetryable(err) {
				return nil, err
			}
		} else if !p.RetryOnNone {
			return nil, nil
		}
		if attempt+1 >= p.attempts() {
			return result, err
		}
		if waitErr := sleep(ctx, p.delay(attempt)); waitErr != nil {
			return nil, waitErr
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
