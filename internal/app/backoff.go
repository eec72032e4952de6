package app

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/bft-labs/hostcall/internal/domain"
)

// Default retry delays.
const (
	DefaultBackoffInitial = 500 * time.Millisecond
	DefaultBackoffMax     = 10 * time.Second
)

// jitterRatio is the largest fraction a delay is moved up or down by.
const jitterRatio = 0.2

// backoff yields exponentially growing delays capped at max.
type backoff struct {
	delay time.Duration
	max   time.Duration

	// spread returns a value in [-1, 1).
	spread func() float64
}

func newBackoff(initial, max time.Duration) *backoff {
	return &backoff{
		delay:  initial,
		max:    max,
		spread: func() float64 { return rand.Float64()*2 - 1 },
	}
}

// next returns the jittered current delay and doubles the base for the
// following call.
func (b *backoff) next() time.Duration {
	d := b.delay
	b.delay = min(2*b.delay, b.max)
	return time.Duration(math.Round(float64(d) * (1 + jitterRatio*b.spread())))
}

// Wait sleeps for the next delay, returning early with the context's
// error when ctx is done.
func (b *backoff) Wait(ctx context.Context) error {
	t := time.NewTimer(b.next())
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Retryable reports whether a failed call may succeed when repeated: the
// host could not be reached, or the procedure itself failed.
func Retryable(err error) bool {
	var ce *domain.ConnectionError
	var ie *domain.InvocationError
	return errors.As(err, &ce) || errors.As(err, &ie)
}

// RetryPolicy configures Retry.
type RetryPolicy struct {
	Attempts int
	Initial  time.Duration
	Max      time.Duration
}

// Retry calls fn up to attempts times with the default backoff bounds.
func Retry(ctx context.Context, attempts int, fn func(ctx context.Context) error) error {
	return RetryWithPolicy(ctx, RetryPolicy{
		Attempts: attempts,
		Initial:  DefaultBackoffInitial,
		Max:      DefaultBackoffMax,
	}, fn)
}

// RetryWithPolicy calls fn until it succeeds, returns a non-retryable
// error, or the policy's attempts are used up. The last error is returned.
func RetryWithPolicy(ctx context.Context, p RetryPolicy, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	b := newBackoff(p.Initial, p.Max)
	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			if werr := b.Wait(ctx); werr != nil {
				return errors.Join(err, werr)
			}
		}
		err = fn(ctx)
		if err == nil || !Retryable(err) {
			return err
		}
	}
	return err
}
