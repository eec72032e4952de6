package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bft-labs/hostcall/internal/domain"
)

func TestBackoff_Next(t *testing.T) {
	tests := []struct {
		name   string
		spread float64
		want   []time.Duration
	}{
		{"no jitter", 0, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 40 * time.Millisecond, 40 * time.Millisecond}},
		{"upper jitter", 1, []time.Duration{12 * time.Millisecond, 24 * time.Millisecond, 48 * time.Millisecond, 48 * time.Millisecond}},
		{"lower jitter", -1, []time.Duration{8 * time.Millisecond, 16 * time.Millisecond, 32 * time.Millisecond, 32 * time.Millisecond}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBackoff(10*time.Millisecond, 40*time.Millisecond)
			b.spread = func() float64 { return tt.spread }
			for i, w := range tt.want {
				if got := b.next(); got != w {
					t.Errorf("next() #%d = %v, want %v", i, got, w)
				}
			}
		})
	}
}

func TestBackoff_JitterBounds(t *testing.T) {
	b := newBackoff(time.Second, time.Second)
	for i := 0; i < 100; i++ {
		d := b.next()
		if d < 800*time.Millisecond || d > 1200*time.Millisecond {
			t.Fatalf("next() = %v, outside 20%% of 1s", d)
		}
	}
}

func TestBackoff_WaitCanceled(t *testing.T) {
	b := newBackoff(time.Hour, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := b.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait() error = %v, want Canceled", err)
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"connection", &domain.ConnectionError{Address: "h", Err: errors.New("refused")}, true},
		{"invocation", &domain.InvocationError{Procedure: "P"}, true},
		{"wrapped connection", errors.Join(errors.New("ctx"), &domain.ConnectionError{}), true},
		{"binding", &domain.BindingError{Path: "a", Index: -1, Err: domain.ErrUnknownPath}, false},
		{"pool closed", domain.ErrPoolClosed, false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Retryable(tt.err); got != tt.want {
				t.Errorf("Retryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func fastPolicy(attempts int) RetryPolicy {
	return RetryPolicy{Attempts: attempts, Initial: time.Millisecond, Max: 2 * time.Millisecond}
}

func TestRetryWithPolicy(t *testing.T) {
	connErr := &domain.ConnectionError{Address: "h", Err: errors.New("refused")}

	tests := []struct {
		name      string
		attempts  int
		failures  int
		failWith  error
		wantCalls int
		wantErr   bool
	}{
		{name: "first try", attempts: 3, failures: 0, wantCalls: 1},
		{name: "succeeds after retries", attempts: 3, failures: 2, failWith: connErr, wantCalls: 3},
		{name: "exhausted", attempts: 2, failures: 5, failWith: connErr, wantCalls: 2, wantErr: true},
		{name: "not retryable", attempts: 5, failures: 5, failWith: domain.ErrInvalidState, wantCalls: 1, wantErr: true},
		{name: "zero attempts runs once", attempts: 0, failures: 5, failWith: connErr, wantCalls: 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := RetryWithPolicy(context.Background(), fastPolicy(tt.attempts), func(ctx context.Context) error {
				calls++
				if calls <= tt.failures {
					return tt.failWith
				}
				return nil
			})
			if (err != nil) != tt.wantErr {
				t.Errorf("RetryWithPolicy() error = %v, wantErr %v", err, tt.wantErr)
			}
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
		})
	}
}

func TestRetryWithPolicy_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	connErr := &domain.ConnectionError{Address: "h", Err: errors.New("refused")}

	err := RetryWithPolicy(ctx, RetryPolicy{Attempts: 5, Initial: time.Hour, Max: time.Hour}, func(context.Context) error {
		cancel()
		return connErr
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want Canceled", err)
	}
	var ce *domain.ConnectionError
	if !errors.As(err, &ce) {
		t.Errorf("error = %v, want the last ConnectionError kept", err)
	}
}
