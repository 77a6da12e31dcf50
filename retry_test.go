package agenda

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestWithRetry_SucceedsAfterTransientFailures(t *testing.T) {
	var calls atomic.Int32
	got, err := WithRetry(context.Background(), fastRetry, func(ctx context.Context) (string, error) {
		if calls.Add(1) < 3 {
			return "", &SyncError{Operation: "upsert", StatusCode: 503, Err: errors.New("unavailable")}
		}
		return "srv-1", nil
	})
	if err != nil {
		t.Fatalf("WithRetry: %v", err)
	}
	if got != "srv-1" {
		t.Errorf("got %q, want srv-1", got)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestWithRetry_ExhaustedReturnsLastError(t *testing.T) {
	var calls atomic.Int32
	_, err := WithRetry(context.Background(), fastRetry, func(ctx context.Context) (int, error) {
		n := calls.Add(1)
		return 0, &NetworkError{Operation: "list", Err: errors.New("refused " + string(rune('0'+n)))}
	})

	var ne *NetworkError
	if !errors.As(err, &ne) {
		t.Fatalf("err = %v, want *NetworkError", err)
	}
	if ne.Err.Error() != "refused 3" {
		t.Errorf("last error = %v, want the third attempt's", ne.Err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestWithRetry_ClientErrorIsFinal(t *testing.T) {
	for _, status := range []int{400, 401, 403, 404} {
		var calls atomic.Int32
		_, err := WithRetry(context.Background(), fastRetry, func(ctx context.Context) (int, error) {
			calls.Add(1)
			return 0, &ClientError{Operation: "upsert", StatusCode: status, Err: errors.New("no")}
		})
		if err == nil {
			t.Fatalf("status %d: expected error", status)
		}
		if calls.Load() != 1 {
			t.Errorf("status %d: calls = %d, want 1", status, calls.Load())
		}
	}
}

func TestWithRetry_OtherClientErrorsRetry(t *testing.T) {
	var calls atomic.Int32
	_, _ = WithRetry(context.Background(), fastRetry, func(ctx context.Context) (int, error) {
		calls.Add(1)
		return 0, &ClientError{Operation: "upsert", StatusCode: 429, Err: errors.New("slow down")}
	})
	if calls.Load() != 3 {
		t.Errorf("429 calls = %d, want 3", calls.Load())
	}
}

func TestWithRetry_AttemptTimeout(t *testing.T) {
	policy := fastRetry
	policy.Attempts = 2
	policy.Timeout = 20 * time.Millisecond
	policy.Operation = "list_notes"

	var calls atomic.Int32
	_, err := WithRetry(context.Background(), policy, func(ctx context.Context) (int, error) {
		calls.Add(1)
		<-ctx.Done()
		return 0, ctx.Err()
	})

	var te *TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("err = %v, want *TimeoutError", err)
	}
	if te.Operation != "list_notes" || te.After != 20*time.Millisecond {
		t.Errorf("TimeoutError = %+v", te)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		t.Error("timeout should not wrap the context error")
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestWithRetry_ParentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	_, err := WithRetry(ctx, fastRetry, func(ctx context.Context) (int, error) {
		calls.Add(1)
		return 0, ctx.Err()
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if calls.Load() > 1 {
		t.Errorf("calls = %d, want at most 1", calls.Load())
	}
}

func TestRetryPolicy_Delay(t *testing.T) {
	p := RetryPolicy{BaseDelay: time.Second, MaxDelay: 30 * time.Second}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{10, 30 * time.Second},
	}
	for _, tt := range tests {
		if got := p.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %s, want %s", tt.attempt, got, tt.want)
		}
	}
}

func TestRetryPolicy_BackoffJitterBounds(t *testing.T) {
	p := RetryPolicy{Attempts: 5, BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second, Jitter: 0.3}
	b := p.backoff()

	for i := range 4 {
		d, stop := b.Next()
		if stop {
			t.Fatalf("backoff stopped early at %d", i)
		}
		base := p.Delay(i)
		if d < base || d > base+time.Duration(0.3*float64(base)) {
			t.Errorf("delay %d = %s, want within [%s, %s]", i, d, base, base+time.Duration(0.3*float64(base)))
		}
	}
	if _, stop := b.Next(); !stop {
		t.Error("backoff should stop after Attempts-1 retries")
	}
}

func TestRetryPolicy_Defaults(t *testing.T) {
	p := RetryPolicy{}.withDefaults()
	d := DefaultRetryPolicy()
	if p.Attempts != d.Attempts || p.Timeout != d.Timeout || p.BaseDelay != d.BaseDelay || p.MaxDelay != d.MaxDelay {
		t.Errorf("withDefaults() = %+v, want %+v", p, d)
	}
	if d.Attempts != 3 || d.Timeout != 10*time.Second || d.Jitter != 0.30 {
		t.Errorf("DefaultRetryPolicy() = %+v", d)
	}
}
