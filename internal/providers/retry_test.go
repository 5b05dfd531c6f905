package providers

import (
	"context"
	"errors"
	"testing"
	"time"
)

type recordedSleeps struct {
	delays []time.Duration
}

func (r *recordedSleeps) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

func TestRetry_SucceedsOnThirdAttempt(t *testing.T) {
	var rec recordedSleeps
	calls := 0
	got, err := Retry(context.Background(), DefaultPolicy(), rec.sleep, func(attempt int) (string, error) {
		calls++
		if attempt < 3 {
			return "", Retryable(errors.New("connection reset"))
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("Retry error: %v", err)
	}
	if got != "ok" {
		t.Errorf("got %q, want ok", got)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if len(rec.delays) != 2 {
		t.Fatalf("delays = %v, want exactly 2", rec.delays)
	}
	if rec.delays[1] < 2*rec.delays[0] {
		t.Errorf("second delay %v should be at least twice the first %v", rec.delays[1], rec.delays[0])
	}
	if rec.delays[0] != time.Second {
		t.Errorf("first delay = %v, want 1s", rec.delays[0])
	}
}

func TestRetry_Exhausted(t *testing.T) {
	var rec recordedSleeps
	transport := errors.New("dial tcp: connection refused")
	calls := 0
	_, err := Retry(context.Background(), DefaultPolicy(), rec.sleep, func(int) (int, error) {
		calls++
		return 0, Retryable(transport)
	})
	var ex *ExhaustedError
	if !errors.As(err, &ex) {
		t.Fatalf("expected ExhaustedError, got %v", err)
	}
	if ex.Attempts != 5 || calls != 5 {
		t.Errorf("attempts = %d, calls = %d, want 5/5", ex.Attempts, calls)
	}
	if !errors.Is(err, transport) {
		t.Error("ExhaustedError should wrap the last transport error")
	}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}
	if len(rec.delays) != len(want) {
		t.Fatalf("delays = %v, want %v", rec.delays, want)
	}
	for i := range want {
		if rec.delays[i] != want[i] {
			t.Errorf("delay[%d] = %v, want %v", i, rec.delays[i], want[i])
		}
	}
}

func TestRetry_NonRetryableReturnsImmediately(t *testing.T) {
	var rec recordedSleeps
	logical := &LLMError{Kind: KindQuotaExceeded, Message: "quota"}
	calls := 0
	_, err := Retry(context.Background(), DefaultPolicy(), rec.sleep, func(int) (int, error) {
		calls++
		return 0, logical
	})
	if err != logical {
		t.Fatalf("err = %v, want the original error", err)
	}
	if calls != 1 || len(rec.delays) != 0 {
		t.Errorf("calls = %d, delays = %v; want 1 call and no delays", calls, rec.delays)
	}
}

func TestRetry_SleepAborted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Retry(ctx, Policy{MaxAttempts: 3, BaseDelay: time.Hour}, Sleep, func(int) (int, error) {
		return 0, Retryable(errors.New("timeout"))
	})
	var ex *ExhaustedError
	if !errors.As(err, &ex) {
		t.Fatalf("expected ExhaustedError, got %v", err)
	}
	if ex.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", ex.Attempts)
	}
	if !errors.Is(err, context.Canceled) {
		t.Error("error should carry context.Canceled")
	}
}

func TestPolicy_Delay(t *testing.T) {
	p := Policy{MaxAttempts: 5, BaseDelay: 100 * time.Millisecond}
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := p.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestRetryable_Nil(t *testing.T) {
	if Retryable(nil) != nil {
		t.Error("Retryable(nil) should be nil")
	}
}
