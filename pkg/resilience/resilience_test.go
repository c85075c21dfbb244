// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	ferrors "github.com/jllopis/flowgate/pkg/errors"
)

func fastRetry() RetryConfig {
	return DefaultRetryConfig().WithInitialDelay(time.Millisecond).WithMaxDelay(5 * time.Millisecond)
}

func TestRetrySuccess(t *testing.T) {
	var seen []int
	err := fastRetry().Do(context.Background(), func(_ context.Context, attempt int) error {
		seen = append(seen, attempt)
		if attempt < 3 {
			return errors.New("transient error")
		}
		return nil
	})

	if err != nil {
		t.Errorf("expected success, got error: %v", err)
	}
	if len(seen) != 3 || seen[0] != 1 || seen[2] != 3 {
		t.Errorf("unexpected attempts %v", seen)
	}
}

func TestRetryMaxAttemptsExceeded(t *testing.T) {
	attempts := 0
	var retried []int
	config := fastRetry().WithMaxAttempts(2).WithOnRetry(func(attempt int, err error) {
		retried = append(retried, attempt)
	})
	err := config.Do(context.Background(), func(context.Context, int) error {
		attempts++
		return errors.New("always fails")
	})

	if err == nil || err.Error() != "always fails" {
		t.Errorf("expected last error, got %v", err)
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}
	if len(retried) != 1 || retried[0] != 1 {
		t.Errorf("expected one retry callback for attempt 1, got %v", retried)
	}
}

func TestRetryNonRecoverable(t *testing.T) {
	attempts := 0
	err := fastRetry().Do(context.Background(), func(context.Context, int) error {
		attempts++
		return ferrors.New(ferrors.CodeDeliveryFailed, "400 bad request", nil).WithRecoverable(false)
	})

	if !ferrors.IsCode(err, ferrors.CodeDeliveryFailed) {
		t.Errorf("expected delivery error, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

func TestRetryRecoverableFlag(t *testing.T) {
	attempts := 0
	err := fastRetry().Do(context.Background(), func(context.Context, int) error {
		attempts++
		if attempts < 2 {
			return ferrors.New(ferrors.CodeTimeout, "timed out", nil).WithRecoverable(true)
		}
		return nil
	})

	if err != nil {
		t.Errorf("expected retry to succeed, got %v", err)
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}
}

func TestRetryContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	config := DefaultRetryConfig().WithInitialDelay(time.Second)

	attempts := 0
	err := config.Do(ctx, func(context.Context, int) error {
		attempts++
		cancel()
		return errors.New("transient error")
	})

	if !ferrors.IsCode(err, ferrors.CodeContextLost) {
		t.Errorf("expected context lost, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

func TestCalculateBackoffCapped(t *testing.T) {
	rc := RetryConfig{InitialDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond, Multiplier: 2}
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 300 * time.Millisecond, 300 * time.Millisecond}
	for i, w := range want {
		if got := calculateBackoff(i+1, rc); got != w {
			t.Errorf("retry %d: expected %v, got %v", i+1, w, got)
		}
	}
}

func TestWithTimeout(t *testing.T) {
	err := WithTimeout(context.Background(), 20*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !ferrors.IsCode(err, ferrors.CodeTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if !ferrors.As(err).Recoverable {
		t.Error("timeouts should be recoverable")
	}

	err = WithTimeout(context.Background(), time.Second, func(context.Context) error { return nil })
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}

	called := false
	err = WithTimeout(context.Background(), 0, func(ctx context.Context) error {
		called = true
		if _, ok := ctx.Deadline(); ok {
			t.Error("zero duration must not set a deadline")
		}
		return nil
	})
	if err != nil || !called {
		t.Fatalf("expected direct call, got %v", err)
	}
}

func TestWithTimeoutParentCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := WithTimeout(ctx, time.Second, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !ferrors.IsCode(err, ferrors.CodeContextLost) {
		t.Fatalf("expected context lost, got %v", err)
	}
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func newTestBreaker(clock *fakeClock, failures, successes int) *CircuitBreaker {
	return NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: failures,
		SuccessThreshold: successes,
		Cooldown:         time.Minute,
		Name:             "test",
		now:              clock.Now,
	})
}

func fail(context.Context) error { return errors.New("failure") }
func ok(context.Context) error   { return nil }

func TestCircuitBreakerClosed(t *testing.T) {
	cb := newTestBreaker(&fakeClock{now: time.Unix(0, 0)}, 3, 1)
	if cb.State() != StateClosed {
		t.Errorf("expected initial state Closed")
	}
	for i := 0; i < 5; i++ {
		_ = cb.Call(context.Background(), fail)
		_ = cb.Call(context.Background(), ok)
	}
	if cb.State() != StateClosed {
		t.Errorf("interleaved successes must keep the circuit closed")
	}
}

func TestCircuitBreakerOpen(t *testing.T) {
	cb := newTestBreaker(&fakeClock{now: time.Unix(0, 0)}, 2, 1)
	for i := 0; i < 2; i++ {
		_ = cb.Call(context.Background(), fail)
	}
	if cb.State() != StateOpen {
		t.Fatalf("expected state Open after 2 failures")
	}

	err := cb.Call(context.Background(), func(context.Context) error {
		t.Fatal("should not execute in open state")
		return nil
	})
	if !ferrors.IsCode(err, ferrors.CodeDeliveryFailed) {
		t.Fatalf("expected delivery failure, got %v", err)
	}
	if fe := ferrors.As(err); fe.Recoverable || fe.Attributes["breaker"] != "test" {
		t.Errorf("unexpected breaker error %+v", fe)
	}
}

func TestCircuitBreakerHalfOpen(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	cb := newTestBreaker(clock, 1, 2)

	_ = cb.Call(context.Background(), fail)
	if cb.State() != StateOpen {
		t.Fatalf("expected circuit to be open")
	}

	clock.now = clock.now.Add(2 * time.Minute)
	_ = cb.Call(context.Background(), ok)
	if cb.State() != StateHalfOpen {
		t.Errorf("expected state HalfOpen after one trial success")
	}
	_ = cb.Call(context.Background(), ok)
	if cb.State() != StateClosed {
		t.Errorf("expected state Closed after successes in half-open")
	}
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	cb := newTestBreaker(clock, 1, 1)
	_ = cb.Call(context.Background(), fail)

	clock.now = clock.now.Add(2 * time.Minute)
	_ = cb.Call(context.Background(), fail)
	if cb.State() != StateOpen {
		t.Fatalf("failed trial must reopen the circuit")
	}
}

func TestCircuitBreakerReset(t *testing.T) {
	cb := newTestBreaker(&fakeClock{now: time.Unix(0, 0)}, 1, 1)
	_ = cb.Call(context.Background(), fail)
	cb.Reset()
	if cb.State() != StateClosed {
		t.Errorf("expected state Closed after reset")
	}
	if err := cb.Call(context.Background(), ok); err != nil {
		t.Errorf("call failed after reset: %v", err)
	}
}
