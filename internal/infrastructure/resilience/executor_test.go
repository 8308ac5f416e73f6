package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
)

func TestExecuteRetriesTemporaryFailure(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 1 * time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
		BreakerEnabled:      false,
	})

	attempts := 0
	errTemp := errors.New("temporary")
	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errTemp
		}
		return nil
	}, func(err error) ErrorClassification {
		return ErrorClassification{
			Retryable:     errors.Is(err, errTemp),
			RecordFailure: true,
		}
	})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestExecuteDoesNotRetryPermanentFailure(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 1 * time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
		BreakerEnabled:      false,
	})

	attempts := 0
	errPermanent := errors.New("permanent")
	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		attempts++
		return errPermanent
	}, func(error) ErrorClassification {
		return ErrorClassification{
			Retryable:     false,
			RecordFailure: false,
		}
	})
	if !errors.Is(err, errPermanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestExecuteOpensCircuitAfterFailures(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:        1,
		RetryInitialBackoff:     1 * time.Millisecond,
		RetryMaxBackoff:         1 * time.Millisecond,
		RetryMultiplier:         2,
		BreakerEnabled:          true,
		BreakerMinRequests:      2,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      50 * time.Millisecond,
		BreakerHalfOpenMaxCalls: 1,
	})

	errTemp := errors.New("temporary")
	classifier := func(error) ErrorClassification {
		return ErrorClassification{
			Retryable:     false,
			RecordFailure: true,
		}
	}

	for i := 0; i < 2; i++ {
		err := exec.Execute(context.Background(), "op", func(context.Context) error {
			return errTemp
		}, classifier)
		if !errors.Is(err, errTemp) {
			t.Fatalf("expected temporary error on iteration %d, got %v", i, err)
		}
	}

	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		t.Fatalf("circuit should be open and must not call operation")
		return nil
	}, classifier)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open state error, got %v", err)
	}
}

func TestStateObserverSeesBreakerOpen(t *testing.T) {
	var transitions []string
	exec := NewExecutor(Config{
		RetryMaxAttempts:    1,
		BreakerEnabled:      true,
		BreakerMinRequests:  2,
		BreakerFailureRatio: 0.5,
		BreakerOpenTimeout:  time.Minute,
	}).WithStateObserver(func(operation, from, to string) {
		transitions = append(transitions, operation+":"+from+"->"+to)
	})

	errBoom := errors.New("boom")
	for i := 0; i < 2; i++ {
		_ = exec.Execute(context.Background(), "qdrant.search", func(context.Context) error { return errBoom }, nil)
	}
	if len(transitions) != 1 || transitions[0] != "qdrant:closed->open" {
		t.Fatalf("unexpected transitions %v", transitions)
	}
}

func TestOperationsOfOneDependencyShareBreaker(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:    1,
		BreakerEnabled:      true,
		BreakerMinRequests:  2,
		BreakerFailureRatio: 0.5,
		BreakerOpenTimeout:  time.Minute,
	})

	errBoom := errors.New("boom")
	for i := 0; i < 2; i++ {
		_ = exec.Execute(context.Background(), "ollama.embed", func(context.Context) error { return errBoom }, nil)
	}

	err := exec.Execute(context.Background(), "ollama.generate", func(context.Context) error {
		t.Fatalf("ollama breaker should be open for generate")
		return nil
	}, nil)
	if !IsCircuitOpen(err) {
		t.Fatalf("expected open circuit, got %v", err)
	}

	called := false
	err = exec.Execute(context.Background(), "qdrant.search", func(context.Context) error {
		called = true
		return nil
	}, nil)
	if err != nil || !called {
		t.Fatalf("qdrant breaker must stay closed, err=%v called=%v", err, called)
	}
}

func TestCallerCancellationDoesNotTripBreaker(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:    1,
		BreakerEnabled:      true,
		BreakerMinRequests:  2,
		BreakerFailureRatio: 0.5,
		BreakerOpenTimeout:  time.Minute,
	})

	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		err := exec.Execute(ctx, "ollama.generate", func(context.Context) error {
			cancel()
			return context.Canceled
		}, nil)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected caller cancellation, got %v", err)
		}
		var abandoned abandonedError
		if errors.As(err, &abandoned) {
			t.Fatalf("internal marker leaked to caller: %v", err)
		}
	}

	called := false
	err := exec.Execute(context.Background(), "ollama.generate", func(context.Context) error {
		called = true
		return nil
	}, nil)
	if err != nil || !called {
		t.Fatalf("breaker must stay closed, err=%v called=%v", err, called)
	}
}

func TestRetryStopsWhenBackoffExceedsDeadline(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:    5,
		RetryInitialBackoff: time.Second,
		RetryMaxBackoff:     time.Second,
		BreakerEnabled:      false,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	attempts := 0
	errTemp := errors.New("temporary")
	start := time.Now()
	err := exec.Execute(ctx, "ollama.generate", func(context.Context) error {
		attempts++
		return errTemp
	}, func(error) ErrorClassification {
		return ErrorClassification{Retryable: true, RecordFailure: true}
	})
	if !errors.Is(err, errTemp) {
		t.Fatalf("expected last attempt error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected a single attempt, got %d", attempts)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("retry waited %v past a deadline it could not meet", elapsed)
	}
}

func TestDependencyOf(t *testing.T) {
	cases := map[string]string{
		"ollama.generate": "ollama",
		"nats.publish":    "nats",
		"standalone":      "standalone",
		".odd":            ".odd",
	}
	for op, want := range cases {
		if got := dependencyOf(op); got != want {
			t.Fatalf("dependencyOf(%q) = %q, want %q", op, got, want)
		}
	}
}

func TestConfigNormalizeFillsZeroValues(t *testing.T) {
	got := Config{RetryInitialBackoff: time.Second, RetryMaxBackoff: time.Millisecond, BreakerFailureRatio: 2}.normalize()
	def := DefaultConfig()
	if got.RetryMaxAttempts != def.RetryMaxAttempts || got.BreakerMinRequests != def.BreakerMinRequests {
		t.Fatalf("zero values not defaulted: %+v", got)
	}
	if got.RetryMaxBackoff != time.Second {
		t.Fatalf("max backoff must not be below initial backoff, got %v", got.RetryMaxBackoff)
	}
	if got.BreakerFailureRatio != def.BreakerFailureRatio {
		t.Fatalf("out of range ratio not defaulted, got %v", got.BreakerFailureRatio)
	}
}
