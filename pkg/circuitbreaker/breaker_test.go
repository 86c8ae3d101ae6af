package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errBackend = errors.New("backend down")

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(cfg Config) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	cb := NewCircuitBreaker("test", cfg)
	cb.now = clock.now
	cb.newGeneration(clock.now())
	return cb, clock
}

func fail() error    { return errBackend }
func succeed() error { return nil }

func TestOpensAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()

	cb, _ := newTestBreaker(Config{FailureThreshold: 3, Timeout: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := cb.Execute(ctx, fail); !errors.Is(err, errBackend) {
			t.Fatalf("attempt %d: expected backend error, got %v", i, err)
		}
	}
	if cb.State() != StateOpen {
		t.Fatalf("expected open, got %s", cb.State())
	}

	called := false
	err := cb.Execute(ctx, func() error { called = true; return nil })
	if !errors.Is(err, ErrCircuitOpen) || called {
		t.Fatalf("expected short-circuit, got err=%v called=%v", err, called)
	}
}

func TestHalfOpenRecovers(t *testing.T) {
	t.Parallel()

	cb, clock := newTestBreaker(Config{FailureThreshold: 1, SuccessThreshold: 2, MaxRequests: 2, Timeout: time.Minute})
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	clock.advance(2 * time.Minute)
	if cb.State() != StateHalfOpen {
		t.Fatalf("expected half-open, got %s", cb.State())
	}

	if err := cb.Execute(ctx, succeed); err != nil {
		t.Fatal(err)
	}
	if err := cb.Execute(ctx, succeed); err != nil {
		t.Fatal(err)
	}
	if cb.State() != StateClosed {
		t.Fatalf("expected closed, got %s", cb.State())
	}
}

func TestHalfOpenFailureReopens(t *testing.T) {
	t.Parallel()

	cb, clock := newTestBreaker(Config{FailureThreshold: 1, Timeout: time.Minute})
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	clock.advance(2 * time.Minute)
	_ = cb.Execute(ctx, fail)
	if cb.State() != StateOpen {
		t.Fatalf("expected open, got %s", cb.State())
	}
}

func TestCallerCancellationNotCounted(t *testing.T) {
	t.Parallel()

	cb, _ := newTestBreaker(Config{FailureThreshold: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_ = cb.Execute(ctx, func() error { return context.Canceled })
	_ = cb.Execute(ctx, fail)
	if cb.State() != StateClosed {
		t.Fatalf("cancelled calls must not trip the breaker, got %s", cb.State())
	}
}
