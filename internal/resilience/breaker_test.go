package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errTest = errors.New("gateway unavailable")

func fail(context.Context) error { return errTest }
func ok(context.Context) error   { return nil }

func newTestBreaker(maxFailures int) (*Breaker, *time.Time) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewBreaker("sms", maxFailures, time.Second)
	b.now = func() time.Time { return now }
	return b, &now
}

func TestClosedStateAllowsCalls(t *testing.T) {
	b, _ := newTestBreaker(3)
	called := false
	err := b.Execute(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !called {
		t.Fatal("expected fn to be called")
	}
}

func TestOpensAfterMaxFailures(t *testing.T) {
	b, _ := newTestBreaker(3)
	ctx := context.Background()

	for range 3 {
		_ = b.Execute(ctx, fail)
	}

	if err := b.Execute(ctx, ok); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if b.State() != StateOpen {
		t.Fatalf("expected open, got %s", b.State())
	}
}

func TestHalfOpenTrialClosesOnSuccess(t *testing.T) {
	b, now := newTestBreaker(2)
	ctx := context.Background()

	for range 2 {
		_ = b.Execute(ctx, fail)
	}
	if err := b.Execute(ctx, ok); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}

	*now = now.Add(2 * time.Second)

	if err := b.Execute(ctx, ok); err != nil {
		t.Fatalf("expected trial call to pass, got %v", err)
	}
	if b.State() != StateClosed {
		t.Fatalf("expected closed after successful trial call, got %s", b.State())
	}
}

func TestHalfOpenFailureReopens(t *testing.T) {
	b, now := newTestBreaker(2)
	ctx := context.Background()

	for range 2 {
		_ = b.Execute(ctx, fail)
	}
	*now = now.Add(2 * time.Second)

	_ = b.Execute(ctx, fail)
	if b.State() != StateOpen {
		t.Fatalf("expected open after failed trial call, got %s", b.State())
	}
	if err := b.Execute(ctx, ok); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen after reopen, got %v", err)
	}
}

func TestHalfOpenAllowsSingleTrial(t *testing.T) {
	b, now := newTestBreaker(1)
	ctx := context.Background()
	_ = b.Execute(ctx, fail)
	*now = now.Add(2 * time.Second)

	release := make(chan struct{})
	done := make(chan error, 1)
	started := make(chan struct{})
	go func() {
		done <- b.Execute(ctx, func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	if err := b.Execute(ctx, ok); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("second call during trial call should be rejected, got %v", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("trial call failed: %v", err)
	}
}

func TestSuccessResetsFailureCount(t *testing.T) {
	b, _ := newTestBreaker(3)
	ctx := context.Background()

	_ = b.Execute(ctx, fail)
	_ = b.Execute(ctx, fail)
	_ = b.Execute(ctx, ok)
	_ = b.Execute(ctx, fail)
	_ = b.Execute(ctx, fail)

	if b.State() != StateClosed {
		t.Fatalf("expected closed, got %s", b.State())
	}
}

func TestCancelledContextDoesNotTrip(t *testing.T) {
	b, _ := newTestBreaker(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := b.Execute(ctx, func(ctx context.Context) error { return ctx.Err() })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if b.State() != StateClosed {
		t.Fatalf("caller cancellation must not open the circuit, got %s", b.State())
	}
}
