package redis

import (
	"errors"
	"testing"
	"time"
)

func TestBreakerStartsClosed(t *testing.T) {
	b := NewBreaker(3, 100*time.Millisecond)
	if b.State() != BreakerClosed {
		t.Errorf("expected closed, got %v", b.State())
	}
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	b := NewBreaker(3, 100*time.Millisecond)
	errFail := errors.New("fail")

	for i := 0; i < 3; i++ {
		if err := b.Do(func() error { return errFail }); err != errFail {
			t.Fatalf("expected errFail, got %v", err)
		}
	}
	if b.State() != BreakerOpen {
		t.Errorf("expected open after 3 failures, got %v", b.State())
	}

	// Rejected without running fn
	ran := false
	err := b.Do(func() error { ran = true; return nil })
	if err != ErrBreakerOpen {
		t.Errorf("expected ErrBreakerOpen, got %v", err)
	}
	if ran {
		t.Error("fn should not run while breaker is open")
	}
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	b := NewBreaker(2, 50*time.Millisecond)
	errFail := errors.New("fail")

	for i := 0; i < 2; i++ {
		b.Do(func() error { return errFail })
	}
	if b.State() != BreakerOpen {
		t.Fatal("expected open")
	}

	time.Sleep(60 * time.Millisecond)

	if err := b.Do(func() error { return nil }); err != nil {
		t.Fatalf("expected probe to pass, got %v", err)
	}
	if b.State() != BreakerClosed {
		t.Errorf("expected closed after successful probe, got %v", b.State())
	}
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b := NewBreaker(2, 50*time.Millisecond)
	errFail := errors.New("fail")

	for i := 0; i < 2; i++ {
		b.Do(func() error { return errFail })
	}
	time.Sleep(60 * time.Millisecond)
	b.Do(func() error { return errFail })

	if b.State() != BreakerOpen {
		t.Errorf("expected open after failed probe, got %v", b.State())
	}
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b := NewBreaker(3, 100*time.Millisecond)
	errFail := errors.New("fail")

	b.Do(func() error { return errFail })
	b.Do(func() error { return errFail })
	b.Do(func() error { return nil }) // resets counter

	b.Do(func() error { return errFail })
	b.Do(func() error { return errFail })

	if b.State() != BreakerClosed {
		t.Errorf("expected closed (counter reset), got %v", b.State())
	}
}

func TestBreakerStateChangeCallback(t *testing.T) {
	var transitions []BreakerState
	b := NewBreaker(1, 50*time.Millisecond)
	b.OnStateChange = func(from, to BreakerState) {
		transitions = append(transitions, to)
	}

	b.Do(func() error { return errors.New("fail") })
	if len(transitions) != 1 || transitions[0] != BreakerOpen {
		t.Fatalf("expected [open], got %v", transitions)
	}

	time.Sleep(60 * time.Millisecond)
	b.Do(func() error { return nil })

	if len(transitions) != 3 || transitions[1] != BreakerHalfOpen || transitions[2] != BreakerClosed {
		t.Errorf("expected [open, half-open, closed], got %v", transitions)
	}
}
