package redis

import (
	"errors"
	"sync"
	"time"
)

// ErrBreakerOpen is returned when the breaker rejects a call.
var ErrBreakerOpen = errors.New("redis breaker open")

// BreakerState is the publish breaker state.
type BreakerState int

const (
	BreakerClosed   BreakerState = 0 // publishing normally
	BreakerOpen     BreakerState = 1 // rejecting publishes
	BreakerHalfOpen BreakerState = 2 // probing with a single publish
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Breaker trips after maxFailures consecutive publish errors and rejects
// everything for resetAfter. The first call after the timeout is a probe:
// success closes the breaker, failure reopens it. Publishing is best-effort
// telemetry, so a tripped breaker sheds load off a dead Redis instead of
// stalling the decision loop on timeouts.
type Breaker struct {
	mu          sync.Mutex
	state       BreakerState
	failures    int
	maxFailures int
	resetAfter  time.Duration
	lastFailure time.Time

	OnStateChange func(from, to BreakerState)
}

func NewBreaker(maxFailures int, resetAfter time.Duration) *Breaker {
	return &Breaker{
		maxFailures: maxFailures,
		resetAfter:  resetAfter,
		state:       BreakerClosed,
	}
}

// Do runs fn through the breaker.
func (b *Breaker) Do(fn func() error) error {
	b.mu.Lock()
	if b.state == BreakerOpen {
		if time.Since(b.lastFailure) > b.resetAfter {
			b.transition(BreakerHalfOpen)
		} else {
			b.mu.Unlock()
			return ErrBreakerOpen
		}
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.failures++
		b.lastFailure = time.Now()
		if b.state == BreakerHalfOpen || b.failures >= b.maxFailures {
			b.transition(BreakerOpen)
		}
		return err
	}

	if b.state == BreakerHalfOpen {
		b.transition(BreakerClosed)
	}
	b.failures = 0
	return nil
}

func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) transition(to BreakerState) {
	from := b.state
	b.state = to
	if to == BreakerClosed {
		b.failures = 0
	}
	if b.OnStateChange != nil {
		b.OnStateChange(from, to)
	}
}
