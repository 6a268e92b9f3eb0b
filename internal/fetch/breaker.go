package fetch

import (
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// BreakerState is the state of the consecutive-failure breaker.
type BreakerState int

const (
	// BreakerClosed lets requests through.
	BreakerClosed BreakerState = iota
	// BreakerOpen holds requests until the cooldown elapses.
	BreakerOpen
	// BreakerHalfOpen lets one probe through after the cooldown.
	BreakerHalfOpen
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

// ErrBreakerOpen is returned when the breaker rejects a request.
var ErrBreakerOpen = eris.New("fetch: too many consecutive failures")

// Breaker opens after threshold consecutive tripping failures and stays
// open for cooldown. A failed probe in half-open reopens it.
type Breaker struct {
	mu        sync.Mutex
	threshold int
	cooldown  time.Duration
	state     BreakerState

	consecutive int
	openedAt    time.Time

	onStateChange func(from, to BreakerState)
	nowFunc       func() time.Time
}

// NewBreaker creates a Breaker. A non-positive threshold disables it.
func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	return &Breaker{
		threshold: threshold,
		cooldown:  cooldown,
		nowFunc:   time.Now,
	}
}

// OnStateChange registers a transition callback.
func (b *Breaker) OnStateChange(fn func(from, to BreakerState)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onStateChange = fn
}

// Allow reports whether a request may go out now. When it may not, the
// returned duration is how long until the cooldown ends.
func (b *Breaker) Allow() (bool, time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != BreakerOpen {
		return true, 0
	}
	elapsed := b.nowFunc().Sub(b.openedAt)
	if elapsed >= b.cooldown {
		b.transition(BreakerHalfOpen)
		return true, 0
	}
	return false, b.cooldown - elapsed
}

// Record feeds one request outcome into the breaker.
func (b *Breaker) Record(tripped bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.threshold <= 0 {
		return
	}
	if !tripped {
		b.consecutive = 0
		if b.state != BreakerClosed {
			b.transition(BreakerClosed)
		}
		return
	}

	b.consecutive++
	switch b.state {
	case BreakerClosed:
		if b.consecutive >= b.threshold {
			b.openedAt = b.nowFunc()
			b.transition(BreakerOpen)
		}
	case BreakerHalfOpen:
		b.openedAt = b.nowFunc()
		b.transition(BreakerOpen)
	}
}

// State returns the current state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Consecutive returns the current run of tripping failures.
func (b *Breaker) Consecutive() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.consecutive
}

func (b *Breaker) transition(to BreakerState) {
	from := b.state
	b.state = to
	if b.onStateChange != nil && from != to {
		b.onStateChange(from, to)
	}
}
