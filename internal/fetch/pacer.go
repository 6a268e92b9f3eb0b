package fetch

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Pacer enforces a minimum interval between requests. After every `every`
// requests the interval grows by `increment`, capped at `ceiling`.
type Pacer struct {
	mu        sync.Mutex
	limiter   *rate.Limiter
	delay     time.Duration
	increment time.Duration
	ceiling   time.Duration
	every     int
	requests  int
}

// NewPacer creates a Pacer starting at minDelay. A non-positive every
// disables the additive backoff.
func NewPacer(minDelay, increment, ceiling time.Duration, every int) *Pacer {
	if ceiling < minDelay {
		ceiling = minDelay
	}
	return &Pacer{
		limiter:   rate.NewLimiter(limitFor(minDelay), 1),
		delay:     minDelay,
		increment: increment,
		ceiling:   ceiling,
		every:     every,
	}
}

func limitFor(d time.Duration) rate.Limit {
	if d <= 0 {
		return rate.Inf
	}
	return rate.Every(d)
}

// Wait blocks until the next request may be issued. It returns ctx.Err() if
// the context ends first.
func (p *Pacer) Wait(ctx context.Context) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests++
	if p.every > 0 && p.increment > 0 && p.requests%p.every == 0 && p.delay < p.ceiling {
		p.delay += p.increment
		if p.delay > p.ceiling {
			p.delay = p.ceiling
		}
		p.limiter.SetLimit(limitFor(p.delay))
		zap.L().Debug("fetch: pacing delay increased",
			zap.Int("requests", p.requests),
			zap.Duration("delay", p.delay),
		)
	}
	return nil
}

// Delay returns the current minimum interval.
func (p *Pacer) Delay() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.delay
}

// Requests returns how many requests the pacer has admitted.
func (p *Pacer) Requests() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requests
}
