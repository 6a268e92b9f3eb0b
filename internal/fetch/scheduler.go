package fetch

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/roster-cli/internal/model"
)

// Config controls a Scheduler.
type Config struct {
	MinDelay       time.Duration
	DelayIncrement time.Duration
	MaxDelay       time.Duration
	BackoffEvery   int
	UserAgents     []string
	Retry          RetryPolicy
	// MaxConsecutiveErrors opens the breaker; zero disables it.
	MaxConsecutiveErrors int
	ErrorCooldown        time.Duration
	// RejectWhenOpen fails requests while the breaker is open instead of
	// waiting out the cooldown.
	RejectWhenOpen bool
}

// DefaultConfig mirrors the crawler's polite defaults.
func DefaultConfig() Config {
	return Config{
		MinDelay:             time.Second,
		DelayIncrement:       100 * time.Millisecond,
		MaxDelay:             2 * time.Second,
		BackoffEvery:         50,
		Retry:                RetryPolicy{MaxAttempts: 1, InitialBackoff: 5 * time.Second},
		MaxConsecutiveErrors: 10,
		ErrorCooldown:        time.Minute,
	}
}

// Scheduler issues one request at a time through a Strategy. Its pacing
// and breaker state belong to the instance.
type Scheduler struct {
	strategy Strategy
	pacer    *Pacer
	headers  *HeaderRotator
	breaker  *Breaker
	retry    RetryPolicy
	reject   bool
	sleep    func(ctx context.Context, d time.Duration) error
}

// New creates a Scheduler using strategy.
func New(strategy Strategy, cfg Config) *Scheduler {
	b := NewBreaker(cfg.MaxConsecutiveErrors, cfg.ErrorCooldown)
	b.OnStateChange(func(from, to BreakerState) {
		zap.L().Warn("fetch: breaker state change",
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	})
	return &Scheduler{
		strategy: strategy,
		pacer:    NewPacer(cfg.MinDelay, cfg.DelayIncrement, cfg.MaxDelay, cfg.BackoffEvery),
		headers:  NewHeaderRotator(cfg.UserAgents),
		breaker:  b,
		retry:    cfg.Retry.withDefaults(),
		reject:   cfg.RejectWhenOpen,
		sleep:    sleepCtx,
	}
}

// Strategy returns the document-fetch strategy in use.
func (s *Scheduler) Strategy() Strategy { return s.strategy }

// Pacer exposes the pacing state.
func (s *Scheduler) Pacer() *Pacer { return s.pacer }

// Breaker exposes the consecutive-failure breaker.
func (s *Scheduler) Breaker() *Breaker { return s.breaker }

// Fetch retrieves target. Request failures come back as *Failure and are
// logged here; a cancelled context comes back as a wrapped ctx.Err().
func (s *Scheduler) Fetch(ctx context.Context, target string) (*Document, error) {
	var lastErr error
	for attempt := 0; attempt < s.retry.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := s.retry.backoff(attempt - 1)
			zap.L().Info("fetch: retrying",
				zap.String("url", target),
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", delay),
			)
			if err := s.sleep(ctx, delay); err != nil {
				return nil, eris.Wrap(err, "fetch: retry wait")
			}
		}

		doc, err := s.attempt(ctx, target)
		if err == nil {
			return doc, nil
		}
		lastErr = err

		f, ok := AsFailure(err)
		if !ok || !f.Transient() {
			break
		}
	}
	return nil, lastErr
}

func (s *Scheduler) attempt(ctx context.Context, target string) (*Document, error) {
	if err := s.waitBreaker(ctx, target); err != nil {
		return nil, err
	}
	if err := s.pacer.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "fetch: pacing wait")
	}

	doc, err := s.strategy.Do(ctx, target, s.headers.Next())
	if err != nil {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "fetch: cancelled")
		}
		f, ok := AsFailure(err)
		if !ok {
			f = &Failure{Kind: model.FailureTransport, URL: target, Err: err}
		}
		s.breaker.Record(trips(f))
		zap.L().Warn("fetch: request failed",
			zap.String("url", target),
			zap.String("kind", string(f.Kind)),
			zap.Int("status", f.StatusCode),
			zap.String("strategy", s.strategy.Name()),
			zap.Error(f.Err),
		)
		return nil, f
	}
	s.breaker.Record(false)
	return doc, nil
}

// waitBreaker holds the request while the breaker is open, or rejects it
// when the scheduler is configured to.
func (s *Scheduler) waitBreaker(ctx context.Context, target string) error {
	ok, remaining := s.breaker.Allow()
	if ok {
		return nil
	}
	if s.reject {
		return &Failure{Kind: model.FailureCircuitOpen, URL: target, Err: ErrBreakerOpen}
	}
	zap.L().Warn("fetch: cooling down after consecutive failures",
		zap.Int("consecutive", s.breaker.Consecutive()),
		zap.Duration("cooldown", remaining),
	)
	if err := s.sleep(ctx, remaining); err != nil {
		return eris.Wrap(err, "fetch: cooldown wait")
	}
	s.breaker.Allow()
	return nil
}

// trips reports whether a failure counts toward the breaker. A missing
// page (404) says nothing about upstream health.
func trips(f *Failure) bool {
	switch f.Kind {
	case model.FailureTransport, model.FailureBlocked:
		return true
	case model.FailureStatus:
		return IsTransientStatus(f.StatusCode) || f.StatusCode == 403
	default:
		return false
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
