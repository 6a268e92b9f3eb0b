package source

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/roster-cli/internal/fetch"
)

// Chain tries sources in order and returns the first success. When the
// winning extraction has no role, role-hint sources are consulted.
type Chain struct {
	sources   []Source
	roleHints []Source
}

// NewChain creates a Chain over sources.
func NewChain(sources ...Source) *Chain {
	return &Chain{sources: sources}
}

// WithRoleHints adds sources consulted only for a missing role.
func (c *Chain) WithRoleHints(hints ...Source) *Chain {
	c.roleHints = append(c.roleHints, hints...)
	return c
}

// Name implements Source.
func (c *Chain) Name() string { return "chain" }

// Sources returns the primary source names in order.
func (c *Chain) Sources() []string {
	names := make([]string, 0, len(c.sources))
	for _, s := range c.sources {
		names = append(names, s.Name())
	}
	return names
}

// Lookup implements Source. The error of the last failing source is
// returned when none succeeds.
func (c *Chain) Lookup(ctx context.Context, identity string) (*Extraction, error) {
	var ext *Extraction
	var lastErr error
	for _, s := range c.sources {
		e, err := s.Lookup(ctx, identity)
		if err == nil && e != nil {
			ext = e
			break
		}
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "source: lookup cancelled")
		}
		if err == nil {
			err = fetch.ShapeFailure("", "source %s returned no extraction for %s", s.Name(), identity)
		}
		lastErr = err
		zap.L().Debug("source: lookup failed, trying next",
			zap.String("source", s.Name()),
			zap.String("identity", identity),
			zap.Error(err),
		)
	}
	if ext == nil {
		if lastErr == nil {
			return nil, eris.Errorf("source: no sources configured for %s", identity)
		}
		return nil, eris.Wrap(lastErr, "source: all sources failed")
	}

	if !ext.Has(KeyRole) {
		c.fillRole(ctx, ext)
	}
	return ext, nil
}

func (c *Chain) fillRole(ctx context.Context, ext *Extraction) {
	for _, s := range c.roleHints {
		hint, err := s.Lookup(ctx, ext.Identity)
		if err != nil || hint == nil || !hint.Has(KeyRole) {
			zap.L().Debug("source: role hint unavailable",
				zap.String("source", s.Name()),
				zap.String("identity", ext.Identity),
				zap.Error(err),
			)
			continue
		}
		ext.Fields[KeyRole] = hint.Fields[KeyRole]
		zap.L().Info("source: role filled from hint",
			zap.String("source", s.Name()),
			zap.String("identity", ext.Identity),
			zap.String("role", hint.Fields[KeyRole]),
		)
		return
	}
}
