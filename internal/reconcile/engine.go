// Package reconcile merges freshly extracted player records into stored
// ones, field by field.
package reconcile

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/roster-cli/internal/model"
)

// RoleTableSource labels changes that came from the role fallback.
const RoleTableSource = "role_table"

var (
	// ErrNoRecords is returned when neither a fresh nor a prior record is given.
	ErrNoRecords = eris.New("reconcile: no fresh or prior record")
	// ErrIdentityMismatch is returned when fresh and prior describe different identities.
	ErrIdentityMismatch = eris.New("reconcile: identity mismatch")
)

// RoleFallback supplies a curated role when no extraction established one.
// *roles.Table satisfies it.
type RoleFallback interface {
	Lookup(identity string) (string, bool)
}

// Result is the outcome of one reconciliation step.
type Result struct {
	Record    model.PlayerRecord
	Changes   []model.FieldChange
	Preserved []model.Field
	Created   bool
}

// Changed reports whether the merged record differs from the prior one.
func (r Result) Changed() bool {
	return r.Created || len(r.Changes) > 0
}

// Engine applies the merge rule: a known fresh value always wins, and an
// unknown fresh value never replaces a known prior one.
type Engine struct {
	fallback RoleFallback
}

// Option configures an Engine.
type Option func(*Engine)

// WithRoleFallback consults fb when the merged role is still unknown.
func WithRoleFallback(fb RoleFallback) Option {
	return func(e *Engine) { e.fallback = fb }
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Reconcile merges fresh into prior. A nil fresh record (the fetch failed)
// passes prior through unchanged; a nil prior takes fresh as-is.
func (e *Engine) Reconcile(fresh, prior *model.PlayerRecord) (Result, error) {
	switch {
	case fresh == nil && prior == nil:
		return Result{}, ErrNoRecords
	case fresh == nil:
		return Result{Record: *prior}, nil
	case prior != nil && fresh.Identity != prior.Identity:
		return Result{}, eris.Wrapf(ErrIdentityMismatch, "reconcile: fresh %q vs prior %q", fresh.Identity, prior.Identity)
	}

	if prior == nil {
		res := Result{Record: *fresh, Created: true}
		for _, f := range model.Fields() {
			if fresh.Known(f) {
				res.Changes = append(res.Changes, model.FieldChange{Field: f, Current: fresh.Value(f), Source: fresh.Source})
			}
		}
		e.applyFallback(&res)
		return res, nil
	}

	res := Result{Record: *prior}
	freshKnown := false
	for _, f := range model.Fields() {
		switch {
		case !fresh.Known(f) && prior.Known(f):
			res.Preserved = append(res.Preserved, f)
		default:
			if fresh.Known(f) {
				freshKnown = true
			}
			if fresh.Value(f) != prior.Value(f) {
				res.Changes = append(res.Changes, model.FieldChange{
					Field:    f,
					Previous: prior.Value(f),
					Current:  fresh.Value(f),
					Source:   fresh.Source,
				})
			}
			res.Record.CopyField(f, *fresh)
		}
	}
	if freshKnown {
		res.Record.Source = fresh.Source
	}
	e.applyFallback(&res)
	return res, nil
}

func (e *Engine) applyFallback(res *Result) {
	if e.fallback == nil || res.Record.Known(model.FieldRole) {
		return
	}
	role, ok := e.fallback.Lookup(res.Record.Identity)
	if !ok {
		return
	}
	canon, ok := model.CanonicalRole(role)
	if !ok {
		return
	}
	res.Record.Role = canon
	res.Changes = append(res.Changes, model.FieldChange{Field: model.FieldRole, Current: canon, Source: RoleTableSource})
	zap.L().Debug("reconcile: role filled from fallback table",
		zap.String("identity", res.Record.Identity),
		zap.String("role", canon),
	)
}

// Dedupe folds records sharing an identity into one, in first-seen order.
// Later representations are merged into earlier ones with the Reconcile
// rule (no role fallback), so known values are never lost to unknown ones.
func Dedupe(records []model.PlayerRecord) []model.PlayerRecord {
	plain := New()
	index := make(map[string]int, len(records))
	out := make([]model.PlayerRecord, 0, len(records))
	for i := range records {
		rec := records[i]
		pos, seen := index[rec.Identity]
		if !seen {
			index[rec.Identity] = len(out)
			out = append(out, rec)
			continue
		}
		res, err := plain.Reconcile(&rec, &out[pos])
		if err != nil {
			continue
		}
		out[pos] = res.Record
	}
	return out
}
