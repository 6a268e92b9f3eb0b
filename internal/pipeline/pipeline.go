// Package pipeline runs a sync pass: every identity is looked up, normalized,
// validated, reconciled against its stored record and written back, one at a
// time and in list order.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/roster-cli/internal/fetch"
	"github.com/sells-group/roster-cli/internal/model"
	"github.com/sells-group/roster-cli/internal/normalize"
	"github.com/sells-group/roster-cli/internal/reconcile"
	"github.com/sells-group/roster-cli/internal/source"
	"github.com/sells-group/roster-cli/internal/store"
	"github.com/sells-group/roster-cli/internal/validate"
)

// DefaultProgressEvery is how often, in identities, progress is logged.
const DefaultProgressEvery = 10

// Pipeline wires the components of a sync pass. It is not safe for
// concurrent use: a pass is the store's only writer.
type Pipeline struct {
	source     source.Source
	normalizer *normalize.Normalizer
	validator  *validate.Validator
	engine     *reconcile.Engine
	store      store.Store
	ledger     store.FailureLedger

	dryRun        bool
	progressEvery int
	nowFunc       func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithDryRun runs the pass without writing to the store or the ledger.
func WithDryRun(dry bool) Option {
	return func(p *Pipeline) { p.dryRun = dry }
}

// WithProgressEvery sets the progress log interval. Zero disables it.
func WithProgressEvery(n int) Option {
	return func(p *Pipeline) { p.progressEvery = n }
}

// New creates a Pipeline. The failure ledger is taken from st when the
// driver keeps one.
func New(
	src source.Source,
	norm *normalize.Normalizer,
	val *validate.Validator,
	eng *reconcile.Engine,
	st store.Store,
	opts ...Option,
) *Pipeline {
	p := &Pipeline{
		source:        src,
		normalizer:    norm,
		validator:     val,
		engine:        eng,
		store:         st,
		progressEvery: DefaultProgressEvery,
		nowFunc:       time.Now,
	}
	if l, ok := store.Ledger(st); ok {
		p.ledger = l
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Run processes identities in order and flushes the store at the end. A
// single identity's fetch or validation failure never stops the pass; store
// errors and cancellation do. The summary is returned in every case.
func (p *Pipeline) Run(ctx context.Context, identities []string) (model.RunSummary, error) {
	sum := model.RunSummary{
		RunID:     uuid.New().String(),
		StartedAt: p.nowFunc().UTC(),
		DryRun:    p.dryRun,
	}
	log := zap.L().With(zap.String("run_id", sum.RunID))
	log.Info("pipeline: starting pass",
		zap.Int("identities", len(identities)),
		zap.Bool("dry_run", p.dryRun),
	)

	finish := func() {
		sum.FinishedAt = p.nowFunc().UTC()
	}

	for i, identity := range identities {
		if err := ctx.Err(); err != nil {
			finish()
			return sum, eris.Wrap(err, "pipeline: pass cancelled")
		}
		if err := p.process(ctx, identity, &sum); err != nil {
			finish()
			return sum, err
		}
		if p.progressEvery > 0 && (i+1)%p.progressEvery == 0 {
			log.Info("pipeline: progress",
				zap.Int("done", i+1),
				zap.Int("total", len(identities)),
				zap.Int("failed", sum.Failed),
			)
		}
	}

	if !p.dryRun {
		if err := p.store.Flush(ctx); err != nil {
			finish()
			return sum, eris.Wrap(err, "pipeline: flush store")
		}
	}
	finish()

	log.Info("pipeline: pass complete",
		zap.Int("processed", sum.Processed),
		zap.Int("created", sum.Created),
		zap.Int("updated", sum.Updated),
		zap.Int("unchanged", sum.Unchanged),
		zap.Int("failed", sum.Failed),
		zap.Int("rejected", sum.Rejected),
		zap.Duration("duration", sum.Duration()),
	)
	return sum, nil
}

// process handles one identity. Only store errors and cancellation are
// returned; everything else is counted in sum.
func (p *Pipeline) process(ctx context.Context, identity string, sum *model.RunSummary) error {
	sum.Processed++
	log := zap.L().With(zap.String("identity", identity))

	// An identity that cannot be a store key is rejected before any request.
	keyCheck := p.validator.Validate(model.NewPlayerRecord(identity))
	if !keyCheck.Valid() {
		p.reject(log, identity, keyCheck.Errors, sum)
		return nil
	}
	key := keyCheck.Cleaned.Identity

	prior, hasPrior, err := p.store.Get(ctx, key)
	if err != nil {
		return eris.Wrapf(err, "pipeline: load stored record %s", key)
	}
	var priorPtr *model.PlayerRecord
	demoted := false
	if hasPrior {
		demoted = p.demoteStored(log, &prior, sum)
		priorPtr = &prior
	}

	ext, err := p.source.Lookup(ctx, identity)
	if err != nil {
		if ctx.Err() != nil {
			return eris.Wrap(ctx.Err(), "pipeline: pass cancelled")
		}
		p.fail(ctx, log, key, priorPtr, err, sum)
		return nil
	}

	fresh := p.normalizer.BuildRecord(key, ext.Source, ext.Fields)
	checked := p.validator.Validate(fresh)
	for _, w := range checked.Warnings {
		log.Warn("pipeline: field demoted to unknown",
			zap.String("field", w.Field),
			zap.String("reason", w.Message),
		)
	}
	sum.Warnings += len(checked.Warnings)
	if !checked.Valid() {
		p.reject(log, key, checked.Errors, sum)
		return nil
	}

	res, err := p.engine.Reconcile(&checked.Cleaned, priorPtr)
	if err != nil {
		log.Error("pipeline: reconcile failed", zap.Error(err))
		sum.Rejected++
		sum.RejectedIdentities = append(sum.RejectedIdentities, key)
		return nil
	}
	sum.Preserved += len(res.Preserved)

	switch {
	case res.Created:
		sum.Created++
		log.Info("pipeline: record created", zap.Int("known_fields", res.Record.Completeness()))
	case res.Changed() || demoted:
		sum.Updated++
		for _, c := range res.Changes {
			log.Info("pipeline: field changed",
				zap.String("field", string(c.Field)),
				zap.String("previous", c.Previous),
				zap.String("current", c.Current),
				zap.String("source", c.Source),
			)
		}
	default:
		sum.Unchanged++
	}
	if len(res.Preserved) > 0 {
		log.Debug("pipeline: kept stored values", zap.Int("fields", len(res.Preserved)))
	}

	if p.dryRun {
		return nil
	}
	if err := p.store.Upsert(ctx, res.Record); err != nil {
		return eris.Wrapf(err, "pipeline: upsert %s", key)
	}
	if p.ledger != nil {
		if err := p.ledger.ClearFailure(ctx, key); err != nil {
			log.Warn("pipeline: clear ledger entry failed", zap.Error(err))
		}
	}
	return nil
}

// demoteStored puts a stored record through the validator so out-of-range
// ages and roles outside the taxonomy are not carried forward as known data.
// It reports whether any field was demoted.
func (p *Pipeline) demoteStored(log *zap.Logger, prior *model.PlayerRecord, sum *model.RunSummary) bool {
	checked := p.validator.Validate(*prior)
	demoted := false
	for _, w := range checked.Warnings {
		if w.Field != "age" && w.Field != "role" {
			continue
		}
		demoted = true
		sum.Warnings++
		log.Warn("pipeline: stored field demoted to unknown",
			zap.String("field", w.Field),
			zap.String("reason", w.Message),
		)
	}
	if demoted {
		prior.Age = checked.Cleaned.Age
		prior.Role = checked.Cleaned.Role
	}
	return demoted
}

// fail counts a fetch failure. The stored record, if any, passes through
// untouched; an identity never stored before stays absent.
func (p *Pipeline) fail(ctx context.Context, log *zap.Logger, key string, prior *model.PlayerRecord, err error, sum *model.RunSummary) {
	sum.Failed++
	sum.FailedIdentities = append(sum.FailedIdentities, key)

	kind := fetch.KindOf(err)
	log.Warn("pipeline: fetch failed, keeping stored record",
		zap.String("kind", string(kind)),
		zap.Bool("has_prior", prior != nil),
		zap.Error(err),
	)
	if prior != nil {
		// Passing the prior through is a no-op on the store.
		if _, rerr := p.engine.Reconcile(nil, prior); rerr != nil {
			log.Error("pipeline: pass-through failed", zap.Error(rerr))
		}
	}

	if p.dryRun || p.ledger == nil {
		return
	}
	entry := model.FetchFailure{
		Identity: key,
		Kind:     kind,
		Error:    err.Error(),
	}
	if f, ok := fetch.AsFailure(err); ok {
		entry.URL = f.URL
	}
	if lerr := p.ledger.RecordFailure(ctx, entry); lerr != nil {
		log.Warn("pipeline: record ledger entry failed", zap.Error(lerr))
	}
}

func (p *Pipeline) reject(log *zap.Logger, identity string, issues []validate.Issue, sum *model.RunSummary) {
	sum.Rejected++
	sum.RejectedIdentities = append(sum.RejectedIdentities, identity)
	for _, is := range issues {
		log.Error("pipeline: candidate rejected",
			zap.String("field", is.Field),
			zap.String("reason", is.Message),
		)
	}
}
