package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/roster-cli/internal/fetch"
	"github.com/sells-group/roster-cli/internal/normalize"
	"github.com/sells-group/roster-cli/internal/pipeline"
	"github.com/sells-group/roster-cli/internal/reconcile"
	"github.com/sells-group/roster-cli/internal/roles"
	"github.com/sells-group/roster-cli/internal/source"
	"github.com/sells-group/roster-cli/internal/store"
	"github.com/sells-group/roster-cli/internal/validate"
)

// syncEnv holds the store, scheduler and pipeline a sync pass needs.
type syncEnv struct {
	Store     store.Store
	Scheduler *fetch.Scheduler
	Pipeline  *pipeline.Pipeline
}

// Close releases the store.
func (e *syncEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initSync opens the store and builds the pipeline. An offline directory
// replaces the network with fixture files. Callers should defer env.Close().
func initSync(ctx context.Context, offlineDir string, dryRun bool) (*syncEnv, error) {
	if err := cfg.Validate("sync"); err != nil {
		return nil, err
	}

	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	sched := fetch.New(buildStrategy(offlineDir), fetchConfig())

	chain, err := buildSource(sched)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	eng, err := buildEngine()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	p := pipeline.New(
		chain,
		normalize.New(cfg.Validation.MinAge, cfg.Validation.MaxAge),
		buildValidator(),
		eng,
		st,
		pipeline.WithDryRun(dryRun),
	)

	zap.L().Info("sync environment ready",
		zap.String("store", cfg.Store.Driver),
		zap.String("strategy", sched.Strategy().Name()),
		zap.Strings("sources", chain.Sources()),
	)

	return &syncEnv{Store: st, Scheduler: sched, Pipeline: p}, nil
}

// openStore opens the configured store driver.
func openStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, storeOptions())
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	return st, nil
}

func storeOptions() store.Options {
	return store.Options{
		Driver:         cfg.Store.Driver,
		Path:           cfg.Store.Path,
		Locale:         cfg.Store.Locale,
		BackupExisting: cfg.Store.BackupExisting,
		WriteBOM:       cfg.Store.WriteBOM,
		DatabaseURL:    cfg.Store.DatabaseURL,
		Pool: &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		},
	}
}

func fetchConfig() fetch.Config {
	ms := func(n int) time.Duration { return time.Duration(n) * time.Millisecond }
	return fetch.Config{
		MinDelay:       ms(cfg.Fetch.MinDelayMS),
		DelayIncrement: ms(cfg.Fetch.DelayIncrementMS),
		MaxDelay:       ms(cfg.Fetch.MaxDelayMS),
		BackoffEvery:   cfg.Fetch.BackoffEvery,
		UserAgents:     cfg.Fetch.UserAgents,
		Retry: fetch.RetryPolicy{
			MaxAttempts:    cfg.Fetch.MaxAttempts,
			InitialBackoff: ms(cfg.Fetch.RetryBackoffMS),
			MaxBackoff:     ms(cfg.Fetch.MaxRetryBackoffMS),
		},
		MaxConsecutiveErrors: cfg.Fetch.MaxConsecutiveErrors,
		ErrorCooldown:        time.Duration(cfg.Fetch.ErrorCooldownSecs) * time.Second,
		RejectWhenOpen:       cfg.Fetch.RejectWhenOpen,
	}
}

// buildStrategy picks fixtures when a directory is given on the command line
// or in config, and live HTTP otherwise.
func buildStrategy(offlineDir string) fetch.Strategy {
	if offlineDir == "" {
		offlineDir = cfg.Fetch.FixtureDir
	}
	if offlineDir != "" {
		return fetch.NewFixtureStrategy(offlineDir)
	}
	return fetch.NewHTTPStrategy(time.Duration(cfg.Fetch.TimeoutSecs) * time.Second)
}

// buildSource assembles the enabled sources in lookup order: infobox pages
// first, the wikitext API second, the stats page only as a role hint.
func buildSource(f source.Fetcher) (*source.Chain, error) {
	var primary []source.Source
	if s := cfg.Sources.Infobox; s.Enabled {
		primary = append(primary, source.NewInfoboxSource(s.Name, s.BaseURL, f))
	}
	if s := cfg.Sources.Wikitext; s.Enabled {
		primary = append(primary, source.NewWikitextSource(s.Name, s.BaseURL, f))
	}
	if len(primary) == 0 {
		return nil, eris.New("sync: no sources enabled")
	}

	chain := source.NewChain(primary...)
	if s := cfg.Sources.RoleHint; s.Enabled {
		chain = chain.WithRoleHints(source.NewRoleHintSource(s.Name, s.BaseURL, f))
	}
	return chain, nil
}

func buildValidator() *validate.Validator {
	rules := validate.DefaultRules()
	rules.MinIdentityLen = cfg.Validation.MinIdentityLen
	rules.MaxIdentityLen = cfg.Validation.MaxIdentityLen
	rules.MinAge = cfg.Validation.MinAge
	rules.MaxAge = cfg.Validation.MaxAge
	if len(cfg.Validation.Nationalities) > 0 {
		rules.Nationalities = validate.NationalitySet(cfg.Validation.Nationalities)
	}
	return validate.New(rules)
}

// buildEngine wires the curated role table in as fallback when enabled.
func buildEngine() (*reconcile.Engine, error) {
	if !cfg.Roles.Enabled {
		return reconcile.New(), nil
	}
	table, err := roles.Load(cfg.Roles.TablePath)
	if err != nil {
		return nil, eris.Wrap(err, "load role table")
	}
	zap.L().Debug("role table loaded", zap.Int("entries", table.Len()))
	return reconcile.New(reconcile.WithRoleFallback(table)), nil
}
