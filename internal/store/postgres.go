package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/roster-cli/internal/db"
	"github.com/sells-group/roster-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock pools satisfy it
// in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresStore implements Store and FailureLedger using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
	nowFunc func() time.Time
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// A single sync pass is the only writer, so the pool stays small.
	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close, nowFunc: time.Now}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS players (
	seq         BIGSERIAL,
	identity    TEXT PRIMARY KEY,
	team        TEXT NOT NULL,
	nationality TEXT NOT NULL,
	age         INTEGER NOT NULL DEFAULT 0,
	role        TEXT NOT NULL,
	source      TEXT NOT NULL DEFAULT '',
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_players_seq ON players(seq);

CREATE TABLE IF NOT EXISTS fetch_failures (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	identity        TEXT NOT NULL UNIQUE,
	url             TEXT NOT NULL DEFAULT '',
	kind            TEXT NOT NULL,
	error           TEXT NOT NULL DEFAULT '',
	attempts        INTEGER NOT NULL DEFAULT 1,
	first_failed_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_failed_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_fetch_failures_first ON fetch_failures(first_failed_at);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) now() time.Time {
	if s.nowFunc == nil {
		return time.Now()
	}
	return s.nowFunc()
}

func (s *PostgresStore) Load(ctx context.Context) (map[string]model.PlayerRecord, error) {
	recs, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]model.PlayerRecord, len(recs))
	for _, r := range recs {
		out[r.Identity] = r
	}
	return out, nil
}

func (s *PostgresStore) Get(ctx context.Context, identity string) (model.PlayerRecord, bool, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT identity, team, nationality, age, role, source FROM players WHERE identity = $1`,
		identity,
	)
	rec, err := scanPlayer(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.PlayerRecord{}, false, nil
	}
	if err != nil {
		return model.PlayerRecord{}, false, eris.Wrapf(err, "postgres: get player %s", identity)
	}
	return rec, true, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, rec model.PlayerRecord) error {
	if rec.Identity == "" {
		return eris.New("postgres: upsert requires an identity")
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO players (identity, team, nationality, age, role, source, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (identity) DO UPDATE SET
		   team = EXCLUDED.team, nationality = EXCLUDED.nationality, age = EXCLUDED.age,
		   role = EXCLUDED.role, source = EXCLUDED.source, updated_at = EXCLUDED.updated_at`,
		rec.Identity, rec.Team, rec.Nationality, rec.Age, rec.Role, rec.Source, s.now().UTC(),
	)
	return eris.Wrapf(err, "postgres: upsert player %s", rec.Identity)
}

// UpsertMany writes recs in one transaction through a COPY-loaded temp
// table. New identities get seq values in slice order.
func (s *PostgresStore) UpsertMany(ctx context.Context, recs []model.PlayerRecord) error {
	now := s.now().UTC()
	rows := make([][]any, 0, len(recs))
	for _, rec := range recs {
		if rec.Identity == "" {
			return eris.New("postgres: upsert requires an identity")
		}
		rows = append(rows, []any{rec.Identity, rec.Team, rec.Nationality, rec.Age, rec.Role, rec.Source, now})
	}
	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "players",
		Columns:      []string{"identity", "team", "nationality", "age", "role", "source", "updated_at"},
		ConflictKeys: []string{"identity"},
		OrderBy:      "seq",
	}, rows)
	return eris.Wrap(err, "postgres: bulk upsert players")
}

// All returns players in first-insert order; an upsert never changes seq.
func (s *PostgresStore) All(ctx context.Context) ([]model.PlayerRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT identity, team, nationality, age, role, source FROM players ORDER BY seq`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list players")
	}
	defer rows.Close()

	var out []model.PlayerRecord
	for rows.Next() {
		rec, err := scanPlayer(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan player")
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate players")
}

func (s *PostgresStore) Flush(_ context.Context) error { return nil }

func (s *PostgresStore) RecordFailure(ctx context.Context, f model.FetchFailure) error {
	if f.Identity == "" {
		return eris.New("postgres: failure requires an identity")
	}
	f = withFailureDefaults(f, s.now())
	_, err := s.pool.Exec(ctx,
		`INSERT INTO fetch_failures (id, identity, url, kind, error, attempts, first_failed_at, last_failed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (identity) DO UPDATE SET
		   url = EXCLUDED.url, kind = EXCLUDED.kind, error = EXCLUDED.error,
		   attempts = fetch_failures.attempts + 1, last_failed_at = EXCLUDED.last_failed_at`,
		f.ID, f.Identity, f.URL, string(f.Kind), f.Error, f.Attempts, f.FirstFailedAt, f.LastFailedAt,
	)
	return eris.Wrapf(err, "postgres: record failure %s", f.Identity)
}

func (s *PostgresStore) ClearFailure(ctx context.Context, identity string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM fetch_failures WHERE identity = $1`, identity)
	return eris.Wrapf(err, "postgres: clear failure %s", identity)
}

func (s *PostgresStore) ListFailures(ctx context.Context) ([]model.FetchFailure, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, identity, url, kind, error, attempts, first_failed_at, last_failed_at
		 FROM fetch_failures ORDER BY first_failed_at, identity`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list failures")
	}
	defer rows.Close()

	var out []model.FetchFailure
	for rows.Next() {
		var f model.FetchFailure
		var kind string
		if err := rows.Scan(&f.ID, &f.Identity, &f.URL, &kind, &f.Error, &f.Attempts,
			&f.FirstFailedAt, &f.LastFailedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan failure")
		}
		f.Kind = model.FailureKind(kind)
		out = append(out, f)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate failures")
}
