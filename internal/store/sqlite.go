package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/roster-cli/internal/model"
)

// SQLiteStore implements Store and FailureLedger using modernc.org/sqlite.
// Every Upsert writes through.
type SQLiteStore struct {
	db      *sql.DB
	nowFunc func() time.Time
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	if dsn == "" {
		return nil, eris.New("sqlite: path is required")
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, nowFunc: time.Now}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS players (
	identity    TEXT PRIMARY KEY,
	team        TEXT NOT NULL,
	nationality TEXT NOT NULL,
	age         INTEGER NOT NULL DEFAULT 0,
	role        TEXT NOT NULL,
	source      TEXT NOT NULL DEFAULT '',
	updated_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS fetch_failures (
	id              TEXT PRIMARY KEY,
	identity        TEXT NOT NULL UNIQUE,
	url             TEXT NOT NULL DEFAULT '',
	kind            TEXT NOT NULL,
	error           TEXT NOT NULL DEFAULT '',
	attempts        INTEGER NOT NULL DEFAULT 1,
	first_failed_at DATETIME NOT NULL,
	last_failed_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fetch_failures_first ON fetch_failures(first_failed_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Load(ctx context.Context) (map[string]model.PlayerRecord, error) {
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

func (s *SQLiteStore) Get(ctx context.Context, identity string) (model.PlayerRecord, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT identity, team, nationality, age, role, source FROM players WHERE identity = ?`,
		identity,
	)
	rec, err := scanPlayer(row)
	if err == sql.ErrNoRows {
		return model.PlayerRecord{}, false, nil
	}
	if err != nil {
		return model.PlayerRecord{}, false, eris.Wrapf(err, "sqlite: get player %s", identity)
	}
	return rec, true, nil
}

func (s *SQLiteStore) Upsert(ctx context.Context, rec model.PlayerRecord) error {
	if rec.Identity == "" {
		return eris.New("sqlite: upsert requires an identity")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO players (identity, team, nationality, age, role, source, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(identity) DO UPDATE SET
		   team = excluded.team, nationality = excluded.nationality, age = excluded.age,
		   role = excluded.role, source = excluded.source, updated_at = excluded.updated_at`,
		rec.Identity, rec.Team, rec.Nationality, rec.Age, rec.Role, rec.Source, s.nowFunc().UTC(),
	)
	return eris.Wrapf(err, "sqlite: upsert player %s", rec.Identity)
}

// All returns players in insertion order. An upsert keeps the row's rowid, so
// an updated player stays in place.
func (s *SQLiteStore) All(ctx context.Context) ([]model.PlayerRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT identity, team, nationality, age, role, source FROM players ORDER BY rowid`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list players")
	}
	defer rows.Close()

	var out []model.PlayerRecord
	for rows.Next() {
		rec, err := scanPlayer(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan player")
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate players")
}

func (s *SQLiteStore) Flush(_ context.Context) error { return nil }

func (s *SQLiteStore) RecordFailure(ctx context.Context, f model.FetchFailure) error {
	if f.Identity == "" {
		return eris.New("sqlite: failure requires an identity")
	}
	f = withFailureDefaults(f, s.nowFunc())
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO fetch_failures (id, identity, url, kind, error, attempts, first_failed_at, last_failed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(identity) DO UPDATE SET
		   url = excluded.url, kind = excluded.kind, error = excluded.error,
		   attempts = fetch_failures.attempts + 1, last_failed_at = excluded.last_failed_at`,
		f.ID, f.Identity, f.URL, string(f.Kind), f.Error, f.Attempts, f.FirstFailedAt, f.LastFailedAt,
	)
	return eris.Wrapf(err, "sqlite: record failure %s", f.Identity)
}

func (s *SQLiteStore) ClearFailure(ctx context.Context, identity string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM fetch_failures WHERE identity = ?`, identity)
	return eris.Wrapf(err, "sqlite: clear failure %s", identity)
}

func (s *SQLiteStore) ListFailures(ctx context.Context) ([]model.FetchFailure, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, identity, url, kind, error, attempts, first_failed_at, last_failed_at
		 FROM fetch_failures ORDER BY first_failed_at, identity`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list failures")
	}
	defer rows.Close()

	var out []model.FetchFailure
	for rows.Next() {
		var f model.FetchFailure
		var kind string
		if err := rows.Scan(&f.ID, &f.Identity, &f.URL, &kind, &f.Error, &f.Attempts,
			&f.FirstFailedAt, &f.LastFailedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan failure")
		}
		f.Kind = model.FailureKind(kind)
		out = append(out, f)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate failures")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanPlayer(row scannable) (model.PlayerRecord, error) {
	var r model.PlayerRecord
	err := row.Scan(&r.Identity, &r.Team, &r.Nationality, &r.Age, &r.Role, &r.Source)
	return r, err
}

// withFailureDefaults fills the ID, attempt count and timestamps of a new
// ledger entry.
func withFailureDefaults(f model.FetchFailure, now time.Time) model.FetchFailure {
	now = now.UTC()
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	if f.Attempts < 1 {
		f.Attempts = 1
	}
	if f.LastFailedAt.IsZero() {
		f.LastFailedAt = now
	}
	if f.FirstFailedAt.IsZero() {
		f.FirstFailedAt = f.LastFailedAt
	}
	return f
}
