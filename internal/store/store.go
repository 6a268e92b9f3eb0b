// Package store persists the identity-keyed player table. Three drivers are
// available: a flat CSV file (the default), SQLite and Postgres.
package store

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/roster-cli/internal/model"
)

// Driver names accepted by Open.
const (
	DriverCSV      = "csv"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// ErrUnknownDriver is returned by Open for an unsupported driver name.
var ErrUnknownDriver = eris.New("store: unknown driver")

// Store is an ordered table of player records keyed by identity. Rows keep
// the order in which identities were first stored.
type Store interface {
	// Load returns every stored record keyed by identity.
	Load(ctx context.Context) (map[string]model.PlayerRecord, error)
	// Get returns the record for identity and whether it exists.
	Get(ctx context.Context, identity string) (model.PlayerRecord, bool, error)
	// Upsert inserts rec or replaces the stored record with the same identity
	// in place.
	Upsert(ctx context.Context, rec model.PlayerRecord) error
	// All returns every record in table order.
	All(ctx context.Context) ([]model.PlayerRecord, error)
	// Flush persists pending changes. Drivers that write through make it a no-op.
	Flush(ctx context.Context) error
	Close() error
}

// FailureLedger remembers identities whose last fetch failed so a later pass
// can retry only those.
type FailureLedger interface {
	RecordFailure(ctx context.Context, f model.FetchFailure) error
	ClearFailure(ctx context.Context, identity string) error
	ListFailures(ctx context.Context) ([]model.FetchFailure, error)
}

// BulkWriter is implemented by drivers that can write many records in one
// round trip.
type BulkWriter interface {
	UpsertMany(ctx context.Context, recs []model.PlayerRecord) error
}

// UpsertAll writes recs in order, in bulk when the driver supports it.
func UpsertAll(ctx context.Context, s Store, recs []model.PlayerRecord) error {
	if len(recs) == 0 {
		return nil
	}
	if bw, ok := s.(BulkWriter); ok {
		return bw.UpsertMany(ctx, recs)
	}
	for _, rec := range recs {
		if err := s.Upsert(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// Options selects and tunes a store driver.
type Options struct {
	Driver string
	// Path is the CSV file or the SQLite database file.
	Path string
	// Locale picks the CSV header and sentinel labels ("en" or "zh"). Empty
	// keeps whatever the existing file uses.
	Locale         string
	BackupExisting bool
	WriteBOM       bool
	DatabaseURL    string
	Pool           *PoolConfig
}

// Open builds the configured store, loads or migrates it and returns it ready
// for use.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch strings.ToLower(opts.Driver) {
	case "", DriverCSV:
		s, err := NewCSV(opts.Path, CSVOptions{
			Locale:         opts.Locale,
			BackupExisting: opts.BackupExisting,
			WriteBOM:       opts.WriteBOM,
		})
		if err != nil {
			return nil, err
		}
		if _, err := s.Load(ctx); err != nil {
			return nil, err
		}
		return s, nil
	case DriverSQLite:
		s, err := NewSQLite(opts.Path)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
		return s, nil
	case DriverPostgres:
		if opts.DatabaseURL == "" {
			return nil, eris.New("store: postgres driver requires a database url")
		}
		s, err := NewPostgres(ctx, opts.DatabaseURL, opts.Pool)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
		return s, nil
	default:
		return nil, eris.Wrapf(ErrUnknownDriver, "store: driver %q", opts.Driver)
	}
}

// Identities returns the stored identities in table order.
func Identities(ctx context.Context, s Store) ([]string, error) {
	recs, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Identity)
	}
	return out, nil
}

// Ledger returns the store's failure ledger, if the driver keeps one.
func Ledger(s Store) (FailureLedger, bool) {
	l, ok := s.(FailureLedger)
	return l, ok
}
