package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/roster-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSQLite_UpsertAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	rec := s1mple()
	rec.Source = "liquipedia"
	require.NoError(t, st.Upsert(ctx, rec))

	got, ok, err := st.Get(ctx, "s1mple")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rec, got)

	_, ok, err = st.Get(ctx, "nobody")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLite_UpsertKeepsOrder(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.Upsert(ctx, s1mple()))
	require.NoError(t, st.Upsert(ctx, model.NewPlayerRecord("zywoo")))
	require.NoError(t, st.Upsert(ctx, model.NewPlayerRecord("device")))

	updated := s1mple()
	updated.Team = "Falcons"
	require.NoError(t, st.Upsert(ctx, updated))

	all, err := st.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"s1mple", "zywoo", "device"},
		[]string{all[0].Identity, all[1].Identity, all[2].Identity})
	assert.Equal(t, "Falcons", all[0].Team)
	assert.Equal(t, model.UnknownRole, all[1].Role)

	ids, err := Identities(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1mple", "zywoo", "device"}, ids)

	loaded, err := st.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, loaded, 3)
	assert.Equal(t, 28, loaded["s1mple"].Age)
}

func TestSQLite_UpsertRequiresIdentity(t *testing.T) {
	st := newTestSQLiteStore(t)
	assert.Error(t, st.Upsert(context.Background(), model.PlayerRecord{}))
}

func TestSQLite_FailureLedger(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	st.nowFunc = func() time.Time { return now }

	require.NoError(t, st.RecordFailure(ctx, model.FetchFailure{
		Identity: "ghost404", URL: "https://liquipedia.net/counterstrike/ghost404",
		Kind: model.FailureStatus, Error: "status 404",
	}))
	now = now.Add(time.Minute)
	require.NoError(t, st.RecordFailure(ctx, model.FetchFailure{
		Identity: "ghost404", Kind: model.FailureTransport, Error: "timeout",
	}))
	require.NoError(t, st.RecordFailure(ctx, model.FetchFailure{
		Identity: "bot", Kind: model.FailureBlocked, Error: "cloudflare",
	}))

	failures, err := st.ListFailures(ctx)
	require.NoError(t, err)
	require.Len(t, failures, 2)
	assert.Equal(t, "ghost404", failures[0].Identity)
	assert.Equal(t, 2, failures[0].Attempts)
	assert.Equal(t, model.FailureTransport, failures[0].Kind)
	assert.Equal(t, "timeout", failures[0].Error)
	assert.Equal(t, "bot", failures[1].Identity)
	assert.Equal(t, 1, failures[1].Attempts)

	require.NoError(t, st.ClearFailure(ctx, "ghost404"))
	require.NoError(t, st.ClearFailure(ctx, "never-failed"))

	failures, err = st.ListFailures(ctx)
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, "bot", failures[0].Identity)
}

func TestSQLite_FlushIsNoop(t *testing.T) {
	st := newTestSQLiteStore(t)
	assert.NoError(t, st.Flush(context.Background()))
}

func TestNewSQLite_RequiresPath(t *testing.T) {
	_, err := NewSQLite("")
	assert.Error(t, err)
}
