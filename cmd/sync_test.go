package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/roster-cli/internal/model"
	"github.com/sells-group/roster-cli/internal/store"
)

func resetSyncFlags(t *testing.T) {
	t.Helper()
	syncSeed, syncLimit, syncRetryFailed, syncOffline, syncDryRun = "", 0, false, "", false
	t.Cleanup(func() {
		syncSeed, syncLimit, syncRetryFailed, syncOffline, syncDryRun = "", 0, false, "", false
	})
}

func TestSyncCmd_OfflinePass(t *testing.T) {
	resetSyncFlags(t)
	c, _ := testConfig(t)
	c.Seed.Players = []string{"s1mple", "ghost", "s1mple"}
	cfg = c
	syncOffline = fixtureDir(t)

	out, err := runCommand(t, syncCmd)
	require.NoError(t, err)
	assert.Contains(t, out, "Player Statistics Report")
	assert.Contains(t, out, "Total players: 1")

	st, err := store.NewCSV(cfg.Store.Path, store.CSVOptions{})
	require.NoError(t, err)
	recs, err := st.All(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "s1mple", recs[0].Identity)
	assert.Equal(t, "Natus Vincere", recs[0].Team)
	assert.Equal(t, "Ukraine", recs[0].Nationality)
	assert.Equal(t, "AWPer", recs[0].Role)
	assert.Greater(t, recs[0].Age, 0)

	failures, err := st.ListFailures(context.Background())
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, "ghost", failures[0].Identity)

	report, err := os.ReadFile(cfg.Report.Path)
	require.NoError(t, err)
	assert.Equal(t, out, string(report))
}

func TestSyncCmd_RetryFailed(t *testing.T) {
	resetSyncFlags(t)
	c, _ := testConfig(t)
	c.Seed.Players = []string{"ghost"}
	cfg = c
	syncOffline = fixtureDir(t)

	_, err := runCommand(t, syncCmd)
	require.NoError(t, err)

	syncRetryFailed = true
	_, err = runCommand(t, syncCmd)
	require.NoError(t, err)

	st, err := store.NewCSV(cfg.Store.Path, store.CSVOptions{})
	require.NoError(t, err)
	failures, err := st.ListFailures(context.Background())
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, 2, failures[0].Attempts)
}

func TestSyncCmd_DryRunWritesNothing(t *testing.T) {
	resetSyncFlags(t)
	c, _ := testConfig(t)
	c.Seed.Players = []string{"s1mple"}
	cfg = c
	syncOffline = fixtureDir(t)
	syncDryRun = true

	_, err := runCommand(t, syncCmd)
	require.NoError(t, err)

	_, err = os.Stat(cfg.Store.Path)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(cfg.Report.Path)
	assert.True(t, os.IsNotExist(err))
}

func TestSyncCmd_SeedFileAndLimit(t *testing.T) {
	resetSyncFlags(t)
	c, dir := testConfig(t)
	cfg = c
	syncOffline = fixtureDir(t)
	syncSeed = filepath.Join(dir, "seed.txt")
	syncLimit = 1
	writeFile(t, syncSeed, "# players\ns1mple\nghost\n")

	_, err := runCommand(t, syncCmd)
	require.NoError(t, err)

	st, err := store.NewCSV(cfg.Store.Path, store.CSVOptions{})
	require.NoError(t, err)
	failures, err := st.ListFailures(context.Background())
	require.NoError(t, err)
	assert.Empty(t, failures, "ghost is beyond the limit")
}

func TestSyncCmd_InvalidConfig(t *testing.T) {
	resetSyncFlags(t)
	c, _ := testConfig(t)
	c.Validation.MinAge = 60
	cfg = c

	_, err := runCommand(t, syncCmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation.min_age")
}

func TestResolveIdentities_FallsBackToStore(t *testing.T) {
	resetSyncFlags(t)
	c, _ := testConfig(t)
	cfg = c

	ctx := context.Background()
	st, err := store.NewCSV(cfg.Store.Path, store.CSVOptions{})
	require.NoError(t, err)
	require.NoError(t, st.Upsert(ctx, model.NewPlayerRecord("zywoo")))
	require.NoError(t, st.Upsert(ctx, model.NewPlayerRecord("device")))

	ids, err := resolveIdentities(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, []string{"zywoo", "device"}, ids)

	cfg.Seed.Players = []string{"b", "a", "b"}
	ids, err = resolveIdentities(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, ids)
}

func TestSyncCmd_SendsFailureAlert(t *testing.T) {
	resetSyncFlags(t)
	c, _ := testConfig(t)
	c.Seed.Players = []string{"ghost", "phantom"}
	c.Monitoring.MinProcessed = 1

	var alerts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		alerts.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()
	c.Monitoring.WebhookURL = srv.URL
	cfg = c
	syncOffline = fixtureDir(t)

	_, err := runCommand(t, syncCmd)
	require.NoError(t, err)
	assert.Equal(t, int32(1), alerts.Load())
}
