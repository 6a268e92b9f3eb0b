package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/roster-cli/internal/config"
)

// pkgDir is the package directory the test binary starts in, captured
// before any test changes the working directory.
var pkgDir, _ = os.Getwd()

// fixtureDir holds saved player pages shared with the source tests.
func fixtureDir(t *testing.T) string {
	t.Helper()
	dir, err := filepath.Abs(filepath.Join(pkgDir, "..", "internal", "source", "testdata"))
	require.NoError(t, err)
	return dir
}

// testConfig loads defaults from an empty temp directory and points every
// output path into it. Pacing is disabled.
func testConfig(t *testing.T) (*config.Config, string) {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck

	c, err := config.Load()
	require.NoError(t, err)

	c.Store.Path = filepath.Join(dir, "players.csv")
	c.Report.Path = filepath.Join(dir, "statistics_report.txt")
	c.Fetch.MinDelayMS = 0
	c.Fetch.DelayIncrementMS = 0
	c.Fetch.MaxDelayMS = 0
	return c, dir
}

// runCommand executes c's RunE with a background context and returns what
// it printed.
func runCommand(t *testing.T, c *cobra.Command) (string, error) {
	t.Helper()
	var out bytes.Buffer
	c.SetOut(&out)
	c.SetContext(context.Background())
	t.Cleanup(func() {
		c.SetOut(nil)
		c.SetContext(context.TODO())
	})
	err := c.RunE(c, nil)
	return out.String(), err
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}
