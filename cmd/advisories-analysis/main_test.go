// ABOUTME: CLI tests: full import through the root command, store reset, and the stats report.
package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hmarr/advisories-analysis/internal/store"
	"github.com/hmarr/advisories-analysis/internal/testutil"
)

// These tests replace the default logger and change directory, so they do
// not run in parallel.

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func advisoryTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "advisories/github-reviewed/GHSA-1111.json", testutil.AdvisoryJSON(t, "GHSA-1111",
		testutil.Package{Ecosystem: "npm", Name: "lodash"},
		testutil.Package{Ecosystem: "PyPI", Name: "requests"},
	))
	testutil.WriteFile(t, dir, "advisories/github-reviewed/GHSA-2222.json", []byte("{"))
	testutil.WriteFile(t, dir, "advisories/unreviewed/GHSA-3333.json", testutil.AdvisoryJSON(t, "GHSA-3333"))
	return dir
}

func TestImportReplacesExistingDatabase(t *testing.T) {
	t.Chdir(t.TempDir())
	data := advisoryTree(t)
	db := filepath.Join(t.TempDir(), "out", "advisories.db")
	metricsFile := filepath.Join(t.TempDir(), "import.prom")

	for range 2 {
		_, err := execute(t, "import", "--data", data, "--db", db, "--no-progress", "--batch-size", "1", "--metrics-textfile", metricsFile)
		require.NoError(t, err)
	}

	ctx := context.Background()
	st, err := store.Open(ctx, db)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	n, err := st.CountAdvisories(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = st.CountAffectedPackages(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = os.Stat(metricsFile)
	assert.NoError(t, err)
}

func TestRootCommandImports(t *testing.T) {
	t.Chdir(t.TempDir())
	db := filepath.Join(t.TempDir(), "advisories.db")
	t.Setenv("ADVISORY_DATA_PATH", advisoryTree(t))
	t.Setenv("ADVISORY_DB_PATH", db)
	t.Setenv("SHOW_PROGRESS", "false")

	_, err := execute(t)
	require.NoError(t, err)

	out, err := execute(t, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "advisories")
	assert.Contains(t, out, "npm")
	assert.Contains(t, out, "PyPI")
}

func TestImportMissingDataDirFails(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := execute(t, "import", "--data", filepath.Join(t.TempDir(), "nope"), "--db", filepath.Join(t.TempDir(), "a.db"), "--no-progress")
	require.Error(t, err)
}

func TestImportRejectsInvalidBatchSize(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := execute(t, "import", "--batch-size", "0")
	require.Error(t, err)
}

func TestMigrateIsRepeatable(t *testing.T) {
	t.Chdir(t.TempDir())
	db := filepath.Join(t.TempDir(), "advisories.db")

	_, err := execute(t, "migrate", "--db", db)
	require.NoError(t, err)
	_, err = execute(t, "migrate", "--db", db)
	require.NoError(t, err)
}

func TestStatsMissingDatabase(t *testing.T) {
	t.Chdir(t.TempDir())
	db := filepath.Join(t.TempDir(), "missing.db")

	_, err := execute(t, "stats", "--db", db)
	require.Error(t, err)
	_, statErr := os.Stat(db)
	assert.True(t, os.IsNotExist(statErr), "stats must not create the database")
}

func TestResetStore(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "a.db")

	require.NoError(t, resetStore(slog.Default(), path))
	assert.DirExists(t, filepath.Dir(path))

	require.NoError(t, os.WriteFile(path, []byte("old"), 0o600))
	require.NoError(t, os.WriteFile(path+"-journal", []byte("old"), 0o600))
	require.NoError(t, resetStore(slog.Default(), path))
	assert.NoFileExists(t, path)
	assert.NoFileExists(t, path+"-journal")
}
