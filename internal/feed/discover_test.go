package feed

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o600))
}

func TestDiscoverFindsNestedJSON(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	want := []string{
		filepath.Join(root, "advisories", "github-reviewed", "2022", "05", "GHSA-aaaa", "GHSA-aaaa.json"),
		filepath.Join(root, "advisories", "unreviewed", "GHSA-bbbb.json"),
		filepath.Join(root, "top.json"),
	}
	for _, p := range want {
		writeFile(t, p)
	}
	writeFile(t, filepath.Join(root, "README.md"))
	writeFile(t, filepath.Join(root, "advisories", "notes.json.bak"))
	writeFile(t, filepath.Join(root, "advisories", "UPPER.JSON"))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "dir.json"), 0o755))

	got, err := Discover(context.Background(), root)
	require.NoError(t, err)
	sort.Strings(got)
	sort.Strings(want)
	assert.Equal(t, want, got)
}

func TestDiscoverEmptyTree(t *testing.T) {
	t.Parallel()

	got, err := Discover(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDiscoverMissingRoot(t *testing.T) {
	t.Parallel()

	_, err := Discover(context.Background(), filepath.Join(t.TempDir(), "nope"))
	var de *DiscoveryError
	require.ErrorAs(t, err, &de)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDiscoverCancelled(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.json"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Discover(ctx, root)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsAdvisoryFile(t *testing.T) {
	t.Parallel()

	assert.True(t, isAdvisoryFile("GHSA-xxxx.json"))
	assert.False(t, isAdvisoryFile("GHSA-xxxx.JSON"))
	assert.False(t, isAdvisoryFile("GHSA-xxxx.json.gz"))
	assert.False(t, isAdvisoryFile("json"))
}
