// ABOUTME: Test helpers: a migrated SQLite store in a temp dir, and advisory JSON fixtures.
// ABOUTME: Use NewTestStore(t) in tests that need a real database.
package testutil

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/hmarr/advisories-analysis/internal/store"
)

// NewTestStore opens a fresh store in t.TempDir() with the schema applied.
// The store is closed via t.Cleanup.
func NewTestStore(t *testing.T) *store.Store {
	t.Helper()
	ctx := context.Background()

	st, err := store.Open(ctx, filepath.Join(t.TempDir(), "advisories.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := st.Close(); err != nil {
			t.Logf("close store: %v", err)
		}
	})

	if err := st.CreateSchema(ctx); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return st
}

// Package is a (ecosystem, name) pair for AdvisoryJSON.
type Package struct {
	Ecosystem string
	Name      string
}

// AdvisoryJSON returns a minimal well-formed advisory document with one
// affected entry per package, each carrying an ECOSYSTEM range.
func AdvisoryJSON(t *testing.T, id string, pkgs ...Package) []byte {
	t.Helper()

	affected := make([]map[string]any, 0, len(pkgs))
	for _, p := range pkgs {
		affected = append(affected, map[string]any{
			"package": map[string]any{"ecosystem": p.Ecosystem, "name": p.Name},
			"ranges": []any{map[string]any{
				"type":   "ECOSYSTEM",
				"events": []any{map[string]string{"introduced": "0"}, map[string]string{"fixed": "1.0.1"}},
			}},
			"versions": []string{"1.0.0"},
		})
	}
	doc := map[string]any{
		"id":       id,
		"modified": "2024-01-01T00:00:00Z",
		"aliases":  []string{"CVE-2024-0001"},
		"summary":  "summary of " + id,
		"affected": affected,
		"database_specific": map[string]any{
			"cwe_ids":         []string{"CWE-79"},
			"severity":        "HIGH",
			"github_reviewed": true,
		},
	}
	b, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal advisory fixture: %v", err)
	}
	return b
}

// WriteFile writes content to dir/name, creating parent directories, and
// returns the full path.
func WriteFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
