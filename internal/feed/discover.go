// Package feed locates advisory documents on disk. The GitHub Advisory
// Database checkout is laid out as nested directories of JSON files, one
// advisory per file; Discover flattens that tree into a list of paths for the
// parse stage. Parsing itself lives in the osv subpackage.
package feed

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
)

// DiscoveryError reports a directory entry that could not be traversed. It is
// logged and the entry skipped; it never aborts a walk below the root.
type DiscoveryError struct {
	Path string
	Err  error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("discover %s: %v", e.Path, e.Err)
}

func (e *DiscoveryError) Unwrap() error { return e.Err }

// Discover walks root recursively and returns the path of every regular file
// with a ".json" extension. Symlinks are not followed. Unreadable entries
// below root are logged as a *DiscoveryError and skipped; an unreadable root
// is returned as an error. The walk stops early if ctx is cancelled.
func Discover(ctx context.Context, root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == root {
				return err
			}
			slog.Warn("skipping unreadable path", "error", &DiscoveryError{Path: path, Err: err})
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && isAdvisoryFile(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, &DiscoveryError{Path: root, Err: err}
	}
	return paths, nil
}

// isAdvisoryFile reports whether path names an advisory document.
// The advisory database stores each record as GHSA-xxxx-xxxx-xxxx.json.
func isAdvisoryFile(path string) bool {
	return filepath.Ext(path) == ".json"
}
