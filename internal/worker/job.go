// Package worker runs the parse stage of an import: a bounded pool of
// goroutines, each reading and decoding one advisory file at a time.
//
// Workers share nothing but the read-only path list. Every path yields exactly
// one Result; a file that cannot be opened or decoded is reported through
// Result.Err and never stops the pool.
package worker

import (
	"errors"

	"github.com/hmarr/advisories-analysis/internal/feed/osv"
)

// ErrNoAdvisory is the Result.Err of a parse that returned neither an
// advisory nor an error.
var ErrNoAdvisory = errors.New("parser returned no advisory")

// ParseFunc reads and decodes the advisory stored at path.
type ParseFunc func(path string) (*osv.Advisory, error)

// Result is the outcome of parsing one file. Exactly one of Advisory and Err
// is set.
type Result struct {
	Path     string
	Advisory *osv.Advisory
	Err      error
}

// OK reports whether the file parsed successfully.
func (r Result) OK() bool { return r.Err == nil }
