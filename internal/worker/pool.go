package worker

import (
	"context"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/hmarr/advisories-analysis/internal/feed/osv"
)

// Pool parses advisory files concurrently with at most Workers() parses in
// flight.
type Pool struct {
	workers int
	parse   ParseFunc
}

// New creates a Pool. workers <= 0 selects runtime.GOMAXPROCS(0); a nil parse
// selects osv.ParseFile.
func New(workers int, parse ParseFunc) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if parse == nil {
		parse = osv.ParseFile
	}
	return &Pool{workers: workers, parse: parse}
}

// Workers returns the pool size.
func (p *Pool) Workers() int { return p.workers }

// Run parses every path and sends one Result per path on the returned channel
// in completion order, which bears no relation to the order of paths. The
// channel is closed after the last parse finishes.
//
// Once ctx is cancelled no further parses start and results still in flight
// may be dropped. Callers must drain the channel until it is closed.
func (p *Pool) Run(ctx context.Context, paths []string) <-chan Result {
	out := make(chan Result, p.workers)

	go func() {
		defer close(out)

		slog.Debug("parse pool started", "workers", p.workers, "files", len(paths))

		// A plain Group, not WithContext: per-file errors travel in Result
		// and must not cancel sibling parses.
		var g errgroup.Group
		g.SetLimit(p.workers)

		for _, path := range paths {
			if ctx.Err() != nil {
				break
			}
			g.Go(func() error {
				adv, err := p.parse(path)
				res := Result{Path: path, Advisory: adv, Err: err}
				switch {
				case err != nil:
					res.Advisory = nil
				case adv == nil:
					res.Err = &osv.ParseError{Path: path, Err: ErrNoAdvisory}
				}
				select {
				case out <- res:
				case <-ctx.Done():
				}
				return nil
			})
		}
		_ = g.Wait() // goroutines never return errors

		slog.Debug("parse pool stopped", "workers", p.workers)
	}()

	return out
}
