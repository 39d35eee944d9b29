// ABOUTME: Ingest pipeline: parse pool -> batcher -> single writer loop, with per-run stats.
// ABOUTME: Failures are logged and counted; only cancellation aborts a run.
package ingest

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hmarr/advisories-analysis/internal/feed/osv"
	"github.com/hmarr/advisories-analysis/internal/store"
	"github.com/hmarr/advisories-analysis/internal/worker"
)

// Writer commits a batch of records atomically: either every record is
// stored or none is. *store.Store implements it.
type Writer interface {
	WriteBatch(ctx context.Context, batch []store.Record) error
}

// Options configures a Pipeline. Zero values select the defaults.
type Options struct {
	// BatchSize is the number of advisories per transaction.
	BatchSize int
	// Workers bounds parse concurrency; 0 means GOMAXPROCS.
	Workers int
	// RowFallback retries each advisory of a failed batch on its own.
	RowFallback bool
	// Parse overrides the file parser. Nil means osv.ParseFile.
	Parse    worker.ParseFunc
	Observer Observer
	Logger   *slog.Logger
}

// Pipeline parses advisory files concurrently, groups the results into
// batches, and funnels every batch through a single writer loop.
type Pipeline struct {
	w           Writer
	pool        *worker.Pool
	batchSize   int
	rowFallback bool
	obs         Observer
	log         *slog.Logger
}

// New returns a Pipeline writing to w.
func New(w Writer, opts Options) *Pipeline {
	p := &Pipeline{
		w:           w,
		pool:        worker.New(opts.Workers, opts.Parse),
		batchSize:   opts.BatchSize,
		rowFallback: opts.RowFallback,
		obs:         Observers(opts.Observer),
		log:         opts.Logger,
	}
	if p.batchSize < 1 {
		p.batchSize = DefaultBatchSize
	}
	if p.log == nil {
		p.log = slog.Default()
	}
	return p
}

// Run ingests every file in paths. Per-file and per-batch failures are
// logged and counted in the returned Stats; they never stop the run. The
// error is non-nil only when ctx is cancelled, in which case batches not yet
// written are counted as dropped.
func (p *Pipeline) Run(ctx context.Context, paths []string) (Stats, error) {
	start := time.Now()
	stats := Stats{Files: len(paths)}

	// Counted on the batching goroutine; read only after batches is closed.
	var parsed, parseFailed int
	onResult := func(r worker.Result) {
		p.obs.FileParsed(r.Path, r.Err)
		if r.OK() {
			parsed++
			return
		}
		parseFailed++
		p.log.Warn("parse advisory", "path", r.Path, "error", r.Err)
	}

	batches := Batch(p.pool.Run(ctx, paths), p.batchSize, onResult)
	for batch := range batches {
		if ctx.Err() != nil {
			stats.AdvisoriesDropped += len(batch)
			continue
		}
		p.writeBatch(ctx, batch, &stats)
	}

	stats.Parsed = parsed
	stats.ParseFailed = parseFailed
	stats.Duration = time.Since(start)

	if err := ctx.Err(); err != nil {
		return stats, err
	}
	return stats, nil
}

func (p *Pipeline) writeBatch(ctx context.Context, batch []*osv.Advisory, stats *Stats) {
	records := make([]store.Record, 0, len(batch))
	for _, adv := range batch {
		rec, err := Normalize(adv)
		if err != nil {
			stats.NormalizeFailed++
			p.log.Warn("normalize advisory", "id", adv.ID, "error", err)
			continue
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return
	}

	res := p.write(ctx, records, false)
	if res.Err == nil {
		stats.BatchesCommitted++
		stats.AdvisoriesWritten += res.Advisories
		stats.PackagesWritten += res.Packages
		return
	}

	stats.BatchesFailed++
	p.log.Error("write batch",
		"batch_size", res.Advisories,
		"first_id", records[0].Advisory.GHSA,
		"error", res.Err,
	)
	if !p.rowFallback || errors.Is(res.Err, context.Canceled) || errors.Is(res.Err, context.DeadlineExceeded) {
		stats.AdvisoriesDropped += len(records)
		return
	}

	for _, rec := range records {
		res := p.write(ctx, []store.Record{rec}, true)
		if res.Err != nil {
			stats.AdvisoriesDropped++
			p.log.Warn("write advisory", "id", rec.Advisory.GHSA, "error", res.Err)
			continue
		}
		stats.AdvisoriesWritten++
		stats.PackagesWritten += res.Packages
	}
}

func (p *Pipeline) write(ctx context.Context, records []store.Record, fallback bool) BatchResult {
	res := BatchResult{Advisories: len(records), RowFallback: fallback}
	for _, rec := range records {
		res.Packages += len(rec.Packages)
	}
	begin := time.Now()
	res.Err = p.w.WriteBatch(ctx, records)
	res.Duration = time.Since(begin)
	p.obs.BatchWritten(res)
	return res
}
