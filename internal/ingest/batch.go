package ingest

import (
	"github.com/hmarr/advisories-analysis/internal/feed/osv"
	"github.com/hmarr/advisories-analysis/internal/worker"
)

// DefaultBatchSize is the number of advisories committed per transaction.
const DefaultBatchSize = 1000

// Batch groups successful parse results into batches of size advisories, in
// arrival order, and sends them on the returned channel. The final batch may
// be smaller. Failed results are never batched. onResult, if non-nil, sees
// every result, successful or not, before it is batched or dropped.
//
// The returned channel is closed once results is closed and drained.
func Batch(results <-chan worker.Result, size int, onResult func(worker.Result)) <-chan []*osv.Advisory {
	if size < 1 {
		size = DefaultBatchSize
	}
	out := make(chan []*osv.Advisory, 1)

	go func() {
		defer close(out)

		batch := make([]*osv.Advisory, 0, size)
		for r := range results {
			if onResult != nil {
				onResult(r)
			}
			if !r.OK() || r.Advisory == nil {
				continue
			}
			batch = append(batch, r.Advisory)
			if len(batch) == size {
				out <- batch
				batch = make([]*osv.Advisory, 0, size)
			}
		}
		if len(batch) > 0 {
			out <- batch
		}
	}()

	return out
}
