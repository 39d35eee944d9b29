// Package metrics exposes ingest progress as Prometheus collectors. The
// importer is a batch job, so instead of serving /metrics it writes the
// registry to a node_exporter textfile when the run finishes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hmarr/advisories-analysis/internal/ingest"
)

const namespace = "advisories_import"

// Recorder collects ingest metrics on its own registry. It implements
// ingest.Observer.
type Recorder struct {
	reg *prometheus.Registry

	files         *prometheus.CounterVec
	batches       *prometheus.CounterVec
	rows          *prometheus.CounterVec
	batchDuration prometheus.Histogram
	lastSuccess   prometheus.Gauge
}

var _ ingest.Observer = (*Recorder)(nil)

// New returns a Recorder with every collector registered.
func New() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_total",
			Help:      "Advisory files processed, by parse result.",
		}, []string{"result"}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Write transactions attempted, by mode and result.",
		}, []string{"mode", "result"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_written_total",
			Help:      "Rows committed, by table.",
		}, []string{"table"}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Duration of write transactions.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last run that finished without cancellation.",
		}),
	}
	r.reg.MustRegister(r.files, r.batches, r.rows, r.batchDuration, r.lastSuccess)
	return r
}

// Registry returns the registry holding the collectors.
func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

func (r *Recorder) FileParsed(_ string, err error) {
	r.files.WithLabelValues(resultLabel(err)).Inc()
}

func (r *Recorder) BatchWritten(res ingest.BatchResult) {
	mode := "batch"
	if res.RowFallback {
		mode = "row"
	}
	r.batches.WithLabelValues(mode, resultLabel(res.Err)).Inc()
	r.batchDuration.Observe(res.Duration.Seconds())
	if res.Err != nil {
		return
	}
	r.rows.WithLabelValues("advisories").Add(float64(res.Advisories))
	r.rows.WithLabelValues("affected_packages").Add(float64(res.Packages))
}

// MarkSuccess records the current time as the last successful run.
func (r *Recorder) MarkSuccess() { r.lastSuccess.SetToCurrentTime() }

// WriteTextfile writes the registry in the text exposition format to path,
// atomically, for the node_exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.reg)
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
