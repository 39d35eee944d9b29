package ingest

import (
	"log/slog"
	"time"
)

// Stats summarizes a pipeline run.
type Stats struct {
	Files             int
	Parsed            int
	ParseFailed       int
	NormalizeFailed   int
	BatchesCommitted  int
	BatchesFailed     int
	AdvisoriesWritten int
	PackagesWritten   int
	AdvisoriesDropped int
	Duration          time.Duration
}

// LogValue implements slog.LogValuer.
func (s Stats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("files", s.Files),
		slog.Int("parsed", s.Parsed),
		slog.Int("parse_failed", s.ParseFailed),
		slog.Int("normalize_failed", s.NormalizeFailed),
		slog.Int("batches_committed", s.BatchesCommitted),
		slog.Int("batches_failed", s.BatchesFailed),
		slog.Int("advisories_written", s.AdvisoriesWritten),
		slog.Int("packages_written", s.PackagesWritten),
		slog.Int("advisories_dropped", s.AdvisoriesDropped),
		slog.Duration("duration", s.Duration),
	)
}
