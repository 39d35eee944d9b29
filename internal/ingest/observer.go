package ingest

import "time"

// Observer receives progress notifications from a pipeline run. Methods are
// called from pipeline goroutines, one call at a time per method, and must not
// block for long.
type Observer interface {
	// FileParsed is called once per input file; err is nil on success.
	FileParsed(path string, err error)
	// BatchWritten is called after every write attempt.
	BatchWritten(BatchResult)
}

// BatchResult describes one write attempt.
type BatchResult struct {
	Advisories int
	Packages   int
	Duration   time.Duration
	// RowFallback marks a single-advisory retry after its batch failed.
	RowFallback bool
	Err         error
}

// NopObserver ignores all notifications.
type NopObserver struct{}

func (NopObserver) FileParsed(string, error) {}
func (NopObserver) BatchWritten(BatchResult) {}

type multiObserver []Observer

// Observers fans notifications out to every non-nil observer in obs.
func Observers(obs ...Observer) Observer {
	var m multiObserver
	for _, o := range obs {
		if o != nil {
			m = append(m, o)
		}
	}
	if len(m) == 0 {
		return NopObserver{}
	}
	if len(m) == 1 {
		return m[0]
	}
	return m
}

func (m multiObserver) FileParsed(path string, err error) {
	for _, o := range m {
		o.FileParsed(path, err)
	}
}

func (m multiObserver) BatchWritten(r BatchResult) {
	for _, o := range m {
		o.BatchWritten(r)
	}
}
