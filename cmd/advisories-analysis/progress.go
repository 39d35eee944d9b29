package main

import (
	"os"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/hmarr/advisories-analysis/internal/ingest"
)

// progressObserver drives a terminal progress bar from pipeline
// notifications. A nil *progressObserver is valid and does nothing.
type progressObserver struct {
	bar *progressbar.ProgressBar
}

func newProgressObserver(files int) *progressObserver {
	return &progressObserver{bar: progressbar.NewOptions(files,
		progressbar.OptionSetDescription("parsing advisories"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("files"),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionFullWidth(),
		progressbar.OptionClearOnFinish(),
	)}
}

// observer returns p as an ingest.Observer, or nil when p is nil so that
// ingest.Observers can skip it.
func (p *progressObserver) observer() ingest.Observer {
	if p == nil {
		return nil
	}
	return p
}

func (p *progressObserver) FileParsed(string, error) {
	_ = p.bar.Add(1)
}

func (p *progressObserver) BatchWritten(res ingest.BatchResult) {
	if res.Err != nil {
		p.bar.Describe("parsing advisories (batch write failed, see log)")
	}
}

func (p *progressObserver) finish() {
	if p == nil {
		return
	}
	_ = p.bar.Finish()
}
