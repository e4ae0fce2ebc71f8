// Package progress renders download progress reported by the push channel:
// a single progressbar for following one file and mpb bars for watching
// every active download.
package progress

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"

	"github.com/telegram-files/tfsync/internal/models"
	"github.com/telegram-files/tfsync/internal/util/sanitize"
)

// ErrDownloadFailed is returned by Follower when the followed file reports
// the error status.
var ErrDownloadFailed = errors.New("download failed")

// Reporter is the interface for reporting progress of a single transfer.
type Reporter interface {
	Start(total int64, description string)
	Update(current int64)
	Finish()
	Error(err error)
	SetDescription(desc string)
}

// CLIProgress implements Reporter with a progressbar on stderr.
type CLIProgress struct {
	bar *progressbar.ProgressBar
	out io.Writer
}

// NewCLIProgress creates a new CLI progress reporter.
func NewCLIProgress() *CLIProgress {
	return &CLIProgress{out: os.Stderr}
}

// Start initializes the progress bar with total size and description.
func (p *CLIProgress) Start(total int64, description string) {
	p.bar = progressbar.NewOptions64(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(p.out),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(50),
		progressbar.OptionThrottle(100),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(p.out, "\n")
		}),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// Update moves the bar to current.
func (p *CLIProgress) Update(current int64) {
	if p.bar != nil {
		_ = p.bar.Set64(current)
	}
}

// Finish completes the progress bar.
func (p *CLIProgress) Finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}

// Error displays an error message.
func (p *CLIProgress) Error(err error) {
	if err != nil {
		fmt.Fprintf(p.out, "\nError: %v\n", err)
	}
}

// SetDescription updates the progress bar description.
func (p *CLIProgress) SetDescription(desc string) {
	if p.bar != nil {
		p.bar.Describe(desc)
	}
}

// NoOpProgress is a Reporter that does nothing, for non-interactive output.
type NoOpProgress struct{}

// NewNoOpProgress creates a new no-op progress reporter.
func NewNoOpProgress() *NoOpProgress {
	return &NoOpProgress{}
}

func (p *NoOpProgress) Start(total int64, description string) {}
func (p *NoOpProgress) Update(current int64)                  {}
func (p *NoOpProgress) Finish()                               {}
func (p *NoOpProgress) Error(err error)                       {}
func (p *NoOpProgress) SetDescription(desc string)            {}

// Follower drives a Reporter from successive snapshots of one record.
type Follower struct {
	reporter Reporter
	started  bool
	paused   bool
}

// NewFollower creates a follower reporting to r.
func NewFollower(r Reporter) *Follower {
	return &Follower{reporter: r}
}

// Observe feeds the latest state of the followed record. It returns true
// once the record reached a terminal status, with ErrDownloadFailed for the
// error status.
func (f *Follower) Observe(rec models.FileRecord) (bool, error) {
	if !f.started {
		f.reporter.Start(rec.Size, label(rec))
		f.started = true
	}

	switch rec.DownloadStatus {
	case models.StatusCompleted:
		f.reporter.Update(rec.Size)
		f.reporter.Finish()
		return true, nil
	case models.StatusError:
		err := fmt.Errorf("%s: %w", label(rec), ErrDownloadFailed)
		f.reporter.Error(err)
		return true, err
	}

	paused := rec.DownloadStatus == models.StatusPaused
	if paused != f.paused {
		f.paused = paused
		desc := label(rec)
		if paused {
			desc += " (paused)"
		}
		f.reporter.SetDescription(desc)
	}
	f.reporter.Update(rec.Progress)
	return false, nil
}

// label is the terminal-safe name of rec.
func label(rec models.FileRecord) string {
	return sanitize.Line(rec.DisplayName())
}
