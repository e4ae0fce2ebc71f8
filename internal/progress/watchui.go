package progress

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/term"

	"github.com/telegram-files/tfsync/internal/constants"
	"github.com/telegram-files/tfsync/internal/models"
)

// WatchUI shows one mpb bar per record that is downloading or paused. Sync
// is fed with store snapshots; bars are added, advanced and finished to
// match the records' reported status.
type WatchUI struct {
	progress   *mpb.Progress
	out        io.Writer
	isTerminal bool

	mu   sync.Mutex
	bars map[models.RecordKey]*recordBar

	completed int
	failed    int
	finished  []finishedRecord

	// OnFinish, when set, is called outside the lock for every tracked
	// record that completes or fails. Cancelled records are not reported.
	OnFinish func(rec models.FileRecord, err error)
}

type finishedRecord struct {
	rec models.FileRecord
	err error
}

type recordBar struct {
	bar    *mpb.Bar
	rec    models.FileRecord
	paused atomic.Bool // read by the render goroutine
}

// NewWatchUI renders to stderr, with bars when stderr is a terminal.
func NewWatchUI() *WatchUI {
	isTerminal := term.IsTerminal(int(os.Stderr.Fd()))
	if isTerminal {
		enableANSI(os.Stderr)
	}
	return newWatchUI(os.Stderr, isTerminal)
}

func newWatchUI(out io.Writer, isTerminal bool) *WatchUI {
	var p *mpb.Progress
	if isTerminal {
		p = mpb.New(
			mpb.WithOutput(out),
			mpb.WithRefreshRate(constants.ProgressUpdateInterval),
			mpb.WithWidth(100),
		)
	} else {
		p = mpb.New(mpb.WithOutput(io.Discard))
	}
	return &WatchUI{
		progress:   p,
		out:        out,
		isTerminal: isTerminal,
		bars:       make(map[models.RecordKey]*recordBar),
	}
}

// Sync reconciles the bars with records.
func (u *WatchUI) Sync(records []models.FileRecord) {
	u.mu.Lock()
	u.sync(records)
	finished := u.finished
	u.finished = nil
	u.mu.Unlock()

	if u.OnFinish == nil {
		return
	}
	for _, f := range finished {
		u.OnFinish(f.rec, f.err)
	}
}

var errCancelled = errors.New("cancelled")

func (u *WatchUI) sync(records []models.FileRecord) {
	seen := make(map[models.RecordKey]bool, len(records))
	for _, rec := range records {
		key := rec.Key()
		seen[key] = true
		rb, tracked := u.bars[key]

		switch rec.DownloadStatus {
		case models.StatusDownloading, models.StatusPaused:
			if !tracked {
				rb = u.addBar(rec)
			}
			u.advance(rb, rec)
		case models.StatusCompleted:
			if tracked {
				u.finish(rb, rec, nil)
			}
		case models.StatusError:
			if tracked {
				u.finish(rb, rec, errors.New("download failed"))
			}
		case models.StatusIdle:
			if tracked {
				u.finish(rb, rec, errCancelled)
			}
		}
	}

	// Records that left the view (filter change) stop being tracked.
	for key, rb := range u.bars {
		if !seen[key] {
			if rb.bar != nil {
				rb.bar.Abort(true)
			}
			delete(u.bars, key)
		}
	}
}

func (u *WatchUI) addBar(rec models.FileRecord) *recordBar {
	rb := &recordBar{rec: rec}
	u.bars[rec.Key()] = rb

	if !u.isTerminal {
		fmt.Fprintf(u.out, "Downloading %s (%.1f MiB)\n", label(rec), mib(rec.Size))
		return rb
	}

	name := label(rec)
	rb.bar = u.progress.New(rec.Size,
		mpb.BarStyle().Lbound("[").Filler("█").Tip("█").Padding("░").Rbound("]"),
		mpb.PrependDecorators(
			decor.Any(func(decor.Statistics) string {
				if rb.paused.Load() {
					return name + " (paused)"
				}
				return name
			}, decor.WCSyncSpaceR),
		),
		mpb.AppendDecorators(
			decor.CountersKibiByte("% .1f / % .1f", decor.WCSyncSpace),
			decor.Name("  "),
			decor.Percentage(decor.WCSyncSpace),
		),
		mpb.BarRemoveOnComplete(),
	)
	return rb
}

func (u *WatchUI) advance(rb *recordBar, rec models.FileRecord) {
	rb.rec = rec
	paused := rec.DownloadStatus == models.StatusPaused
	wasPaused := rb.paused.Swap(paused)
	if rb.bar != nil {
		rb.bar.SetCurrent(min(rec.Progress, rec.Size))
	} else if paused != wasPaused {
		state := "resumed"
		if paused {
			state = "paused"
		}
		fmt.Fprintf(u.out, "%s %s at %.0f%%\n", label(rec), state, rec.Percent())
	}
}

func (u *WatchUI) finish(rb *recordBar, rec models.FileRecord, err error) {
	delete(u.bars, rec.Key())

	var msg string
	if err == nil {
		u.completed++
		if rb.bar != nil {
			rb.bar.SetTotal(rec.Size, true)
		}
		dest := rec.LocalPath
		if dest == "" {
			dest = label(rec)
		}
		msg = fmt.Sprintf("✓ %s (%.1f MiB)\n", truncatePath(dest, 2), mib(rec.Size))
	} else {
		u.failed++
		if rb.bar != nil {
			rb.bar.Abort(false)
		}
		msg = fmt.Sprintf("✗ %s: %v\n", label(rec), err)
	}
	fmt.Fprint(u.Writer(), msg)

	if err != errCancelled {
		u.finished = append(u.finished, finishedRecord{rec: rec, err: err})
	}
}

// Active returns how many records have a bar.
func (u *WatchUI) Active() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.bars)
}

// Totals returns how many tracked downloads completed and failed.
func (u *WatchUI) Totals() (completed, failed int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.completed, u.failed
}

// Writer returns a writer that prints above the bars.
func (u *WatchUI) Writer() io.Writer {
	if u.isTerminal {
		return u.progress
	}
	return u.out
}

// Close aborts remaining bars and waits for the renderer to stop.
func (u *WatchUI) Close() {
	u.mu.Lock()
	for key, rb := range u.bars {
		if rb.bar != nil {
			rb.bar.Abort(true)
		}
		delete(u.bars, key)
	}
	u.mu.Unlock()
	u.progress.Wait()
}

// IsTerminal reports whether bars are rendered.
func (u *WatchUI) IsTerminal() bool {
	return u.isTerminal
}

func mib(n int64) float64 {
	return float64(n) / (1024 * 1024)
}

// truncatePath keeps the last maxComponents elements of path.
func truncatePath(path string, maxComponents int) string {
	parts := strings.Split(filepath.ToSlash(path), "/")
	if len(parts) <= maxComponents {
		return filepath.Base(path)
	}
	return "…/" + strings.Join(parts[len(parts)-maxComponents:], "/")
}
