package state

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/telegram-files/tfsync/internal/events"
	"github.com/telegram-files/tfsync/internal/logging"
	"github.com/telegram-files/tfsync/internal/models"
)

// ErrFetchInFlight is returned by Refresh when a fetch of the current epoch
// is already outstanding; the refresh did not run.
var ErrFetchInFlight = errors.New("a file list fetch is already in flight")

// PageSource fetches one page of the file list.
type PageSource interface {
	FetchPage(ctx context.Context, filter models.FilterSpec, cursor string) (models.Page, error)
}

// PageSourceFunc adapts a function to PageSource.
type PageSourceFunc func(ctx context.Context, filter models.FilterSpec, cursor string) (models.Page, error)

func (f PageSourceFunc) FetchPage(ctx context.Context, filter models.FilterSpec, cursor string) (models.Page, error) {
	return f(ctx, filter, cursor)
}

// Pager sequences page fetches against the store's current filter and
// cursor. At most one fetch per epoch is outstanding; a fetch for a newer
// epoch may overlap an older one, whose result is then discarded.
type Pager struct {
	store    *Store
	source   PageSource
	eventBus *events.EventBus
	logger   *logging.Logger

	mu       sync.Mutex
	inFlight map[uint64]bool
	stalled  error

	discarded atomic.Int64
}

// NewPager creates a pager feeding store from source.
func NewPager(store *Store, source PageSource, eventBus *events.EventBus, logger *logging.Logger) *Pager {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Pager{
		store:    store,
		source:   source,
		eventBus: eventBus,
		logger:   logger.Component("pager"),
		inFlight: make(map[uint64]bool),
	}
}

// begin claims the fetch slot of epoch.
func (p *Pager) begin(epoch uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inFlight[epoch] {
		return false
	}
	p.inFlight[epoch] = true
	return true
}

func (p *Pager) end(epoch uint64) {
	p.mu.Lock()
	delete(p.inFlight, epoch)
	p.mu.Unlock()
}

// LoadMore fetches the next page of the current epoch and merges it. It is a
// no-op when a fetch of the current epoch is already in flight or there are
// no more pages. A result that arrives after the filter changed is dropped.
// A fetch error leaves the view unchanged, marks the pager stalled and is
// returned.
func (p *Pager) LoadMore(ctx context.Context) error {
	filter, cur := p.store.NextPage()
	if !cur.HasMore {
		return nil
	}
	if err := p.fetch(ctx, filter, cur); !errors.Is(err, ErrFetchInFlight) {
		return err
	}
	return nil
}

// Refresh re-fetches the first page of the current epoch and merges it in
// place. Records already in view keep their position and any live status
// that is newer than the request or not behind the fetched one. It returns
// ErrFetchInFlight without fetching while another fetch of the epoch is
// outstanding.
func (p *Pager) Refresh(ctx context.Context) error {
	filter, cur := p.store.NextPage()
	cur.Cursor = ""
	cur.HasMore = true
	return p.fetch(ctx, filter, cur)
}

func (p *Pager) fetch(ctx context.Context, filter models.FilterSpec, cur models.PageCursor) error {
	if !p.begin(cur.Epoch) {
		p.logger.Debug().Uint64("epoch", cur.Epoch).Msg("fetch already in flight")
		return ErrFetchInFlight
	}
	defer p.end(cur.Epoch)

	p.eventBus.Publish(NewFileListLoadingEvent(cur.Epoch, true))
	defer p.eventBus.Publish(NewFileListLoadingEvent(cur.Epoch, false))

	page, err := p.source.FetchPage(ctx, filter, cur.Cursor)
	if err != nil {
		if p.store.Epoch() != cur.Epoch {
			p.discarded.Add(1)
			p.logger.Debug().Err(err).Uint64("epoch", cur.Epoch).Msg("ignoring error of superseded fetch")
			return nil
		}
		p.setStalled(err)
		p.logger.Warn().Err(err).Uint64("epoch", cur.Epoch).Msg("file list fetch failed")
		p.eventBus.Publish(NewFileListErrorEvent(cur.Epoch, err))
		return fmt.Errorf("load page: %w", err)
	}

	switch err := p.store.AppendPage(cur, page); {
	case errors.Is(err, ErrStaleEpoch), errors.Is(err, ErrCursorMismatch):
		p.discarded.Add(1)
		return nil
	case err != nil:
		return err
	}

	p.setStalled(nil)
	return nil
}

func (p *Pager) setStalled(err error) {
	p.mu.Lock()
	p.stalled = err
	p.mu.Unlock()
}

// Loading reports whether a fetch of the current epoch is in flight.
func (p *Pager) Loading() bool {
	epoch := p.store.Epoch()
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inFlight[epoch]
}

// Stalled returns the error of the last failed fetch, or nil once a later
// fetch succeeds.
func (p *Pager) Stalled() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stalled
}

// Discarded returns how many fetch results were dropped as superseded.
func (p *Pager) Discarded() int64 {
	return p.discarded.Load()
}

// HasMore reports whether more pages exist in the current epoch.
func (p *Pager) HasMore() bool {
	return p.store.Cursor().HasMore
}
