package state

import (
	"errors"
	"sync"

	"github.com/telegram-files/tfsync/internal/events"
	"github.com/telegram-files/tfsync/internal/logging"
	"github.com/telegram-files/tfsync/internal/metrics"
	"github.com/telegram-files/tfsync/internal/models"
)

var (
	// ErrStaleEpoch is returned by AppendPage for a page requested under a
	// filter that has since been replaced.
	ErrStaleEpoch = errors.New("page belongs to a superseded epoch")

	// ErrCursorMismatch is returned by AppendPage for a page whose cursor is
	// neither the expected next cursor nor one already merged this epoch.
	ErrCursorMismatch = errors.New("page cursor does not match the expected cursor")
)

// entry is one record in view. live is set while the record's status was
// last written by the push channel rather than by a page; liveSeq is the
// delta sequence of that write.
type entry struct {
	rec     models.FileRecord
	live    bool
	liveSeq uint64
}

// Store is the canonical, deduplicated, ordered set of records in view for
// one filter epoch. It also owns the pagination cursor so that page results
// can be checked against the epoch and cursor they were requested for.
//
// The selection shares the store's mutex and is reconciled inside every
// mutation, so no reader observes a selected record that is not idle.
// Thread-safe for concurrent access.
type Store struct {
	eventBus *events.EventBus
	logger   *logging.Logger

	filter   models.FilterSpec
	epoch    uint64
	cursor   string // expected next cursor; "" is the first page
	hasMore  bool
	consumed map[string]bool // cursors merged in this epoch
	seq      uint64          // count of applied deltas, never reset

	order   []models.RecordKey
	entries map[models.RecordKey]*entry

	selection *Selection

	mu sync.RWMutex
}

// NewStore creates a store at epoch 1 for filter.
func NewStore(filter models.FilterSpec, eventBus *events.EventBus, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	s := &Store{
		eventBus: eventBus,
		logger:   logger.Component("store"),
	}
	s.selection = &Selection{store: s, members: make(map[models.RecordKey]struct{})}
	s.resetLocked(filter.Normalize())
	return s
}

// resetLocked starts a new epoch for filter.
func (s *Store) resetLocked(filter models.FilterSpec) {
	s.filter = filter
	s.epoch++
	s.cursor = ""
	s.hasMore = true
	s.consumed = make(map[string]bool)
	s.order = nil
	s.entries = make(map[models.RecordKey]*entry)
	metrics.Epoch.Set(float64(s.epoch))
	metrics.RecordsInView.Set(0)
}

// Selection returns the selection bound to this store.
func (s *Store) Selection() *Selection {
	return s.selection
}

// Replace discards all records and starts a new epoch for filter. It is a
// no-op returning false when filter equals the current filter.
func (s *Store) Replace(filter models.FilterSpec) bool {
	filter = filter.Normalize()

	s.mu.Lock()
	if filter == s.filter {
		s.mu.Unlock()
		return false
	}
	s.resetLocked(filter)
	epoch := s.epoch
	selChanged, members := s.selection.reconcileLocked()
	s.mu.Unlock()

	s.logger.Debug().Uint64("epoch", epoch).Str("search", filter.Search).
		Str("type", filter.Type).Str("status", filter.Status).Msg("filter replaced")
	s.publish(NewRecordsChangedEvent(epoch, ReasonReplace, 0, nil), selChanged, members)
	return true
}

// AppendPage merges a page fetched from cursor into the view.
//
// The page must belong to the current epoch and its cursor must be either the
// expected next cursor (the page is appended and the cursor advances) or a
// cursor already merged in this epoch (the page is a refresh: records are
// merged in place and the cursor stays). Anything else is rejected without
// touching the view.
func (s *Store) AppendPage(cursor models.PageCursor, page models.Page) error {
	records := dedupeLastWins(page.Records)

	s.mu.Lock()
	if cursor.Epoch != s.epoch {
		current := s.epoch
		s.mu.Unlock()
		metrics.PagesDiscarded.WithLabelValues("stale_epoch").Inc()
		s.logger.Debug().Uint64("page_epoch", cursor.Epoch).Uint64("epoch", current).Msg("discarding stale page")
		return ErrStaleEpoch
	}

	var reason string
	switch {
	case s.consumed[cursor.Cursor]:
		reason = ReasonRefresh
	case cursor.Cursor == s.cursor && s.hasMore:
		reason = ReasonAppend
	default:
		expected := s.cursor
		s.mu.Unlock()
		metrics.PagesDiscarded.WithLabelValues("cursor_mismatch").Inc()
		s.logger.Debug().Str("cursor", cursor.Cursor).Str("expected", expected).Msg("discarding page with unexpected cursor")
		return ErrCursorMismatch
	}

	keys := make([]models.RecordKey, 0, len(records))
	for _, rec := range records {
		key := rec.Key()
		keys = append(keys, key)
		if e, ok := s.entries[key]; ok {
			mergeFetched(e, rec, cursor.Seq)
			continue
		}
		s.entries[key] = &entry{rec: rec}
		s.order = append(s.order, key)
	}

	if reason == ReasonAppend {
		s.consumed[cursor.Cursor] = true
		s.cursor = page.NextCursor
		s.hasMore = page.HasMore
	}
	epoch, n := s.epoch, len(s.order)
	selChanged, members := s.selection.reconcileLocked()
	s.mu.Unlock()

	metrics.PagesMerged.WithLabelValues(reason).Inc()
	metrics.RecordsInView.Set(float64(n))
	s.publish(NewRecordsChangedEvent(epoch, reason, n, keys), selChanged, members)
	return nil
}

// mergeFetched overwrites e with a record re-fetched by a request issued at
// delta sequence fetchSeq. Display fields always take the fetched value. A
// live status is kept when it was applied after the request was issued, or
// when it is not behind the fetched one; when both report the same status
// the larger progress wins.
func mergeFetched(e *entry, fetched models.FileRecord, fetchSeq uint64) {
	prev := e.rec
	e.rec = fetched

	keep := e.live && (e.liveSeq > fetchSeq || prev.DownloadStatus.Stage() >= fetched.DownloadStatus.Stage())
	if !keep {
		e.live = false
		return
	}

	e.rec.DownloadStatus = prev.DownloadStatus
	if prev.DownloadStatus == fetched.DownloadStatus {
		e.rec.Progress = max(prev.Progress, fetched.Progress)
	} else {
		e.rec.Progress = prev.Progress
	}
	if e.rec.LocalPath == "" {
		e.rec.LocalPath = prev.LocalPath
	}
}

// dedupeLastWins collapses duplicate keys within one page. The surviving
// record is the last occurrence, placed at the first occurrence's position.
func dedupeLastWins(records []models.FileRecord) []models.FileRecord {
	pos := make(map[models.RecordKey]int, len(records))
	out := make([]models.FileRecord, 0, len(records))
	for _, rec := range records {
		key := rec.Key()
		if i, ok := pos[key]; ok {
			out[i] = rec
			continue
		}
		pos[key] = len(out)
		out = append(out, rec)
	}
	return out
}

// ApplyStatusDelta merges the supplied fields of delta into the matching
// record. It returns false, and drops the delta, when the record is not in
// view.
func (s *Store) ApplyStatusDelta(delta models.StatusDelta) bool {
	s.mu.Lock()
	e, ok := s.entries[delta.Key]
	if !ok {
		s.mu.Unlock()
		metrics.DeltasDropped.Inc()
		s.logger.Debug().Str("key", delta.Key.String()).Msg("dropping delta for record not in view")
		return false
	}
	delta.Apply(&e.rec)
	s.seq++
	e.live = true
	e.liveSeq = s.seq
	epoch, n := s.epoch, len(s.order)
	selChanged, members := s.selection.reconcileLocked()
	s.mu.Unlock()

	metrics.DeltasApplied.Inc()
	s.publish(NewRecordsChangedEvent(epoch, ReasonDelta, n, []models.RecordKey{delta.Key}), selChanged, members)
	return true
}

// publish sends the change events after the lock is released.
func (s *Store) publish(ev *RecordsChangedEvent, selChanged bool, members []models.RecordKey) {
	if s.eventBus == nil {
		return
	}
	s.eventBus.Publish(ev)
	if selChanged {
		s.eventBus.Publish(NewSelectionChangedEvent(members))
	}
}

// Snapshot returns a copy of the records in view order.
func (s *Store) Snapshot() []models.FileRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.FileRecord, len(s.order))
	for i, key := range s.order {
		out[i] = s.entries[key].rec
	}
	return out
}

// Lookup returns the record for key if it is in view.
func (s *Store) Lookup(key models.RecordKey) (models.FileRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]
	if !ok {
		return models.FileRecord{}, false
	}
	return e.rec, true
}

// Len returns the number of records in view.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Stats counts records in view per download status.
func (s *Store) Stats() map[models.DownloadStatus]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[models.DownloadStatus]int)
	for _, e := range s.entries {
		stats[e.rec.DownloadStatus]++
	}
	return stats
}

// Filter returns the filter of the current epoch.
func (s *Store) Filter() models.FilterSpec {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter
}

// Epoch returns the current epoch.
func (s *Store) Epoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

// Cursor returns the expected next page position.
func (s *Store) Cursor() models.PageCursor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.PageCursor{Epoch: s.epoch, Cursor: s.cursor, HasMore: s.hasMore, Seq: s.seq}
}

// NextPage returns the filter and cursor of the next page as one consistent
// read.
func (s *Store) NextPage() (models.FilterSpec, models.PageCursor) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter, models.PageCursor{Epoch: s.epoch, Cursor: s.cursor, HasMore: s.hasMore, Seq: s.seq}
}
