package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/telegram-files/tfsync/internal/events"
	"github.com/telegram-files/tfsync/internal/metrics"
	"github.com/telegram-files/tfsync/internal/models"
)

var (
	// ErrNotIdle is returned when selecting a record whose download has
	// already been requested.
	ErrNotIdle = errors.New("record is not idle")

	// ErrNotInView is returned when selecting a record that is not loaded.
	ErrNotInView = errors.New("record is not in view")
)

// BatchAction starts downloads for files of one chat. It is the external
// boundary called by Commit.
type BatchAction func(ctx context.Context, chatID int64, files []models.DownloadRef) error

// Selection is the set of idle records marked for a batch action.
//
// Every member references a record in view whose status is idle. The
// selection is guarded by its store's mutex and pruned in the same critical
// section as every store mutation.
type Selection struct {
	store   *Store
	members map[models.RecordKey]struct{}
}

// Toggle flips membership of key and returns whether it is now selected.
// Selecting a record that is not in view or not idle is rejected.
func (sel *Selection) Toggle(key models.RecordKey) (bool, error) {
	s := sel.store
	s.mu.Lock()
	if _, ok := sel.members[key]; ok {
		delete(sel.members, key)
		members := sel.membersLocked()
		s.mu.Unlock()
		sel.changed(members)
		return false, nil
	}

	e, ok := s.entries[key]
	switch {
	case !ok:
		s.mu.Unlock()
		return false, fmt.Errorf("select %s: %w", key, ErrNotInView)
	case !e.rec.DownloadStatus.IsIdle():
		status := e.rec.DownloadStatus
		s.mu.Unlock()
		return false, fmt.Errorf("select %s (%s): %w", key, status, ErrNotIdle)
	}
	sel.members[key] = struct{}{}
	members := sel.membersLocked()
	s.mu.Unlock()

	sel.changed(members)
	return true, nil
}

// SelectAllIdle sets membership to exactly the idle records in view.
func (sel *Selection) SelectAllIdle() int {
	s := sel.store
	s.mu.Lock()
	sel.members = make(map[models.RecordKey]struct{})
	for _, key := range s.order {
		if s.entries[key].rec.DownloadStatus.IsIdle() {
			sel.members[key] = struct{}{}
		}
	}
	members := sel.membersLocked()
	s.mu.Unlock()

	sel.changed(members)
	return len(members)
}

// Clear empties the selection.
func (sel *Selection) Clear() {
	s := sel.store
	s.mu.Lock()
	if len(sel.members) == 0 {
		s.mu.Unlock()
		return
	}
	sel.members = make(map[models.RecordKey]struct{})
	s.mu.Unlock()

	sel.changed(nil)
}

// Members returns the selected keys in view order.
func (sel *Selection) Members() []models.RecordKey {
	sel.store.mu.RLock()
	defer sel.store.mu.RUnlock()
	return sel.membersLocked()
}

// Contains reports whether key is selected.
func (sel *Selection) Contains(key models.RecordKey) bool {
	sel.store.mu.RLock()
	defer sel.store.mu.RUnlock()
	_, ok := sel.members[key]
	return ok
}

// Len returns the number of selected records.
func (sel *Selection) Len() int {
	sel.store.mu.RLock()
	defer sel.store.mu.RUnlock()
	return len(sel.members)
}

// Reconcile prunes members that left the view or are no longer idle. The
// store already does this inside each mutation.
func (sel *Selection) Reconcile() {
	sel.store.mu.Lock()
	changed, members := sel.reconcileLocked()
	sel.store.mu.Unlock()

	if changed {
		sel.changed(members)
	}
}

// reconcileLocked must be called with the store lock held. It reports
// whether membership changed and the resulting members.
func (sel *Selection) reconcileLocked() (bool, []models.RecordKey) {
	changed := false
	for key := range sel.members {
		e, ok := sel.store.entries[key]
		if !ok || !e.rec.DownloadStatus.IsIdle() {
			delete(sel.members, key)
			changed = true
		}
	}
	metrics.SelectionSize.Set(float64(len(sel.members)))
	if !changed {
		return false, nil
	}
	return true, sel.membersLocked()
}

func (sel *Selection) membersLocked() []models.RecordKey {
	out := make([]models.RecordKey, 0, len(sel.members))
	for _, key := range sel.store.order {
		if _, ok := sel.members[key]; ok {
			out = append(out, key)
		}
	}
	return out
}

func (sel *Selection) changed(members []models.RecordKey) {
	metrics.SelectionSize.Set(float64(len(members)))
	sel.store.eventBus.Publish(NewSelectionChangedEvent(members))
}

// batch is the members of one chat captured for a commit.
type batch struct {
	chatID int64
	keys   []models.RecordKey
	refs   []models.DownloadRef
}

// Commit hands the selection to action, one call per chat, and removes the
// members of each chat whose call succeeded. On failure the failed chat's
// members stay selected and no record status is touched; the first error is
// returned.
func (sel *Selection) Commit(ctx context.Context, action BatchAction) error {
	batches := sel.tentative()
	if len(batches) == 0 {
		return nil
	}

	var committed []models.RecordKey
	var firstErr error
	for _, b := range batches {
		if err := action(ctx, b.chatID, b.refs); err != nil {
			sel.store.eventBus.Publish(&events.BatchEvent{
				BaseEvent: events.NewBase(events.EventBatchFailed),
				Keys:      b.keys,
				Error:     err,
			})
			if firstErr == nil {
				firstErr = fmt.Errorf("start %d downloads in chat %d: %w", len(b.keys), b.chatID, err)
			}
			continue
		}
		sel.store.eventBus.Publish(&events.BatchEvent{
			BaseEvent: events.NewBase(events.EventBatchStarted),
			Keys:      b.keys,
		})
		committed = append(committed, b.keys...)
	}

	if len(committed) > 0 {
		sel.confirm(committed)
	}
	return firstErr
}

// tentative captures the current members grouped by chat in view order.
func (sel *Selection) tentative() []*batch {
	s := sel.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	var batches []*batch
	byChat := make(map[int64]*batch)
	for _, key := range s.order {
		if _, ok := sel.members[key]; !ok {
			continue
		}
		rec := s.entries[key].rec
		b, ok := byChat[rec.ChatID]
		if !ok {
			b = &batch{chatID: rec.ChatID}
			byChat[rec.ChatID] = b
			batches = append(batches, b)
		}
		b.keys = append(b.keys, key)
		b.refs = append(b.refs, models.DownloadRef{MessageID: rec.MessageID, FileID: rec.ID})
	}
	return batches
}

// confirm removes committed keys that are still members.
func (sel *Selection) confirm(keys []models.RecordKey) {
	s := sel.store
	s.mu.Lock()
	changed := false
	for _, key := range keys {
		if _, ok := sel.members[key]; ok {
			delete(sel.members, key)
			changed = true
		}
	}
	members := sel.membersLocked()
	s.mu.Unlock()

	if changed {
		sel.changed(members)
	}
}
