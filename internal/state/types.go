// Package state holds the file view of one chat: the record store, the
// selection, pagination and the current filter. Containers publish events on
// the event bus after each change so that renderers can follow along.
package state

import (
	"github.com/telegram-files/tfsync/internal/events"
	"github.com/telegram-files/tfsync/internal/models"
)

// State event types
const (
	EventRecordsChanged   events.EventType = "records_changed"
	EventFileListLoading  events.EventType = "file_list_loading"
	EventFileListError    events.EventType = "file_list_error"
	EventSelectionChanged events.EventType = "selection_changed"
	EventFilterChanged    events.EventType = "filter_changed"
)

// Change reasons carried by RecordsChangedEvent.
const (
	ReasonReplace = "replace"
	ReasonAppend  = "append"
	ReasonRefresh = "refresh"
	ReasonDelta   = "delta"
)

// RecordsChangedEvent is published after every store mutation.
type RecordsChangedEvent struct {
	events.BaseEvent
	Epoch  uint64
	Reason string
	Len    int
	Keys   []models.RecordKey // records touched; empty for replace
}

// FileListLoadingEvent is published when a page fetch starts or ends.
type FileListLoadingEvent struct {
	events.BaseEvent
	Epoch   uint64
	Loading bool
}

// FileListErrorEvent is published when a page fetch fails.
type FileListErrorEvent struct {
	events.BaseEvent
	Epoch uint64
	Error error
}

// SelectionChangedEvent is published when selection membership changes.
type SelectionChangedEvent struct {
	events.BaseEvent
	Keys []models.RecordKey
}

// FilterChangedEvent is published when the filter starts a new epoch.
type FilterChangedEvent struct {
	events.BaseEvent
	Filter models.FilterSpec
	Epoch  uint64
}

// NewRecordsChangedEvent creates a new RecordsChangedEvent.
func NewRecordsChangedEvent(epoch uint64, reason string, n int, keys []models.RecordKey) *RecordsChangedEvent {
	return &RecordsChangedEvent{
		BaseEvent: events.NewBase(EventRecordsChanged),
		Epoch:     epoch,
		Reason:    reason,
		Len:       n,
		Keys:      keys,
	}
}

// NewFileListLoadingEvent creates a new FileListLoadingEvent.
func NewFileListLoadingEvent(epoch uint64, loading bool) *FileListLoadingEvent {
	return &FileListLoadingEvent{
		BaseEvent: events.NewBase(EventFileListLoading),
		Epoch:     epoch,
		Loading:   loading,
	}
}

// NewFileListErrorEvent creates a new FileListErrorEvent.
func NewFileListErrorEvent(epoch uint64, err error) *FileListErrorEvent {
	return &FileListErrorEvent{
		BaseEvent: events.NewBase(EventFileListError),
		Epoch:     epoch,
		Error:     err,
	}
}

// NewSelectionChangedEvent creates a new SelectionChangedEvent.
func NewSelectionChangedEvent(keys []models.RecordKey) *SelectionChangedEvent {
	return &SelectionChangedEvent{
		BaseEvent: events.NewBase(EventSelectionChanged),
		Keys:      keys,
	}
}

// NewFilterChangedEvent creates a new FilterChangedEvent.
func NewFilterChangedEvent(filter models.FilterSpec, epoch uint64) *FilterChangedEvent {
	return &FilterChangedEvent{
		BaseEvent: events.NewBase(EventFilterChanged),
		Filter:    filter,
		Epoch:     epoch,
	}
}
