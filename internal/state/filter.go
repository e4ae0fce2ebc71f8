package state

import (
	"sync"

	"github.com/telegram-files/tfsync/internal/events"
	"github.com/telegram-files/tfsync/internal/models"
)

// FilterState owns the current filter and fans out changes. A change
// replaces the store's records, which starts a new pagination epoch, and
// then calls the OnChange hook (the session uses it to fetch page 1).
type FilterState struct {
	store    *Store
	eventBus *events.EventBus

	// OnChange runs after each effective update with the new epoch.
	OnChange func(filter models.FilterSpec, epoch uint64)

	mu sync.Mutex // serializes updates so hooks run in epoch order
}

// NewFilterState creates a FilterState driving store.
func NewFilterState(store *Store, eventBus *events.EventBus) *FilterState {
	return &FilterState{store: store, eventBus: eventBus}
}

// Update replaces the filter. A value-equal filter is a no-op and returns
// false without touching the cursor or triggering a fetch.
func (f *FilterState) Update(filter models.FilterSpec) (bool, error) {
	filter = filter.Normalize()
	if err := filter.Validate(); err != nil {
		return false, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.store.Replace(filter) {
		return false, nil
	}
	epoch := f.store.Epoch()
	f.eventBus.Publish(NewFilterChangedEvent(filter, epoch))
	if f.OnChange != nil {
		f.OnChange(filter, epoch)
	}
	return true, nil
}

// Current returns the current filter.
func (f *FilterState) Current() models.FilterSpec {
	return f.store.Filter()
}
