package state

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/telegram-files/tfsync/internal/events"
	"github.com/telegram-files/tfsync/internal/models"
)

// fakeSource serves pages keyed by cursor and records each request.
type fakeSource struct {
	mu     sync.Mutex
	pages  map[string]models.Page
	err    error
	calls  []fetchCall
	gate   chan struct{} // when set, each fetch waits for a receive
	active atomic.Int32
	peak   atomic.Int32
}

type fetchCall struct {
	filter models.FilterSpec
	cursor string
}

func (f *fakeSource) FetchPage(ctx context.Context, filter models.FilterSpec, cursor string) (models.Page, error) {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, fetchCall{filter: filter, cursor: cursor})
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return models.Page{}, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return models.Page{}, f.err
	}
	return f.pages[cursor], nil
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestPager_LoadMoreSequence(t *testing.T) {
	src := &fakeSource{pages: map[string]models.Page{
		"":   {Records: []models.FileRecord{rec(1, 1, models.StatusIdle)}, NextCursor: "c2", HasMore: true},
		"c2": {Records: []models.FileRecord{rec(1, 2, models.StatusIdle)}, HasMore: false},
	}}
	s := newTestStore()
	p := NewPager(s, src, nil, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := p.LoadMore(ctx); err != nil {
			t.Fatalf("LoadMore() #%d error = %v", i, err)
		}
	}

	if src.callCount() != 2 {
		t.Errorf("fetches = %d, want 2 (no fetch once hasMore is false)", src.callCount())
	}
	if s.Len() != 2 || p.HasMore() {
		t.Errorf("Len = %d HasMore = %v", s.Len(), p.HasMore())
	}
	if src.calls[1].cursor != "c2" {
		t.Errorf("second fetch cursor = %q, want c2", src.calls[1].cursor)
	}
}

func TestPager_SingleFetchInFlight(t *testing.T) {
	src := &fakeSource{
		pages: map[string]models.Page{"": {Records: []models.FileRecord{rec(1, 1, models.StatusIdle)}, NextCursor: "c2", HasMore: true}},
		gate:  make(chan struct{}),
	}
	s := newTestStore()
	p := NewPager(s, src, nil, nil)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- p.LoadMore(ctx) }()

	waitFor(t, func() bool { return src.callCount() == 1 })
	if !p.Loading() {
		t.Error("Loading() should be true while a fetch is outstanding")
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := p.LoadMore(ctx); err != nil {
				t.Errorf("concurrent LoadMore() error = %v", err)
			}
		}()
	}
	wg.Wait()

	close(src.gate)
	if err := <-done; err != nil {
		t.Fatalf("LoadMore() error = %v", err)
	}
	if src.peak.Load() != 1 {
		t.Errorf("peak concurrent fetches = %d, want 1", src.peak.Load())
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}
	if p.Loading() {
		t.Error("Loading() should be false after the fetch completes")
	}
}

func TestPager_FetchErrorStalls(t *testing.T) {
	bus := events.NewEventBus(10)
	defer bus.Close()
	errCh := bus.Subscribe(EventFileListError)

	src := &fakeSource{
		pages: map[string]models.Page{"": {Records: []models.FileRecord{rec(1, 1, models.StatusIdle)}, HasMore: false}},
		err:   errors.New("connection reset"),
	}
	s := NewStore(models.DefaultFilter(), bus, nil)
	p := NewPager(s, src, bus, nil)

	if err := p.LoadMore(context.Background()); err == nil {
		t.Fatal("expected fetch error")
	}
	if p.Stalled() == nil {
		t.Error("Stalled() should report the failure")
	}
	if s.Len() != 0 || s.Cursor().Cursor != "" || !s.Cursor().HasMore {
		t.Error("failed fetch must leave view and cursor unchanged")
	}
	select {
	case <-errCh:
	default:
		t.Error("expected file_list_error event")
	}

	src.mu.Lock()
	src.err = nil
	src.mu.Unlock()
	if err := p.LoadMore(context.Background()); err != nil {
		t.Fatalf("retry LoadMore() error = %v", err)
	}
	if p.Stalled() != nil {
		t.Error("Stalled() should clear after a successful fetch")
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}
}

func TestPager_RefreshKeepsLiveStatus(t *testing.T) {
	src := &fakeSource{pages: map[string]models.Page{
		"": {Records: []models.FileRecord{rec(1, 1, models.StatusIdle), rec(1, 2, models.StatusIdle)}, NextCursor: "c2", HasMore: true},
	}}
	s := newTestStore()
	p := NewPager(s, src, nil, nil)
	ctx := context.Background()

	if err := p.LoadMore(ctx); err != nil {
		t.Fatal(err)
	}
	s.ApplyStatusDelta(models.StatusDelta{Key: key(1, 1), Status: statusPtr(models.StatusDownloading), Progress: int64Ptr(10)})

	if err := p.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	a, _ := s.Lookup(key(1, 1))
	if a.DownloadStatus != models.StatusDownloading || a.Progress < 10 {
		t.Errorf("A = %s/%d, want downloading with progress >= 10", a.DownloadStatus, a.Progress)
	}
	if s.Len() != 2 {
		t.Errorf("Len = %d, want 2", s.Len())
	}
	if s.Cursor().Cursor != "c2" {
		t.Errorf("Refresh moved the cursor to %q", s.Cursor().Cursor)
	}
	if last := src.calls[len(src.calls)-1]; last.cursor != "" {
		t.Errorf("Refresh fetched cursor %q, want first page", last.cursor)
	}
}

func TestPager_RapidFilterChangesMergeLatestOnly(t *testing.T) {
	src := &fakeSource{gate: make(chan struct{})}
	s := newTestStore()

	// Each filter gets a distinct page, keyed by search term.
	pages := map[string]models.Page{
		"a": {Records: []models.FileRecord{rec(1, 1, models.StatusIdle)}},
		"b": {Records: []models.FileRecord{rec(1, 2, models.StatusIdle)}},
		"c": {Records: []models.FileRecord{rec(1, 3, models.StatusIdle)}},
	}
	bySearch := PageSourceFunc(func(ctx context.Context, filter models.FilterSpec, cursor string) (models.Page, error) {
		if _, err := src.FetchPage(ctx, filter, cursor); err != nil {
			return models.Page{}, err
		}
		return pages[filter.Search], nil
	})
	p := NewPager(s, bySearch, nil, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, term := range []string{"a", "b", "c"} {
		s.Replace(models.FilterSpec{Search: term})
		n := src.callCount() + 1
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := p.LoadMore(ctx); err != nil {
				t.Errorf("LoadMore() error = %v", err)
			}
		}()
		waitFor(t, func() bool { return src.callCount() == n })
	}

	close(src.gate)
	wg.Wait()

	snap := s.Snapshot()
	if len(snap) != 1 || snap[0].ID != 3 {
		t.Fatalf("view = %+v, want only the latest filter's record", snap)
	}
	if p.Discarded() != 2 {
		t.Errorf("Discarded() = %d, want 2", p.Discarded())
	}
	if s.Epoch() != 4 {
		t.Errorf("Epoch() = %d, want 4", s.Epoch())
	}
}

func TestPager_ErrorOfSupersededFetchIgnored(t *testing.T) {
	src := &fakeSource{gate: make(chan struct{}), err: errors.New("timeout")}
	s := newTestStore()
	p := NewPager(s, src, nil, nil)

	done := make(chan error, 1)
	go func() { done <- p.LoadMore(context.Background()) }()
	waitFor(t, func() bool { return src.callCount() == 1 })

	s.Replace(models.FilterSpec{Status: "idle"})
	close(src.gate)

	if err := <-done; err != nil {
		t.Errorf("superseded fetch error should be dropped, got %v", err)
	}
	if p.Stalled() != nil {
		t.Error("superseded failure must not stall the new epoch")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before timeout")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestPager_RefreshDuringLoadMoreReportsInFlight(t *testing.T) {
	src := &fakeSource{
		pages: map[string]models.Page{"": {Records: []models.FileRecord{rec(1, 1, models.StatusIdle)}, NextCursor: "c2", HasMore: true}},
		gate:  make(chan struct{}),
	}
	s := newTestStore()
	p := NewPager(s, src, nil, nil)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- p.LoadMore(ctx) }()
	waitFor(t, func() bool { return src.callCount() == 1 })

	if err := p.Refresh(ctx); !errors.Is(err, ErrFetchInFlight) {
		t.Errorf("Refresh() error = %v, want ErrFetchInFlight", err)
	}
	if src.callCount() != 1 {
		t.Errorf("fetches = %d, want 1", src.callCount())
	}

	close(src.gate)
	if err := <-done; err != nil {
		t.Fatalf("LoadMore() error = %v", err)
	}
	if err := p.Refresh(ctx); err != nil {
		t.Errorf("Refresh() after the load error = %v", err)
	}
}

func TestPager_RefreshDoesNotUndoLaterCancel(t *testing.T) {
	downloading := rec(1, 1, models.StatusDownloading)
	downloading.Progress = 10
	src := &fakeSource{pages: map[string]models.Page{
		"": {Records: []models.FileRecord{downloading}},
	}}
	s := newTestStore()
	p := NewPager(s, src, nil, nil)
	ctx := context.Background()

	if err := p.LoadMore(ctx); err != nil {
		t.Fatal(err)
	}

	src.mu.Lock()
	src.gate = make(chan struct{})
	src.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- p.Refresh(ctx) }()
	waitFor(t, func() bool { return src.callCount() == 2 })

	// Cancelled while the refresh is outstanding.
	s.ApplyStatusDelta(models.StatusDelta{Key: key(1, 1), Status: statusPtr(models.StatusIdle), Progress: int64Ptr(0)})
	close(src.gate)
	if err := <-done; err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	a, _ := s.Lookup(key(1, 1))
	if a.DownloadStatus != models.StatusIdle {
		t.Errorf("status = %s, want idle", a.DownloadStatus)
	}
}
