// Package core wires the file view of one chat to the backend: the api
// client feeds pages to the pager, the push channel feeds status deltas to
// the store, and download actions go back through the api client.
package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/telegram-files/tfsync/internal/api"
	"github.com/telegram-files/tfsync/internal/config"
	"github.com/telegram-files/tfsync/internal/constants"
	"github.com/telegram-files/tfsync/internal/events"
	"github.com/telegram-files/tfsync/internal/http"
	"github.com/telegram-files/tfsync/internal/logging"
	"github.com/telegram-files/tfsync/internal/metrics"
	"github.com/telegram-files/tfsync/internal/models"
	"github.com/telegram-files/tfsync/internal/push"
	"github.com/telegram-files/tfsync/internal/state"
)

var (
	// ErrNotActive is returned by operations on a deactivated session.
	ErrNotActive = errors.New("session is not active")

	// ErrProbeFailed is returned when the latency probe fails after its
	// retries.
	ErrProbeFailed = errors.New("connection error")
)

// Options tunes Activate.
type Options struct {
	Filter models.FilterSpec

	// EventBus receives all engine events. nil creates a bus owned and
	// closed by the session.
	EventBus *events.EventBus
	Logger   *logging.Logger

	// NoPush skips the push channel, for one-shot listings.
	NoPush bool

	// Dialer overrides the proxy-aware websocket dialer built from config.
	Dialer *websocket.Dialer
}

// Session is the live view of one account's chat. All state that the web
// client kept in process-wide singletons hangs off this value.
type Session struct {
	id       string
	cfg      *config.Config
	client   *api.Client
	eventBus *events.EventBus
	ownsBus  bool
	logger   *logging.Logger

	store   *state.Store
	filter  *state.FilterState
	pager   *state.Pager
	channel *push.Channel

	speed atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group

	mu     sync.Mutex // guards active and loads.Add
	active bool
	loads  sync.WaitGroup
}

// listSource adapts the api client to state.PageSource for one chat.
type listSource struct {
	client *api.Client
	chatID int64
}

func (s listSource) FetchPage(ctx context.Context, filter models.FilterSpec, cursor string) (models.Page, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.APIContextTimeout)
	defer cancel()
	return s.client.ListFiles(ctx, s.chatID, filter, cursor)
}

// Activate starts a session for cfg's account and chat: it connects the push
// channel, starts the dispatcher and loads the first page. A failed first
// load does not fail activation; it is reported by Stalled.
func Activate(ctx context.Context, cfg *config.Config, opts Options) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	bus, ownsBus := opts.EventBus, false
	if bus == nil {
		bus, ownsBus = events.NewEventBus(cfg.EventBuffer), true
	}

	client, err := api.NewClient(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}

	s := &Session{
		id:       uuid.NewString(),
		cfg:      cfg,
		client:   client,
		eventBus: bus,
		ownsBus:  ownsBus,
		active:   true,
	}
	s.logger = logger.Component("session")

	s.store = state.NewStore(opts.Filter, bus, logger)
	s.pager = state.NewPager(s.store, listSource{client: client, chatID: cfg.ChatID}, bus, logger)
	s.filter = state.NewFilterState(s.store, bus)
	s.filter.OnChange = func(models.FilterSpec, uint64) { s.loadInBackground() }

	if !opts.NoPush {
		pushURL, err := cfg.PushURL()
		if err != nil {
			return nil, err
		}
		dialer := opts.Dialer
		if dialer == nil {
			if dialer, err = push.NewDialer(cfg); err != nil {
				return nil, err
			}
		}
		s.channel = push.NewChannel(push.Options{
			URL:          pushURL,
			AccountID:    cfg.AccountID,
			Dialer:       dialer,
			InitialDelay: cfg.ReconnectInitial,
			MaxDelay:     cfg.ReconnectMax,
			EventBus:     bus,
			Logger:       logger,
		})
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.group, s.ctx = errgroup.WithContext(s.ctx)
	if s.channel != nil {
		s.group.Go(func() error { return s.channel.Run(s.ctx) })
		s.group.Go(s.dispatch)
	}

	s.logger.Info().
		Str("session", s.id).
		Str("account", cfg.AccountID).
		Int64("chat", cfg.ChatID).
		Bool("push", s.channel != nil).
		Msg("session activated")

	if err := s.pager.LoadMore(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("first page load failed")
	}
	return s, nil
}

// dispatch applies push events in arrival order until the channel closes.
func (s *Session) dispatch() error {
	for ev := range s.channel.Events() {
		switch e := ev.(type) {
		case push.FileStatusEvent:
			s.store.ApplyStatusDelta(e.Delta(s.cfg.ChatID))
		case push.SpeedEvent:
			if e.AccountID != "" && e.AccountID != s.cfg.AccountID {
				continue
			}
			s.speed.Store(e.BytesPerSecond)
			metrics.DownloadSpeed.Set(float64(e.BytesPerSecond))
			s.eventBus.Publish(&events.DownloadSpeedEvent{
				BaseEvent:      events.NewBase(events.EventDownloadSpeed),
				AccountID:      e.AccountID,
				BytesPerSecond: e.BytesPerSecond,
			})
		case push.StateEvent:
			s.logger.Debug().Str("state", string(e.State)).Int("attempt", e.Attempt).Msg("push state")
		}
	}
	return nil
}

// loadInBackground fetches the first page of a new epoch.
func (s *Session) loadInBackground() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.loads.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.loads.Done()
		if err := s.pager.LoadMore(s.ctx); err != nil {
			s.logger.Debug().Err(err).Msg("background page load failed")
		}
	}()
}

func (s *Session) checkActive() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return ErrNotActive
	}
	return nil
}

// Deactivate tears the session down. The push channel closes without
// reconnecting and all background work is waited for.
func (s *Session) Deactivate() error {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return ErrNotActive
	}
	s.active = false
	s.mu.Unlock()

	s.cancel()
	err := s.group.Wait()
	s.loads.Wait()

	s.logger.Info().Str("session", s.id).Msg("session deactivated")
	if s.ownsBus {
		s.eventBus.Close()
	}
	return err
}

// ID returns the session's unique id.
func (s *Session) ID() string { return s.id }

// EventBus returns the bus the session publishes on.
func (s *Session) EventBus() *events.EventBus { return s.eventBus }

// Store returns the record store.
func (s *Session) Store() *state.Store { return s.store }

// Selection returns the selection set.
func (s *Session) Selection() *state.Selection { return s.store.Selection() }

// Snapshot returns the records in view.
func (s *Session) Snapshot() []models.FileRecord { return s.store.Snapshot() }

// Filter returns the current filter.
func (s *Session) Filter() models.FilterSpec { return s.filter.Current() }

// HasMore reports whether more pages can be loaded.
func (s *Session) HasMore() bool { return s.pager.HasMore() }

// Loading reports whether a page fetch is in flight.
func (s *Session) Loading() bool { return s.pager.Loading() }

// Stalled returns the error of the last failed page fetch.
func (s *Session) Stalled() error { return s.pager.Stalled() }

// UpdateFilter replaces the filter and loads the first page of the new epoch
// in the background. An equal filter is a no-op.
func (s *Session) UpdateFilter(filter models.FilterSpec) (bool, error) {
	if err := s.checkActive(); err != nil {
		return false, err
	}
	return s.filter.Update(filter)
}

// LoadMore loads the next page.
func (s *Session) LoadMore(ctx context.Context) error {
	if err := s.checkActive(); err != nil {
		return err
	}
	return s.pager.LoadMore(ctx)
}

// Refresh re-fetches the first page and merges it in place. It returns
// state.ErrFetchInFlight when a page load is still outstanding.
func (s *Session) Refresh(ctx context.Context) error {
	if err := s.checkActive(); err != nil {
		return err
	}
	return s.pager.Refresh(ctx)
}

// StartSelected starts downloads for the selection, one request per chat.
// Statuses change only when the push channel reports them.
func (s *Session) StartSelected(ctx context.Context) error {
	if err := s.checkActive(); err != nil {
		return err
	}
	return s.Selection().Commit(ctx, s.client.StartDownloadMultiple)
}

// StartDownload starts one file's download.
func (s *Session) StartDownload(ctx context.Context, key models.RecordKey) error {
	if err := s.checkActive(); err != nil {
		return err
	}
	rec, ok := s.store.Lookup(key)
	if !ok {
		return fmt.Errorf("start %s: %w", key, state.ErrNotInView)
	}
	return s.client.StartDownload(ctx, key.ChatID, rec.MessageID, key.ID)
}

// CancelDownload cancels one file's download.
func (s *Session) CancelDownload(ctx context.Context, key models.RecordKey) error {
	if err := s.checkActive(); err != nil {
		return err
	}
	return s.client.CancelDownload(ctx, key.ID)
}

// TogglePause pauses or resumes one file's download.
func (s *Session) TogglePause(ctx context.Context, key models.RecordKey, paused bool) error {
	if err := s.checkActive(); err != nil {
		return err
	}
	return s.client.TogglePauseDownload(ctx, key.ID, paused)
}

// DownloadSpeed returns the last reported account download speed in bytes
// per second.
func (s *Session) DownloadSpeed() int64 { return s.speed.Load() }

// ConnectionState returns the push channel state, Closed without one.
func (s *Session) ConnectionState() models.ConnectionState {
	if s.channel == nil {
		return models.StateClosed
	}
	return s.channel.State()
}

// Probe measures backend latency, retrying transient failures. After the
// retries are exhausted it returns ErrProbeFailed; it may be called again.
func (s *Session) Probe(ctx context.Context) (time.Duration, error) {
	if err := s.checkActive(); err != nil {
		return 0, err
	}

	var latency time.Duration
	retry := http.Config{
		MaxRetries:   s.cfg.ProbeRetries,
		InitialDelay: constants.RetryInitialDelay,
		MaxDelay:     constants.RetryMaxDelay,
		OnRetry: func(attempt int, err error, errType http.ErrorType) {
			s.logger.Debug().Err(err).Int("attempt", attempt).
				Str("error_type", http.ErrorTypeName(errType)).Msg("retrying probe")
		},
	}
	err := http.ExecuteWithRetry(ctx, retry, func() error {
		d, err := s.client.Ping(ctx)
		if err != nil {
			return err
		}
		latency = d
		return nil
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("latency probe failed")
		return 0, fmt.Errorf("%w: %w", ErrProbeFailed, err)
	}
	return latency, nil
}
