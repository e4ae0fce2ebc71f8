// Package push maintains the websocket that delivers download status and
// speed updates for one account.
package push

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/telegram-files/tfsync/internal/config"
	"github.com/telegram-files/tfsync/internal/constants"
	"github.com/telegram-files/tfsync/internal/events"
	"github.com/telegram-files/tfsync/internal/http"
	"github.com/telegram-files/tfsync/internal/logging"
	"github.com/telegram-files/tfsync/internal/metrics"
	"github.com/telegram-files/tfsync/internal/models"
	"github.com/telegram-files/tfsync/internal/version"
)

// ErrAlreadyRunning is returned by a second call to Run.
var ErrAlreadyRunning = errors.New("push channel already started")

var allStates = []string{
	string(models.StateConnecting),
	string(models.StateOpen),
	string(models.StateClosed),
	string(models.StateReconnecting),
}

// Options configures a Channel.
type Options struct {
	URL       string
	AccountID string
	Dialer    *websocket.Dialer // nil uses NewDialer defaults without a proxy

	InitialDelay time.Duration
	MaxDelay     time.Duration
	BufferSize   int

	EventBus *events.EventBus
	Logger   *logging.Logger
}

// Channel is the push connection of one account. It reconnects with capped
// exponential backoff until its context is cancelled, and delivers every
// decoded frame on Events in arrival order.
type Channel struct {
	opts   Options
	dialer *websocket.Dialer
	logger *logging.Logger

	events  chan Event
	state   atomic.Value // models.ConnectionState
	started atomic.Bool
}

// NewChannel creates a channel. It does not dial until Run is called.
func NewChannel(opts Options) *Channel {
	if opts.InitialDelay <= 0 {
		opts.InitialDelay = constants.ReconnectInitialDelay
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = constants.ReconnectMaxDelay
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = constants.PushEventBuffer
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{HandshakeTimeout: constants.HandshakeTimeout}
	}

	c := &Channel{
		opts:   opts,
		dialer: dialer,
		logger: logger.Component("push"),
		events: make(chan Event, opts.BufferSize),
	}
	c.state.Store(models.StateClosed)
	return c
}

// NewDialer returns a websocket dialer that honours the proxy settings of cfg.
func NewDialer(cfg *config.Config) (*websocket.Dialer, error) {
	proxy, err := http.ProxyFunc(cfg)
	if err != nil {
		return nil, fmt.Errorf("push dialer: %w", err)
	}
	return &websocket.Dialer{
		Proxy:            proxy,
		HandshakeTimeout: constants.HandshakeTimeout,
	}, nil
}

// Events returns the event stream. It is closed when Run returns.
func (c *Channel) Events() <-chan Event {
	return c.events
}

// State returns the current connection state.
func (c *Channel) State() models.ConnectionState {
	return c.state.Load().(models.ConnectionState)
}

// Run connects and keeps the channel connected until ctx is cancelled, then
// moves to Closed, closes the event stream and returns nil. It may be called
// once.
func (c *Channel) Run(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(c.events)

	attempt := 0
	for {
		if err := c.setState(ctx, models.StateConnecting, attempt); err != nil {
			break
		}

		conn, _, err := c.dialer.DialContext(ctx, c.opts.URL, nethttp.Header{"User-Agent": {version.UserAgent()}})
		if err == nil {
			attempt = 0
			if err = c.setState(ctx, models.StateOpen, 0); err == nil {
				c.logger.Info().Str("url", c.opts.URL).Msg("push channel open")
				err = c.readLoop(ctx, conn)
			} else {
				conn.Close()
			}
		}
		if ctx.Err() != nil {
			break
		}

		attempt++
		delay := http.CalculateBackoff(attempt, c.opts.InitialDelay, c.opts.MaxDelay)
		c.logger.Warn().Err(err).
			Str("error_type", http.ErrorTypeName(http.ClassifyError(err))).
			Int("attempt", attempt).
			Dur("retry_in", delay).
			Msg("push channel disconnected")

		if c.setState(ctx, models.StateClosed, attempt) != nil ||
			c.setState(ctx, models.StateReconnecting, attempt) != nil {
			break
		}
		metrics.Reconnects.Inc()
		if err := http.SleepContext(ctx, delay); err != nil {
			break
		}
	}

	c.finalClose()
	return nil
}

// readLoop delivers frames until the connection fails or ctx is done.
func (c *Channel) readLoop(ctx context.Context, conn *websocket.Conn) error {
	conn.SetReadLimit(constants.PushReadLimit)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			conn.Close()
		case <-done:
			conn.Close()
		}
	}()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if msgType != websocket.TextMessage {
			continue
		}

		ev, err := Decode(data, c.opts.AccountID)
		if err != nil {
			metrics.FramesSkipped.Inc()
			c.logger.Debug().Err(err).Int("bytes", len(data)).Msg("skipping push frame")
			continue
		}
		if err := c.emit(ctx, ev); err != nil {
			return err
		}
	}
}

// emit blocks until the consumer takes ev or ctx is done.
func (c *Channel) emit(ctx context.Context, ev Event) error {
	select {
	case c.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Channel) setState(ctx context.Context, state models.ConnectionState, attempt int) error {
	c.publishState(state, attempt)
	return c.emit(ctx, StateEvent{State: state, Attempt: attempt})
}

func (c *Channel) publishState(state models.ConnectionState, attempt int) {
	c.state.Store(state)
	metrics.SetConnectionState(string(state), allStates)
	c.opts.EventBus.Publish(&events.ConnectionStateEvent{
		BaseEvent: events.NewBase(events.EventConnectionState),
		AccountID: c.opts.AccountID,
		State:     state,
		Attempt:   attempt,
	})
}

// finalClose records the terminal Closed state. The stream is being torn
// down, so the StateEvent is only delivered if there is buffer room.
func (c *Channel) finalClose() {
	c.publishState(models.StateClosed, 0)
	select {
	case c.events <- StateEvent{State: models.StateClosed}:
	default:
	}
	c.logger.Debug().Str("account", c.opts.AccountID).Msg("push channel closed")
}
