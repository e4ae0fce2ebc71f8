package cli

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/telegram-files/tfsync/internal/constants"
	"github.com/telegram-files/tfsync/internal/core"
	"github.com/telegram-files/tfsync/internal/events"
	"github.com/telegram-files/tfsync/internal/metrics"
	"github.com/telegram-files/tfsync/internal/models"
	"github.com/telegram-files/tfsync/internal/notify"
	"github.com/telegram-files/tfsync/internal/progress"
	"github.com/telegram-files/tfsync/internal/state"
)

// newWatchCmd creates the 'watch' command.
func newWatchCmd() *cobra.Command {
	var filter models.FilterSpec
	var pages int
	var metricsAddr string
	var desktopNotify bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow download progress live",
		Long: `Connect the push channel and show a progress bar for every file
that is downloading or paused, together with the connection state and the
account download speed. Runs until interrupted.

Examples:
  tfsync watch
  tfsync watch --status downloading
  tfsync watch --metrics-addr :9090
  tfsync watch --notify`,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter = filter.Normalize()
			if err := filter.Validate(); err != nil {
				return err
			}
			ctx := GetContext()

			if metricsAddr != "" {
				srv := serveMetrics(metricsAddr)
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = srv.Shutdown(shutdownCtx)
				}()
			}

			s, cfg, err := openSession(ctx, core.Options{Filter: filter})
			if err != nil {
				return err
			}
			defer closeSession(s)

			for i := 1; i < pages && s.HasMore(); i++ {
				if err := s.LoadMore(ctx); err != nil {
					break
				}
			}
			if err := s.Stalled(); err != nil {
				GetLogger().Warn().Err(err).Msg("file list unavailable, waiting for push updates")
			}

			notifyCfg := notify.ParseConfig(cfg.Notify)
			if desktopNotify {
				notifyCfg.Enabled = true
			}
			notifier := notify.NewNotifier(notifyCfg, GetLogger())

			ui := progress.NewWatchUI()
			ui.OnFinish = notifier.DownloadFinished
			return watch(ctx, s, ui, notifier)
		},
	}

	cmd.Flags().StringVarP(&filter.Search, "search", "s", "", "Search term")
	cmd.Flags().StringVarP(&filter.Type, "type", "t", models.FilterAll, "File type: all, photo, video, audio, file")
	cmd.Flags().StringVar(&filter.Status, "status", models.FilterAll, "Download status: all, idle, downloading, paused, completed, error")
	cmd.Flags().IntVarP(&pages, "pages", "n", 1, "Number of pages to load")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	cmd.Flags().BoolVar(&desktopNotify, "notify", false, "Show desktop notifications when downloads finish")

	return cmd
}

// watch feeds ui from the session's events until ctx is done. notifier
// may be nil.
func watch(ctx context.Context, s *core.Session, ui *progress.WatchUI, notifier *notify.Notifier) error {
	bus := s.EventBus()
	changed := bus.Subscribe(state.EventRecordsChanged)
	conn := bus.Subscribe(events.EventConnectionState)
	defer bus.UnsubscribeAll(changed)
	defer bus.UnsubscribeAll(conn)

	out := ui.Writer()
	fmt.Fprintf(out, "Watching %d file(s), connection %s\n", s.Store().Len(), s.ConnectionState())
	ui.Sync(s.Snapshot())

	ticker := time.NewTicker(constants.SpeedReportInterval)
	defer ticker.Stop()
	var lastSpeed int64 = -1

	for {
		select {
		case <-ctx.Done():
			ui.Close()
			completed, failed := ui.Totals()
			fmt.Fprintf(out, "Stopped watching: %d completed, %d failed\n", completed, failed)
			return nil

		case _, ok := <-changed:
			if !ok {
				ui.Close()
				return errors.New("event bus closed")
			}
			ui.Sync(s.Snapshot())

		case ev, ok := <-conn:
			if !ok {
				ui.Close()
				return errors.New("event bus closed")
			}
			if e, isState := ev.(*events.ConnectionStateEvent); isState {
				line := "Connection: " + string(e.State)
				if e.Attempt > 0 {
					line += fmt.Sprintf(" (attempt %d)", e.Attempt)
				}
				fmt.Fprintln(out, line)
				if e.State == models.StateReconnecting && notifier != nil {
					notifier.ConnectionLost(e.Attempt)
				}
			}

		case <-ticker.C:
			if bps := s.DownloadSpeed(); bps != lastSpeed && ui.Active() > 0 {
				lastSpeed = bps
				fmt.Fprintf(out, "Speed: %s/s\n", formatBytes(bps))
			}
		}
	}
}

// serveMetrics starts the metrics endpoint in the background.
func serveMetrics(addr string) *nethttp.Server {
	mux := nethttp.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &nethttp.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			GetLogger().Error().Err(err).Str("addr", addr).Msg("metrics server failed")
		}
	}()
	GetLogger().Info().Str("addr", addr).Msg("serving metrics on /metrics")
	return srv
}
