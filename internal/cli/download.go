package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/telegram-files/tfsync/internal/core"
	"github.com/telegram-files/tfsync/internal/models"
	"github.com/telegram-files/tfsync/internal/progress"
	"github.com/telegram-files/tfsync/internal/state"
	"github.com/telegram-files/tfsync/internal/util/sanitize"
	strs "github.com/telegram-files/tfsync/internal/util/strings"
)

// newDownloadCmd creates the 'download' command.
func newDownloadCmd() *cobra.Command {
	var wait bool

	cmd := &cobra.Command{
		Use:   "download <chatId:fileId> [chatId:fileId...]",
		Short: "Start downloading files",
		Long: `Select the given files and start their downloads in one request per
chat. Files that are not idle (already downloading, paused, completed or
failed) are skipped. A bare file id refers to the configured chat; keys
with a negative chat id go after "--".

The file server performs the download; use --wait to follow progress
until every started file completes or fails.

Examples:
  tfsync download -- -1001234:42
  tfsync download 42 43 44 --wait`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := GetContext()
			s, cfg, err := openSession(ctx, core.Options{NoPush: !wait})
			if err != nil {
				return err
			}
			defer closeSession(s)

			keys, err := parseKeys(args, cfg.ChatID)
			if err != nil {
				return err
			}
			started, err := startDownloads(ctx, cmd.OutOrStdout(), s, keys)
			if err != nil || !wait {
				return err
			}

			var failed []string
			for _, key := range started {
				if err := follow(ctx, s, key, progress.NewCLIProgress()); err != nil {
					if errors.Is(err, context.Canceled) {
						return err
					}
					failed = append(failed, key.String())
				}
			}
			if len(failed) > 0 {
				return fmt.Errorf("%d download(s) failed: %s", len(failed), strings.Join(failed, ", "))
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Follow progress until the downloads finish")

	return cmd
}

// startDownloads selects the idle records among keys and commits the
// selection. It returns the keys that were started.
func startDownloads(ctx context.Context, out io.Writer, s *core.Session, keys []models.RecordKey) ([]models.RecordKey, error) {
	missing, err := findRecords(ctx, s, keys)
	if err != nil {
		return nil, err
	}
	if len(missing) > 0 {
		names := make([]string, len(missing))
		for i, k := range missing {
			names[i] = k.String()
		}
		return nil, fmt.Errorf("not in the file list: %s", strings.Join(names, ", "))
	}

	sel := s.Selection()
	sel.Clear()
	for _, key := range keys {
		if _, err := sel.Toggle(key); err != nil {
			if errors.Is(err, state.ErrNotIdle) {
				rec, _ := s.Store().Lookup(key)
				fmt.Fprintf(out, "Skipping %s (%s): %s\n", key, sanitize.Line(rec.DisplayName()), rec.DownloadStatus)
				continue
			}
			return nil, err
		}
	}

	started := sel.Members()
	if len(started) == 0 {
		fmt.Fprintln(out, "Nothing to download")
		return nil, nil
	}
	if err := s.StartSelected(ctx); err != nil {
		return nil, fmt.Errorf("failed to start downloads: %w", err)
	}
	fmt.Fprintf(out, "Started %d %s\n", len(started), strs.Pluralize("download", int64(len(started))))
	return started, nil
}

// follow reports the progress of key until it completes or fails.
func follow(ctx context.Context, s *core.Session, key models.RecordKey, rep progress.Reporter) error {
	bus := s.EventBus()
	changed := bus.Subscribe(state.EventRecordsChanged)
	defer bus.UnsubscribeAll(changed)

	f := progress.NewFollower(rep)
	observe := func() (bool, error) {
		rec, ok := s.Store().Lookup(key)
		if !ok {
			return true, fmt.Errorf("%s left the file list", key)
		}
		return f.Observe(rec)
	}

	if done, err := observe(); done {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-changed:
			if !ok {
				return errors.New("session closed")
			}
			if done, err := observe(); done {
				return err
			}
		}
	}
}

// newCancelCmd creates the 'cancel' command.
func newCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <chatId:fileId> [chatId:fileId...]",
		Short: "Cancel downloads",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return eachKey(cmd, args, "Cancelled", func(ctx context.Context, s *core.Session, key models.RecordKey) error {
				return s.CancelDownload(ctx, key)
			})
		},
	}
}

// newPauseCmd creates the 'pause' command, or 'resume' when paused is false.
func newPauseCmd(paused bool) *cobra.Command {
	use, short, done := "pause", "Pause downloads", "Paused"
	if !paused {
		use, short, done = "resume", "Resume paused downloads", "Resumed"
	}
	return &cobra.Command{
		Use:   use + " <chatId:fileId> [chatId:fileId...]",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return eachKey(cmd, args, done, func(ctx context.Context, s *core.Session, key models.RecordKey) error {
				return s.TogglePause(ctx, key, paused)
			})
		},
	}
}

// eachKey runs action for every key argument and reports per key.
func eachKey(cmd *cobra.Command, args []string, verb string, action func(context.Context, *core.Session, models.RecordKey) error) error {
	ctx := GetContext()
	s, cfg, err := openSession(ctx, core.Options{NoPush: true})
	if err != nil {
		return err
	}
	defer closeSession(s)

	keys, err := parseKeys(args, cfg.ChatID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	var failed int
	for _, key := range keys {
		if err := action(ctx, s, key); err != nil {
			failed++
			fmt.Fprintf(out, "✗ %s: %v\n", key, err)
			continue
		}
		fmt.Fprintf(out, "%s %s\n", verb, key)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d request(s) failed", failed, len(keys))
	}
	return nil
}
