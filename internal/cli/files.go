package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/telegram-files/tfsync/internal/config"
	"github.com/telegram-files/tfsync/internal/core"
	"github.com/telegram-files/tfsync/internal/models"
	"github.com/telegram-files/tfsync/internal/util/sanitize"
	strs "github.com/telegram-files/tfsync/internal/util/strings"
)

// DefaultPrefsKey is the preference section of the chat file list.
const DefaultPrefsKey = "telegramFileList"

// newFilesCmd creates the 'files' command.
func newFilesCmd() *cobra.Command {
	var filter models.FilterSpec
	var pages int
	var prefsKey string

	cmd := &cobra.Command{
		Use:   "files",
		Short: "List the files of the chat",
		Long: `List the files the chat exposes, with their download status.

The listing follows the saved display preferences (see 'tfsync prefs'):
the detailed layout prints a table with the configured columns, the
gallery layout prints one card per file.

Examples:
  tfsync files
  tfsync files --type video --status idle
  tfsync files --search report --pages 3`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if pages < 1 {
				return fmt.Errorf("--pages must be at least 1, got %d", pages)
			}
			filter = filter.Normalize()
			if err := filter.Validate(); err != nil {
				return err
			}

			prefsStore, err := config.NewPrefsStore("")
			if err != nil {
				return err
			}
			prefs, err := prefsStore.Get(prefsKey)
			if err != nil {
				return err
			}

			ctx := GetContext()
			s, _, err := openSession(ctx, core.Options{Filter: filter, NoPush: true})
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
				return fmt.Errorf("failed to list files: %w", err)
			}

			records := s.Snapshot()
			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "No files found")
				return nil
			}

			if prefs.Layout == config.LayoutGallery {
				renderGallery(out, records)
			} else {
				renderTable(out, records, prefs)
			}

			fmt.Fprintf(out, "\n%d %s", len(records), strs.Pluralize("file", int64(len(records))))
			if s.HasMore() {
				fmt.Fprint(out, ", more available (use --pages)")
			}
			fmt.Fprintln(out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&filter.Search, "search", "s", "", "Search term")
	cmd.Flags().StringVarP(&filter.Type, "type", "t", models.FilterAll, "File type: all, photo, video, audio, file")
	cmd.Flags().StringVar(&filter.Status, "status", models.FilterAll, "Download status: all, idle, downloading, paused, completed, error")
	cmd.Flags().IntVarP(&pages, "pages", "n", 1, "Number of pages to load")
	cmd.Flags().StringVar(&prefsKey, "prefs-key", DefaultPrefsKey, "Preference section to render with")

	return cmd
}

// columnWidths are the fixed widths of the table columns.
var columnWidths = map[string]int{
	"content": 40,
	"type":    9,
	"size":    10,
	"status":  18,
	"extra":   20,
	"actions": 16,
}

// renderTable prints the detailed layout.
func renderTable(w io.Writer, records []models.FileRecord, prefs config.ListPrefs) {
	cols := prefs.VisibleColumns()
	if len(cols) == 0 {
		cols = []string{"content"}
	}

	fmt.Fprintf(w, "%-24s", "KEY")
	for _, c := range cols {
		fmt.Fprintf(w, " %-*s", columnWidths[c], strings.ToUpper(c))
	}
	fmt.Fprintln(w)

	for _, rec := range records {
		fmt.Fprintf(w, "%-24s", rec.Key())
		for _, c := range cols {
			fmt.Fprintf(w, " %-*s", columnWidths[c], truncate(cell(rec, c), columnWidths[c]))
		}
		fmt.Fprintln(w)

		// Taller rows show the caption and local path under the row.
		if prefs.RowHeight != config.RowSmall && rec.Caption != "" {
			fmt.Fprintf(w, "%-24s   %s\n", "", truncate(firstLine(sanitize.Text(rec.Caption)), 80))
		}
		if prefs.RowHeight == config.RowLarge && rec.LocalPath != "" {
			fmt.Fprintf(w, "%-24s   -> %s\n", "", rec.LocalPath)
		}
	}
}

func cell(rec models.FileRecord, column string) string {
	switch column {
	case "content":
		name := sanitize.Line(rec.DisplayName())
		if rec.HasSensitiveContent {
			name += " [sensitive]"
		}
		return name
	case "type":
		return string(rec.Type)
	case "size":
		return formatBytes(rec.Size)
	case "status":
		return formatStatus(rec)
	case "extra":
		if rec.Date > 0 {
			return time.Unix(rec.Date, 0).Format("2006-01-02 15:04")
		}
		return rec.MimeType
	case "actions":
		return strings.Join(actions(rec.DownloadStatus), ",")
	}
	return ""
}

// actions lists the commands that apply to a record in status.
func actions(status models.DownloadStatus) []string {
	switch status {
	case models.StatusDownloading:
		return []string{"pause", "cancel"}
	case models.StatusPaused:
		return []string{"resume", "cancel"}
	case models.StatusCompleted:
		return nil
	default:
		return []string{"download"}
	}
}

// renderGallery prints the gallery layout.
func renderGallery(w io.Writer, records []models.FileRecord) {
	for _, rec := range records {
		marker := "[" + string(rec.Type) + "]"
		if rec.HasSensitiveContent {
			marker += "[sensitive]"
		}
		fmt.Fprintf(w, "%s %s\n", marker, sanitize.Line(rec.DisplayName()))
		fmt.Fprintf(w, "    %s  %s  %s\n\n", rec.Key(), formatBytes(rec.Size), formatStatus(rec))
	}
}

func formatStatus(rec models.FileRecord) string {
	status := rec.DownloadStatus
	if status == "" {
		status = models.StatusIdle
	}
	switch status {
	case models.StatusDownloading, models.StatusPaused:
		return fmt.Sprintf("%s %.0f%%", status, rec.Percent())
	}
	return string(status)
}

// formatBytes formats a byte count in binary units.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func truncate(s string, width int) string {
	r := []rune(s)
	if width <= 0 || len(r) <= width {
		return s
	}
	if width <= 1 {
		return string(r[:width])
	}
	return string(r[:width-1]) + "…"
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
