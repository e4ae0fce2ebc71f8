// Package notify sends desktop notifications when watched downloads finish.
// It uses github.com/gen2brain/beeep for cross-platform notification support.
package notify

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gen2brain/beeep"

	"github.com/telegram-files/tfsync/internal/logging"
	"github.com/telegram-files/tfsync/internal/models"
	"github.com/telegram-files/tfsync/internal/util/sanitize"
)

// Notifier handles desktop notifications.
type Notifier struct {
	logger *logging.Logger
	cfg    Config
	mu     sync.RWMutex

	// send delivers one notification; replaced in tests.
	send func(title, message string) error
}

// Config holds notification configuration.
type Config struct {
	// Enabled determines if notifications are sent.
	Enabled bool

	// ShowDownloadComplete shows notifications for completed downloads.
	ShowDownloadComplete bool

	// ShowDownloadFailed shows notifications for failed downloads.
	ShowDownloadFailed bool

	// ShowConnectionLost shows a notification when the push channel starts
	// reconnecting.
	ShowConnectionLost bool
}

// DefaultConfig returns the default notification configuration.
// Notifications are off until enabled in config or with --notify.
func DefaultConfig() *Config {
	return &Config{
		Enabled:              false,
		ShowDownloadComplete: true,
		ShowDownloadFailed:   true,
		ShowConnectionLost:   false, // a flaky link would spam
	}
}

// NewNotifier creates a new notifier with the given configuration.
func NewNotifier(cfg *Config, logger *logging.Logger) *Notifier {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Notifier{
		logger: logger.Component("notify"),
		cfg:    *cfg,
		send: func(title, message string) error {
			return beeep.Notify(title, message, "")
		},
	}
}

// SetEnabled enables or disables notifications.
func (n *Notifier) SetEnabled(enabled bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cfg.Enabled = enabled
}

// IsEnabled returns whether notifications are enabled.
func (n *Notifier) IsEnabled() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.cfg.Enabled
}

func (n *Notifier) config() Config {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.cfg
}

// DownloadFinished notifies about a record that left the downloading state.
// err is nil for a completed download.
func (n *Notifier) DownloadFinished(rec models.FileRecord, err error) {
	if err == nil {
		n.DownloadComplete(rec)
	} else {
		n.DownloadFailed(rec, err)
	}
}

// DownloadComplete sends a notification for a completed download.
func (n *Notifier) DownloadComplete(rec models.FileRecord) {
	cfg := n.config()
	if !cfg.Enabled || !cfg.ShowDownloadComplete {
		return
	}

	name := truncate(sanitize.Line(rec.DisplayName()), 40)
	message := fmt.Sprintf("\"%s\" downloaded", name)
	if rec.LocalPath != "" {
		message = fmt.Sprintf("\"%s\" downloaded to:\n%s", name, shortenPath(rec.LocalPath))
	}

	if err := n.send("Download Complete", message); err != nil {
		n.logger.Warn().Err(err).Str("file", rec.Key().String()).Msg("Failed to send download complete notification")
	}
}

// DownloadFailed sends a notification for a failed download.
func (n *Notifier) DownloadFailed(rec models.FileRecord, cause error) {
	cfg := n.config()
	if !cfg.Enabled || !cfg.ShowDownloadFailed {
		return
	}

	message := fmt.Sprintf("\"%s\" failed:\n%s", truncate(sanitize.Line(rec.DisplayName()), 40), truncate(cause.Error(), 100))

	if err := n.send("Download Failed", message); err != nil {
		n.logger.Warn().Err(err).Str("file", rec.Key().String()).Msg("Failed to send download failed notification")
	}
}

// ConnectionLost notifies on the first reconnect attempt of a drop.
func (n *Notifier) ConnectionLost(attempt int) {
	cfg := n.config()
	if !cfg.Enabled || !cfg.ShowConnectionLost || attempt != 1 {
		return
	}

	if err := n.send("tfsync", "Lost the connection to the file server, reconnecting."); err != nil {
		n.logger.Warn().Err(err).Msg("Failed to send connection notification")
	}
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// shortenPath abbreviates a long path for display in notifications.
func shortenPath(path string) string {
	const maxLen = 60

	if len(path) <= maxLen {
		return path
	}

	// Try to show drive/root + ... + last 2 path components
	_, file := filepath.Split(path)
	parentDir := filepath.Base(filepath.Dir(path))
	short := filepath.Join("...", parentDir, file)

	vol := filepath.VolumeName(path)
	if vol != "" && len(vol)+len(short)+1 <= maxLen {
		short = vol + string(filepath.Separator) + short
	}

	if len(short) > maxLen {
		return "..." + path[len(path)-(maxLen-3):]
	}
	return short
}

// ParseConfig reads notification settings from the [notify] config section.
// Expected keys: enabled, download_complete, download_failed, connection_lost
func ParseConfig(settings map[string]string) *Config {
	cfg := DefaultConfig()

	if v, ok := settings["enabled"]; ok {
		cfg.Enabled = strings.ToLower(v) == "true"
	}
	if v, ok := settings["download_complete"]; ok {
		cfg.ShowDownloadComplete = strings.ToLower(v) == "true"
	}
	if v, ok := settings["download_failed"]; ok {
		cfg.ShowDownloadFailed = strings.ToLower(v) == "true"
	}
	if v, ok := settings["connection_lost"]; ok {
		cfg.ShowConnectionLost = strings.ToLower(v) == "true"
	}

	return cfg
}
