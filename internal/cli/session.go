package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/telegram-files/tfsync/internal/config"
	"github.com/telegram-files/tfsync/internal/core"
	"github.com/telegram-files/tfsync/internal/http"
	"github.com/telegram-files/tfsync/internal/models"
)

// loadConfig reads the config file and applies the global flag overrides.
// A missing proxy password is prompted for when stdin is a terminal.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, err
	}
	cfg.MergeWithFlags(baseURL, accountID, chatID, proxyMode)

	if http.NeedsProxyPassword(cfg) {
		fd := int(os.Stdin.Fd())
		if !term.IsTerminal(fd) {
			return nil, fmt.Errorf("proxy mode %s needs a password and stdin is not a terminal", cfg.ProxyMode)
		}
		fmt.Fprintf(os.Stderr, "Proxy password for %s@%s: ", cfg.ProxyUser, cfg.ProxyHost)
		pw, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return nil, fmt.Errorf("failed to read proxy password: %w", err)
		}
		cfg.ProxyPassword = string(pw)
	}
	return cfg, nil
}

// openSession loads config and activates a session for the configured chat.
func openSession(ctx context.Context, opts core.Options) (*core.Session, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.ChatID == 0 {
		return nil, nil, errors.New("no chat selected: set chat_id in the config or pass --chat")
	}
	opts.Logger = GetLogger()
	s, err := core.Activate(ctx, cfg, opts)
	if err != nil {
		return nil, nil, err
	}
	return s, cfg, nil
}

// closeSession deactivates s, logging rather than returning the error so it
// can be deferred.
func closeSession(s *core.Session) {
	if err := s.Deactivate(); err != nil && !errors.Is(err, core.ErrNotActive) && !errors.Is(err, context.Canceled) {
		GetLogger().Debug().Err(err).Msg("session shutdown")
	}
}

// parseKeys parses chatId:fileId arguments. A bare file id is taken to be
// in the configured chat.
func parseKeys(args []string, defaultChat int64) ([]models.RecordKey, error) {
	keys := make([]models.RecordKey, 0, len(args))
	seen := make(map[models.RecordKey]bool, len(args))
	for _, arg := range args {
		var key models.RecordKey
		var id int64
		if _, err := fmt.Sscanf(arg, "%d", &id); err == nil && fmt.Sprint(id) == arg {
			if defaultChat == 0 {
				return nil, fmt.Errorf("file id %s has no chat: use chatId:fileId or --chat", arg)
			}
			key = models.RecordKey{ChatID: defaultChat, ID: id}
		} else {
			k, err := models.ParseRecordKey(arg)
			if err != nil {
				return nil, err
			}
			key = k
		}
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// findRecords loads pages until every key is in view or the list is
// exhausted. It returns the keys that were not found.
func findRecords(ctx context.Context, s *core.Session, keys []models.RecordKey) ([]models.RecordKey, error) {
	for {
		var missing []models.RecordKey
		for _, k := range keys {
			if _, ok := s.Store().Lookup(k); !ok {
				missing = append(missing, k)
			}
		}
		if len(missing) == 0 || !s.HasMore() {
			return missing, nil
		}
		if err := s.LoadMore(ctx); err != nil {
			return missing, fmt.Errorf("failed to load files: %w", err)
		}
	}
}
