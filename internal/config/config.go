// Package config provides configuration management for tfsync.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gopkg.in/ini.v1"

	"github.com/telegram-files/tfsync/internal/constants"
)

// Config is the engine configuration.
//
// INI format:
//
//	[server]
//	base_url = http://localhost:8080
//
//	[account]
//	account_id = 1
//	chat_id = -1001234
//
//	[proxy]
//	mode = no-proxy
//	host =
//	port = 0
//	user =
//	no_proxy =
//
//	[sync]
//	request_retries = 2
//	probe_retries = 2
//	reconnect_initial_ms = 500
//	reconnect_max_ms = 30000
//	event_buffer = 1000
//
//	[notify]
//	enabled = false
//	download_complete = true
//	download_failed = true
//	connection_lost = false
type Config struct {
	BaseURL string

	AccountID string
	ChatID    int64

	// Proxy settings
	ProxyMode     string // "no-proxy", "system", "basic", "ntlm"
	ProxyHost     string
	ProxyPort     int
	ProxyUser     string
	ProxyPassword string // never persisted
	NoProxy       string // Comma-separated list of hosts to bypass proxy

	RequestRetries   int
	ProbeRetries     int
	ReconnectInitial time.Duration
	ReconnectMax     time.Duration
	EventBuffer      int

	// Notify holds the raw [notify] section, parsed by the notify package.
	Notify map[string]string
}

// Validation errors
var (
	ErrMissingBaseURL   = errors.New("base_url is required")
	ErrInvalidBaseURL   = errors.New("base_url must be an http(s) URL")
	ErrMissingAccountID = errors.New("account_id is required")
	ErrInvalidProxyMode = errors.New("proxy mode must be one of no-proxy, system, basic, ntlm")
	ErrInvalidBackoff   = errors.New("reconnect_initial_ms must be > 0 and <= reconnect_max_ms")
	ErrInvalidRetries   = errors.New("retry counts must be between 0 and 10")
)

// NewConfig returns a Config with default values.
func NewConfig() *Config {
	return &Config{
		BaseURL:          "http://localhost:8080",
		ProxyMode:        "no-proxy",
		RequestRetries:   constants.RequestRetries,
		ProbeRetries:     constants.ProbeRetries,
		ReconnectInitial: constants.ReconnectInitialDelay,
		ReconnectMax:     constants.ReconnectMaxDelay,
		EventBuffer:      constants.EventBusDefaultBuffer,
	}
}

// DefaultConfigDir returns the directory holding the config and preference
// files.
//   - Windows: %APPDATA%\tfsync
//   - Unix: ~/.config/tfsync
func DefaultConfigDir() (string, error) {
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "tfsync"), nil
		}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "tfsync"), nil
}

// DefaultConfigPath returns the default path for the config file.
func DefaultConfigPath() (string, error) {
	dir, err := DefaultConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.ini"), nil
}

// LoadConfig loads configuration from an INI file.
// If the file doesn't exist, returns a config with default values and no error.
// If the file exists but is invalid, returns an error.
func LoadConfig(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			return cfg, nil
		}
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	iniFile, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	server := iniFile.Section("server")
	cfg.BaseURL = server.Key("base_url").MustString(cfg.BaseURL)

	account := iniFile.Section("account")
	cfg.AccountID = account.Key("account_id").String()
	cfg.ChatID = account.Key("chat_id").MustInt64(0)

	proxy := iniFile.Section("proxy")
	cfg.ProxyMode = proxy.Key("mode").MustString(cfg.ProxyMode)
	cfg.ProxyHost = proxy.Key("host").String()
	cfg.ProxyPort = proxy.Key("port").MustInt(0)
	cfg.ProxyUser = proxy.Key("user").String()
	cfg.NoProxy = proxy.Key("no_proxy").String()

	sync := iniFile.Section("sync")
	cfg.RequestRetries = sync.Key("request_retries").MustInt(cfg.RequestRetries)
	cfg.ProbeRetries = sync.Key("probe_retries").MustInt(cfg.ProbeRetries)
	cfg.ReconnectInitial = time.Duration(sync.Key("reconnect_initial_ms").MustInt64(cfg.ReconnectInitial.Milliseconds())) * time.Millisecond
	cfg.ReconnectMax = time.Duration(sync.Key("reconnect_max_ms").MustInt64(cfg.ReconnectMax.Milliseconds())) * time.Millisecond
	cfg.EventBuffer = sync.Key("event_buffer").MustInt(cfg.EventBuffer)

	if iniFile.HasSection("notify") {
		cfg.Notify = iniFile.Section("notify").KeysHash()
	}

	return cfg, nil
}

// SaveConfig saves configuration to an INI file using a temp file + rename.
// The proxy password is never written.
func SaveConfig(cfg *Config, path string) error {
	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			return fmt.Errorf("failed to determine config path: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	iniFile := ini.Empty()

	server, err := iniFile.NewSection("server")
	if err != nil {
		return fmt.Errorf("failed to create server section: %w", err)
	}
	server.Key("base_url").SetValue(cfg.BaseURL)

	account, err := iniFile.NewSection("account")
	if err != nil {
		return fmt.Errorf("failed to create account section: %w", err)
	}
	account.Key("account_id").SetValue(cfg.AccountID)
	account.Key("chat_id").SetValue(fmt.Sprintf("%d", cfg.ChatID))

	proxy, err := iniFile.NewSection("proxy")
	if err != nil {
		return fmt.Errorf("failed to create proxy section: %w", err)
	}
	proxy.Key("mode").SetValue(cfg.ProxyMode)
	proxy.Key("host").SetValue(cfg.ProxyHost)
	proxy.Key("port").SetValue(fmt.Sprintf("%d", cfg.ProxyPort))
	proxy.Key("user").SetValue(cfg.ProxyUser)
	proxy.Key("no_proxy").SetValue(cfg.NoProxy)

	sync, err := iniFile.NewSection("sync")
	if err != nil {
		return fmt.Errorf("failed to create sync section: %w", err)
	}
	sync.Key("request_retries").SetValue(fmt.Sprintf("%d", cfg.RequestRetries))
	sync.Key("probe_retries").SetValue(fmt.Sprintf("%d", cfg.ProbeRetries))
	sync.Key("reconnect_initial_ms").SetValue(fmt.Sprintf("%d", cfg.ReconnectInitial.Milliseconds()))
	sync.Key("reconnect_max_ms").SetValue(fmt.Sprintf("%d", cfg.ReconnectMax.Milliseconds()))
	sync.Key("event_buffer").SetValue(fmt.Sprintf("%d", cfg.EventBuffer))

	if len(cfg.Notify) > 0 {
		notify, err := iniFile.NewSection("notify")
		if err != nil {
			return fmt.Errorf("failed to create notify section: %w", err)
		}
		for k, v := range cfg.Notify {
			notify.Key(k).SetValue(v)
		}
	}

	return atomicSave(iniFile, path)
}

// atomicSave writes f to path via a temporary file and rename.
func atomicSave(f *ini.File, path string) error {
	tmpPath := path + ".tmp"
	if err := f.SaveTo(tmpPath); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if runtime.GOOS != "windows" {
		if err := os.Chmod(tmpPath, 0600); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("failed to set permissions: %w", err)
		}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save %s: %w", filepath.Base(path), err)
	}
	return nil
}

// MergeWithFlags overrides file values with non-empty command-line values.
func (c *Config) MergeWithFlags(baseURL, accountID string, chatID int64, proxyMode string) {
	if baseURL != "" {
		c.BaseURL = baseURL
	}
	if accountID != "" {
		c.AccountID = accountID
	}
	if chatID != 0 {
		c.ChatID = chatID
	}
	if proxyMode != "" {
		c.ProxyMode = proxyMode
	}
}

// Validate checks the configuration for a session.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return ErrMissingBaseURL
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidBaseURL
	}
	if strings.TrimSpace(c.AccountID) == "" {
		return ErrMissingAccountID
	}
	switch strings.ToLower(c.ProxyMode) {
	case "", "no-proxy", "system", "basic", "ntlm":
	default:
		return ErrInvalidProxyMode
	}
	if c.ReconnectInitial <= 0 || c.ReconnectInitial > c.ReconnectMax {
		return ErrInvalidBackoff
	}
	if c.RequestRetries < 0 || c.RequestRetries > 10 || c.ProbeRetries < 0 || c.ProbeRetries > 10 {
		return ErrInvalidRetries
	}
	return nil
}

// PushURL derives the websocket URL of the push channel from BaseURL.
func (c *Config) PushURL() (string, error) {
	u, err := url.Parse(strings.TrimSuffix(c.BaseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	q := u.Query()
	q.Set("accountId", c.AccountID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
