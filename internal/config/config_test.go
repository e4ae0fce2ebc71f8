package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNewConfig(t *testing.T) {
	cfg := NewConfig()

	if cfg.ProxyMode != "no-proxy" {
		t.Errorf("expected default ProxyMode no-proxy, got %s", cfg.ProxyMode)
	}
	if cfg.RequestRetries != 2 || cfg.ProbeRetries != 2 {
		t.Errorf("expected 2 request/probe retries, got %d/%d", cfg.RequestRetries, cfg.ProbeRetries)
	}
	if cfg.ReconnectInitial != 500*time.Millisecond || cfg.ReconnectMax != 30*time.Second {
		t.Errorf("unexpected reconnect defaults: %v/%v", cfg.ReconnectInitial, cfg.ReconnectMax)
	}
}

func TestLoadConfig_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.ini"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.BaseURL != NewConfig().BaseURL {
		t.Errorf("expected default BaseURL, got %s", cfg.BaseURL)
	}
}

func TestSaveAndLoadConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "sub", "config.ini")

	cfg := NewConfig()
	cfg.BaseURL = "https://files.example.com"
	cfg.AccountID = "42"
	cfg.ChatID = -1001
	cfg.ProxyMode = "basic"
	cfg.ProxyHost = "proxy.local"
	cfg.ProxyPort = 3128
	cfg.ProxyUser = "bob"
	cfg.ProxyPassword = "secret"
	cfg.ReconnectInitial = time.Second
	cfg.ReconnectMax = 10 * time.Second
	cfg.Notify = map[string]string{"enabled": "true", "connection_lost": "true"}

	if err := SaveConfig(cfg, configPath); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if strings.Contains(string(data), "secret") {
		t.Error("proxy password must not be persisted")
	}

	loaded, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if loaded.BaseURL != cfg.BaseURL || loaded.AccountID != "42" || loaded.ChatID != -1001 {
		t.Errorf("connection settings mismatch: %+v", loaded)
	}
	if loaded.ProxyHost != "proxy.local" || loaded.ProxyPort != 3128 || loaded.ProxyUser != "bob" {
		t.Errorf("proxy settings mismatch: %+v", loaded)
	}
	if loaded.ReconnectInitial != time.Second || loaded.ReconnectMax != 10*time.Second {
		t.Errorf("backoff mismatch: %v/%v", loaded.ReconnectInitial, loaded.ReconnectMax)
	}
	if loaded.Notify["enabled"] != "true" || loaded.Notify["connection_lost"] != "true" {
		t.Errorf("notify section mismatch: %v", loaded.Notify)
	}
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		cfg := NewConfig()
		cfg.AccountID = "1"
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"valid", func(*Config) {}, nil},
		{"missing base url", func(c *Config) { c.BaseURL = " " }, ErrMissingBaseURL},
		{"bad scheme", func(c *Config) { c.BaseURL = "ftp://x" }, ErrInvalidBaseURL},
		{"missing account", func(c *Config) { c.AccountID = "" }, ErrMissingAccountID},
		{"bad proxy", func(c *Config) { c.ProxyMode = "socks" }, ErrInvalidProxyMode},
		{"bad backoff", func(c *Config) { c.ReconnectInitial = time.Minute }, ErrInvalidBackoff},
		{"bad retries", func(c *Config) { c.ProbeRetries = -1 }, ErrInvalidRetries},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestMergeWithFlags(t *testing.T) {
	cfg := NewConfig()
	cfg.AccountID = "file"
	cfg.MergeWithFlags("", "flag", 7, "")

	if cfg.AccountID != "flag" || cfg.ChatID != 7 {
		t.Errorf("flags not merged: %+v", cfg)
	}
	if cfg.BaseURL != NewConfig().BaseURL || cfg.ProxyMode != "no-proxy" {
		t.Error("empty flags must not override file values")
	}
}

func TestPushURL(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"http://localhost:8080", "ws://localhost:8080/ws?accountId=9"},
		{"https://files.example.com/api/", "wss://files.example.com/api/ws?accountId=9"},
	}
	for _, tt := range tests {
		cfg := NewConfig()
		cfg.BaseURL = tt.base
		cfg.AccountID = "9"
		got, err := cfg.PushURL()
		if err != nil {
			t.Fatalf("PushURL(%s) error: %v", tt.base, err)
		}
		if got != tt.want {
			t.Errorf("PushURL(%s) = %s, want %s", tt.base, got, tt.want)
		}
	}
}
