package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/telegram-files/tfsync/internal/config"
	"github.com/telegram-files/tfsync/internal/core"
)

// newConfigCmd creates the 'config' command group.
func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage tfsync configuration",
		Long: `Configuration management commands for tfsync.

Commands:
  init  - Interactive configuration setup
  show  - Display current configuration
  test  - Test the connection to the file server
  path  - Show configuration file path`,
	}

	configCmd.AddCommand(newConfigInitCmd())
	configCmd.AddCommand(newConfigShowCmd())
	configCmd.AddCommand(newConfigTestCmd())
	configCmd.AddCommand(newConfigPathCmd())

	return configCmd
}

// configPath returns the --config path or the default location.
func configPath() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	return config.DefaultConfigPath()
}

// newConfigInitCmd creates the 'config init' command.
func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration interactively",
		Long: `Interactive configuration setup for tfsync.

The configuration is saved to ~/.config/tfsync/config.ini unless --config
is given. The proxy password is never saved; it is asked for when needed.

Use --force to overwrite existing configuration.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if !force {
				if _, err := os.Stat(path); err == nil {
					fmt.Fprintf(out, "Configuration already exists at: %s\n", path)
					fmt.Fprintln(out, "Use --force to overwrite or run 'config show' to view current config.")
					return nil
				}
			}

			cfg, err := promptConfig(bufio.NewReader(cmd.InOrStdin()), out)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if err := config.SaveConfig(cfg, path); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}
			GetLogger().Info().Str("path", path).Msg("Configuration saved")

			fmt.Fprintln(out)
			fmt.Fprintf(out, "✓ Configuration saved to: %s\n", path)
			fmt.Fprintln(out, "Test your configuration with: tfsync config test")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing configuration")

	return cmd
}

// promptConfig asks for the settings, offering defaults in brackets.
func promptConfig(reader *bufio.Reader, out io.Writer) (*config.Config, error) {
	cfg := config.NewConfig()
	var eof bool

	ask := func(label, def string) string {
		if def != "" {
			fmt.Fprintf(out, "%s [%s]: ", label, def)
		} else {
			fmt.Fprintf(out, "%s: ", label)
		}
		input, err := reader.ReadString('\n')
		eof = err == io.EOF
		if input = strings.TrimSpace(input); input == "" {
			return def
		}
		return input
	}

	fmt.Fprintln(out, "tfsync Configuration Setup")
	fmt.Fprintln(out, "==========================")
	fmt.Fprintln(out)

	cfg.BaseURL = ask("File server URL", cfg.BaseURL)

	for cfg.AccountID == "" {
		cfg.AccountID = ask("Telegram account id (required)", "")
		if cfg.AccountID == "" {
			if eof {
				return nil, errors.New("account id is required")
			}
			fmt.Fprintln(out, "  Error: account id is required")
		}
	}

	if raw := ask("Chat id (optional, can be passed with --chat)", ""); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid chat id %q: %w", raw, err)
		}
		cfg.ChatID = id
	}

	fmt.Fprintln(out)
	if proxy := strings.ToLower(ask("Configure proxy (y/N)", "n")); proxy == "y" || proxy == "yes" {
		fmt.Fprintln(out, "Proxy modes: no-proxy, system, basic, ntlm")
		cfg.ProxyMode = ask("Proxy mode", "system")
		if cfg.ProxyMode == "basic" || cfg.ProxyMode == "ntlm" {
			cfg.ProxyHost = ask("Proxy host", "")
			port := ask("Proxy port", "8080")
			if v, err := strconv.Atoi(port); err == nil && v > 0 {
				cfg.ProxyPort = v
			}
			cfg.ProxyUser = ask("Proxy user (optional)", "")
			cfg.NoProxy = ask("Hosts bypassing the proxy (comma-separated)", "")
		}
	}
	return cfg, nil
}

// newConfigShowCmd creates the 'config show' command.
func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		Long: `Display the current configuration settings, merged from the
configuration file and command-line flags.

Priority: flags > config file > defaults`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath()
			if err != nil {
				return err
			}
			cfg, err := config.LoadConfig(path)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			cfg.MergeWithFlags(baseURL, accountID, chatID, proxyMode)

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Current Configuration")
			fmt.Fprintln(out, "=====================")
			fmt.Fprintln(out)

			fmt.Fprintln(out, "Server:")
			fmt.Fprintf(out, "  Base URL:   %s\n", cfg.BaseURL)
			fmt.Fprintf(out, "  Account id: %s\n", valueOr(cfg.AccountID, "<not set>"))
			if cfg.ChatID != 0 {
				fmt.Fprintf(out, "  Chat id:    %d\n", cfg.ChatID)
			} else {
				fmt.Fprintln(out, "  Chat id:    <not set>")
			}
			fmt.Fprintln(out)

			fmt.Fprintln(out, "Proxy Settings:")
			fmt.Fprintf(out, "  Proxy Mode: %s\n", cfg.ProxyMode)
			if cfg.ProxyHost != "" {
				fmt.Fprintf(out, "  Proxy Host: %s\n", cfg.ProxyHost)
				fmt.Fprintf(out, "  Proxy Port: %d\n", cfg.ProxyPort)
			}
			if cfg.ProxyUser != "" {
				fmt.Fprintf(out, "  Proxy User: %s\n", cfg.ProxyUser)
			}
			if cfg.NoProxy != "" {
				fmt.Fprintf(out, "  No Proxy:   %s\n", cfg.NoProxy)
			}
			fmt.Fprintln(out)

			fmt.Fprintln(out, "Sync Settings:")
			fmt.Fprintf(out, "  Request Retries:   %d\n", cfg.RequestRetries)
			fmt.Fprintf(out, "  Probe Retries:     %d\n", cfg.ProbeRetries)
			fmt.Fprintf(out, "  Reconnect Backoff: %s - %s\n", cfg.ReconnectInitial, cfg.ReconnectMax)
			fmt.Fprintf(out, "  Event Buffer:      %d\n", cfg.EventBuffer)
			fmt.Fprintln(out)

			fmt.Fprintf(out, "Configuration file: %s\n", path)
			if _, err := os.Stat(path); os.IsNotExist(err) {
				fmt.Fprintln(out, "  (file does not exist - using defaults)")
			}
			return nil
		},
	}
}

// newConfigTestCmd creates the 'config test' command.
func newConfigTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Test the connection to the file server",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			ctx := GetContext()

			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			fmt.Fprintf(out, "Server: %s (account %s)\n", cfg.BaseURL, cfg.AccountID)
			fmt.Fprintln(out, "Testing connection...")

			s, err := core.Activate(ctx, cfg, core.Options{NoPush: true, Logger: GetLogger()})
			if err != nil {
				return err
			}
			defer closeSession(s)

			latency, err := s.Probe(ctx)
			if err != nil {
				fmt.Fprintln(out, "✗ Connection FAILED")
				fmt.Fprintf(out, "  Error: %v\n", err)
				return fmt.Errorf("connection test failed")
			}
			fmt.Fprintf(out, "✓ Connection SUCCESSFUL (%d ms)\n", latency.Milliseconds())
			return nil
		},
	}
}

// newConfigPathCmd creates the 'config path' command.
func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			path, err := configPath()
			if err != nil {
				return err
			}
			if cfgFile == "" {
				fmt.Fprintln(out, "Default configuration path:")
			} else {
				fmt.Fprintln(out, "Configuration path (from --config flag):")
			}
			fmt.Fprintf(out, "  %s\n\n", path)

			if info, err := os.Stat(path); err == nil {
				fmt.Fprintln(out, "Status: ✓ File exists")
				fmt.Fprintf(out, "Modified: %s\n", info.ModTime().Format("2006-01-02 15:04:05"))
			} else {
				fmt.Fprintln(out, "Status: File does not exist")
				fmt.Fprintln(out, "Create a configuration file with: tfsync config init")
			}
			return nil
		},
	}
}

func valueOr(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
