package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/telegram-files/tfsync/internal/config"
)

// runCLI executes the full command tree with args and returns its output.
func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	AddCommands(root)

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestConfigCommandStructure(t *testing.T) {
	cmd := newConfigCmd()
	want := map[string]bool{"init": false, "show": false, "test": false, "path": false}
	for _, sub := range cmd.Commands() {
		if _, ok := want[sub.Name()]; ok {
			want[sub.Name()] = true
		}
		if sub.Short == "" {
			t.Errorf("%s: Short description is empty", sub.Name())
		}
		if sub.RunE == nil {
			t.Errorf("%s: RunE function is nil", sub.Name())
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("config subcommand %q missing", name)
		}
	}
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tfsync", "config.ini")

	input := strings.Join([]string{
		"http://files.local:9000", // base url
		"",                        // account id, asked again
		"7",                       // account id
		"-100200",                 // chat id
		"y",                       // configure proxy
		"basic",
		"proxy.local",
		"3128",
		"alice",
		"localhost,.internal",
	}, "\n") + "\n"

	out, err := runCLI(t, input, "config", "init", "--config", path)
	if err != nil {
		t.Fatalf("config init: %v\n%s", err, out)
	}
	if !strings.Contains(out, "account id is required") {
		t.Errorf("empty account id was not rejected:\n%s", out)
	}
	if !strings.Contains(out, "Configuration saved to: "+path) {
		t.Errorf("output missing saved path:\n%s", out)
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.BaseURL != "http://files.local:9000" || cfg.AccountID != "7" || cfg.ChatID != -100200 {
		t.Errorf("server settings = %q %q %d", cfg.BaseURL, cfg.AccountID, cfg.ChatID)
	}
	if cfg.ProxyMode != "basic" || cfg.ProxyHost != "proxy.local" || cfg.ProxyPort != 3128 || cfg.ProxyUser != "alice" {
		t.Errorf("proxy settings = %+v", cfg)
	}
	if cfg.NoProxy != "localhost,.internal" {
		t.Errorf("NoProxy = %q", cfg.NoProxy)
	}
}

func TestConfigInit_Defaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.ini")

	out, err := runCLI(t, "\n5\n\n\n", "config", "init", "--config", path)
	if err != nil {
		t.Fatalf("config init: %v\n%s", err, out)
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	def := config.NewConfig()
	if cfg.BaseURL != def.BaseURL || cfg.ProxyMode != "no-proxy" || cfg.ChatID != 0 {
		t.Errorf("defaults not kept: %+v", cfg)
	}
}

func TestConfigInit_NoAccountAtEOF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.ini")
	if _, err := runCLI(t, "\n", "config", "init", "--config", path); err == nil {
		t.Fatal("expected an error when stdin ends without an account id")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("config file should not be written, stat err = %v", err)
	}
}

func TestConfigInit_ExistingWithoutForce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.ini")
	cfg := config.NewConfig()
	cfg.AccountID = "1"
	if err := config.SaveConfig(cfg, path); err != nil {
		t.Fatal(err)
	}

	out, err := runCLI(t, "", "config", "init", "--config", path)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, "already exists") {
		t.Errorf("expected already-exists notice:\n%s", out)
	}
}

func TestConfigShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.ini")
	cfg := config.NewConfig()
	cfg.AccountID = "42"
	cfg.ChatID = 77
	cfg.ProxyMode = "system"
	if err := config.SaveConfig(cfg, path); err != nil {
		t.Fatal(err)
	}

	out, err := runCLI(t, "", "config", "show", "--config", path, "--chat", "88")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	for _, want := range []string{
		"Account id: 42",
		"Chat id:    88", // flag wins over the file
		"Proxy Mode: system",
		"Configuration file: " + path,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "does not exist") {
		t.Errorf("existing file reported missing:\n%s", out)
	}
}

func TestConfigPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.ini")

	out, err := runCLI(t, "", "config", "path", "--config", path)
	if err != nil {
		t.Fatalf("config path: %v", err)
	}
	if !strings.Contains(out, "from --config flag") || !strings.Contains(out, path) {
		t.Errorf("unexpected output:\n%s", out)
	}
	if !strings.Contains(out, "File does not exist") {
		t.Errorf("missing file not reported:\n%s", out)
	}
}
