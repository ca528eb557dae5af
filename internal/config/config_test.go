package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/roelfdiedericks/tgstatctl/internal/bus"
)

// isolate points HOME and the working directory at temp dirs so discovery
// and .env loading see nothing from the developer's machine.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, key := range []string{
		"TGSTATCTL_DIRECTORY_URL", "TGSTATCTL_EXPORT_URL", "TGSTATCTL_EXPORT_DIR",
		"TGSTATCTL_LOG_LEVEL", "TGSTATCTL_SCHEDULE",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	t.Chdir(t.TempDir())
	return home
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestLoadDefaults(t *testing.T) {
	home := isolate(t)

	cfg, err := Load("", Overrides{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Path != "" {
		t.Errorf("expected no config path, got %q", cfg.Path)
	}
	if cfg.Directory.Timeout.Std() != 30*time.Second {
		t.Errorf("directory timeout = %v", cfg.Directory.Timeout)
	}
	if want := filepath.Join(home, ".tgstatctl", "exports"); cfg.Export.Dir != want {
		t.Errorf("export dir = %q, want %q", cfg.Export.Dir, want)
	}
	if !cfg.TUI.LogsVisible() {
		t.Error("logs tab should default to visible")
	}
}

func TestLoadTOMLFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "custom.toml")
	writeFile(t, path, `
[directory]
url = "https://parser.example.com/channels"
timeout = "10s"

[scan]
preset = "full"
use_proxies = true

[tui]
show_logs = false
`)

	cfg, err := Load(path, Overrides{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Directory.URL != "https://parser.example.com/channels" {
		t.Errorf("url = %q", cfg.Directory.URL)
	}
	if cfg.Directory.Timeout.Std() != 10*time.Second {
		t.Errorf("timeout = %v", cfg.Directory.Timeout)
	}
	if cfg.Scan.Preset != PresetFull || !cfg.Scan.UseProxies {
		t.Errorf("scan = %+v", cfg.Scan)
	}
	// untouched sections keep defaults
	if cfg.Scan.Concurrency != 5 || cfg.Export.Timeout.Std() != 2*time.Minute {
		t.Errorf("defaults lost: %+v %+v", cfg.Scan, cfg.Export)
	}
	if cfg.TUI.LogsVisible() {
		t.Error("show_logs = false was not applied")
	}
}

func TestLoadYAMLDiscovered(t *testing.T) {
	isolate(t)
	writeFile(t, "tgstatctl.yaml", `
export:
  url: http://export.local/api
  timeout: 45s
collect:
  schedule: "@hourly"
`)

	cfg, err := Load("", Overrides{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !strings.HasSuffix(cfg.Path, "tgstatctl.yaml") {
		t.Errorf("path = %q", cfg.Path)
	}
	if cfg.Export.URL != "http://export.local/api" || cfg.Export.Timeout.Std() != 45*time.Second {
		t.Errorf("export = %+v", cfg.Export)
	}
	if cfg.Collect.Schedule != "@hourly" {
		t.Errorf("schedule = %q", cfg.Collect.Schedule)
	}
}

func TestLayering(t *testing.T) {
	isolate(t)
	writeFile(t, "tgstatctl.toml", `
[directory]
url = "http://file.local/dir"
[export]
url = "http://file.local/export"
`)
	writeFile(t, ".env", "TGSTATCTL_EXPORT_URL=http://dotenv.local/export\n")
	t.Setenv("TGSTATCTL_DIRECTORY_URL", "http://env.local/dir")

	cfg, err := Load("", Overrides{DirectoryURL: "http://flag.local/dir"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Directory.URL != "http://flag.local/dir" {
		t.Errorf("flag should win, got %q", cfg.Directory.URL)
	}
	if cfg.Export.URL != "http://dotenv.local/export" {
		t.Errorf(".env should beat the file, got %q", cfg.Export.URL)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"ok", func(c *Config) {}, ""},
		{"bad scheme", func(c *Config) { c.Directory.URL = "ftp://x" }, "directory.url"},
		{"no host", func(c *Config) { c.Export.URL = "http://" }, "export.url"},
		{"zero timeout", func(c *Config) { c.Directory.Timeout = 0 }, "directory.timeout"},
		{"preset", func(c *Config) { c.Scan.Preset = "turbo" }, "scan.preset"},
		{"cron", func(c *Config) { c.Collect.Schedule = "every day" }, "collect.schedule"},
		{"level", func(c *Config) { c.Logging.Level = "chatty" }, "logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.want == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %v does not mention %q", err, tt.want)
			}
		})
	}
}

func TestReadFileUnsupported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	writeFile(t, path, "{}")
	if _, err := ReadFile(path); err == nil {
		t.Fatal("expected error for .json")
	}
}

func TestSaveRoundTripWithBackup(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := Default()
	cfg.Directory.URL = "https://one.example.com/dir"
	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	cfg.Directory.URL = "https://two.example.com/dir"
	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("perm = %v", info.Mode().Perm())
	}

	loaded, err := Load(path, Overrides{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Directory.URL != "https://two.example.com/dir" {
		t.Errorf("url = %q", loaded.Directory.URL)
	}
	if loaded.Directory.Timeout != cfg.Directory.Timeout {
		t.Errorf("timeout did not round-trip: %v", loaded.Directory.Timeout)
	}

	data, err := os.ReadFile(path + ".bak")
	if err != nil {
		t.Fatalf("missing backup: %v", err)
	}
	if !strings.Contains(string(data), "one.example.com") {
		t.Errorf("backup holds wrong version: %s", data)
	}
}

func TestWatchPublishesReload(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, "[directory]\nurl = \"http://a.local/dir\"\n")

	cfg, err := Load(path, Overrides{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	b := bus.New()
	got := make(chan *Config, 4)
	b.Subscribe(bus.TopicConfigReloaded, func(e bus.Event) {
		got <- e.Data.(*Config)
	})

	w, err := Watch(cfg, Overrides{}, b)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer w.Stop()

	writeFile(t, path, "[directory]\nurl = \"http://b.local/dir\"\n")

	select {
	case reloaded := <-got:
		if reloaded.Directory.URL != "http://b.local/dir" {
			t.Errorf("reloaded url = %q", reloaded.Directory.URL)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reload published")
	}
}
