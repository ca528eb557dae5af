// Package config loads tgstatctl settings from defaults, a TOML or YAML file,
// the environment and command-line overrides, in that order.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/roelfdiedericks/tgstatctl/internal/logging"
	"github.com/roelfdiedericks/tgstatctl/internal/paths"
)

// Scan presets shown on the Scrape Control tab.
const (
	PresetFast     = "fast"
	PresetFull     = "full"
	PresetSnapshot = "snapshot"
)

// Presets lists the known presets in display order.
var Presets = []string{PresetFast, PresetFull, PresetSnapshot}

// Config is the merged tgstatctl configuration.
type Config struct {
	Directory DirectoryConfig `toml:"directory" yaml:"directory"`
	Export    ExportConfig    `toml:"export" yaml:"export"`
	Scan      ScanConfig      `toml:"scan" yaml:"scan"`
	Collect   CollectConfig   `toml:"collect" yaml:"collect"`
	History   HistoryConfig   `toml:"history" yaml:"history"`
	Logging   LoggingConfig   `toml:"logging" yaml:"logging"`
	TUI       TUIConfig       `toml:"tui" yaml:"tui"`

	// Path is the file the config was loaded from, empty for defaults only.
	Path string `toml:"-" yaml:"-"`
}

type DirectoryConfig struct {
	URL     string   `toml:"url" yaml:"url"`
	Timeout Duration `toml:"timeout" yaml:"timeout"`
}

type ExportConfig struct {
	URL     string   `toml:"url" yaml:"url"`
	Dir     string   `toml:"dir" yaml:"dir"`
	Timeout Duration `toml:"timeout" yaml:"timeout"`
}

// ScanConfig holds the options displayed with a collection run. They label the
// run but are not sent to the backend.
type ScanConfig struct {
	Category    string `toml:"category" yaml:"category"`
	Concurrency int    `toml:"concurrency" yaml:"concurrency"`
	UseProxies  bool   `toml:"use_proxies" yaml:"use_proxies"`
	Preset      string `toml:"preset" yaml:"preset"`
	Raw         bool   `toml:"raw" yaml:"raw"`
}

type CollectConfig struct {
	Schedule string `toml:"schedule" yaml:"schedule"` // cron expression, empty disables
}

type HistoryConfig struct {
	Path  string `toml:"path" yaml:"path"`
	Limit int    `toml:"limit" yaml:"limit"`
}

type LoggingConfig struct {
	Level string `toml:"level" yaml:"level"`
	File  string `toml:"file" yaml:"file"`
}

type TUIConfig struct {
	ShowLogs *bool `toml:"show_logs" yaml:"show_logs"`
}

// LogsVisible reports whether the Logs tab is shown (default true).
func (t TUIConfig) LogsVisible() bool {
	return t.ShowLogs == nil || *t.ShowLogs
}

// Overrides are command-line values applied last. Empty fields are ignored.
type Overrides struct {
	DirectoryURL string
	ExportURL    string
	ExportDir    string
	LogLevel     string
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{
		Directory: DirectoryConfig{
			URL:     "http://localhost:8080/scraper",
			Timeout: Duration(30 * time.Second),
		},
		Export: ExportConfig{
			URL:     "http://localhost:8080/export",
			Timeout: Duration(2 * time.Minute),
		},
		Scan: ScanConfig{
			Category:    "all",
			Concurrency: 5,
			Preset:      PresetFast,
		},
		History: HistoryConfig{Limit: 50},
		Logging: LoggingConfig{Level: "info"},
	}
	if dir, err := paths.DefaultExportDir(); err == nil {
		cfg.Export.Dir = dir
	}
	if p, err := paths.DefaultHistoryPath(); err == nil {
		cfg.History.Path = p
	}
	return cfg
}

// Load builds the configuration. path overrides discovery; when empty the
// usual locations are searched and a missing file means defaults.
func Load(path string, ov Overrides) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.L_warn("config: failed to read .env", "error", err)
	}

	if path == "" {
		found, err := paths.ConfigPath()
		if err != nil {
			return nil, err
		}
		path = found
	}

	cfg := Default()
	if path != "" {
		expanded, err := paths.ExpandTilde(path)
		if err != nil {
			return nil, err
		}
		fileCfg, err := ReadFile(expanded)
		if err != nil {
			return nil, err
		}
		if err := mergo.Merge(cfg, fileCfg, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge %s: %w", expanded, err)
		}
		cfg.Path = expanded
		logging.L_debug("config: loaded", "path", expanded)
	}

	cfg.applyEnv()
	cfg.applyOverrides(ov)

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ReadFile parses a single config file without defaults. The format follows
// the extension: .toml, .yaml or .yml.
func ReadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := &Config{}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		md, err := toml.Decode(string(data), cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		for _, key := range md.Undecoded() {
			logging.L_warn("config: unknown key", "path", path, "key", key.String())
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	set := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	set("TGSTATCTL_DIRECTORY_URL", &c.Directory.URL)
	set("TGSTATCTL_EXPORT_URL", &c.Export.URL)
	set("TGSTATCTL_EXPORT_DIR", &c.Export.Dir)
	set("TGSTATCTL_LOG_LEVEL", &c.Logging.Level)
	set("TGSTATCTL_SCHEDULE", &c.Collect.Schedule)
}

func (c *Config) applyOverrides(ov Overrides) {
	if ov.DirectoryURL != "" {
		c.Directory.URL = ov.DirectoryURL
	}
	if ov.ExportURL != "" {
		c.Export.URL = ov.ExportURL
	}
	if ov.ExportDir != "" {
		c.Export.Dir = ov.ExportDir
	}
	if ov.LogLevel != "" {
		c.Logging.Level = ov.LogLevel
	}
}

func (c *Config) expandPaths() error {
	for _, p := range []*string{&c.Export.Dir, &c.History.Path, &c.Logging.File} {
		expanded, err := paths.ExpandTilde(*p)
		if err != nil {
			return err
		}
		*p = expanded
	}
	return nil
}

// Validate checks endpoint URLs, timeouts, the preset and the schedule.
func (c *Config) Validate() error {
	var errs []error

	if err := checkURL("directory.url", c.Directory.URL); err != nil {
		errs = append(errs, err)
	}
	if err := checkURL("export.url", c.Export.URL); err != nil {
		errs = append(errs, err)
	}
	if c.Directory.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("directory.timeout must be positive"))
	}
	if c.Export.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("export.timeout must be positive"))
	}
	if c.Scan.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("scan.concurrency must be at least 1"))
	}
	if !knownPreset(c.Scan.Preset) {
		errs = append(errs, fmt.Errorf("scan.preset %q is not one of %s", c.Scan.Preset, strings.Join(Presets, ", ")))
	}
	if c.Collect.Schedule != "" {
		if _, err := cron.ParseStandard(c.Collect.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("collect.schedule: %w", err))
		}
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}
	if c.History.Limit < 0 {
		errs = append(errs, fmt.Errorf("history.limit must not be negative"))
	}

	return errors.Join(errs...)
}

func checkURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s: %q is not an http(s) URL", field, raw)
	}
	return nil
}

func knownPreset(p string) bool {
	for _, known := range Presets {
		if p == known {
			return true
		}
	}
	return false
}
