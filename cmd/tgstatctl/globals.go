package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/roelfdiedericks/tgstatctl/internal/api"
	"github.com/roelfdiedericks/tgstatctl/internal/bus"
	"github.com/roelfdiedericks/tgstatctl/internal/config"
	"github.com/roelfdiedericks/tgstatctl/internal/directory"
	"github.com/roelfdiedericks/tgstatctl/internal/jobs"
	. "github.com/roelfdiedericks/tgstatctl/internal/logging"
)

// Globals are the flags shared by every command.
type Globals struct {
	Config       string `short:"c" help:"Config file (TOML or YAML)." type:"path"`
	LogLevel     string `help:"Log level: trace, debug, info, warn, error."`
	DirectoryURL string `name:"directory-url" help:"Directory endpoint, overrides the config."`
	ExportURL    string `name:"export-url" help:"Export endpoint, overrides the config."`
}

func (g *Globals) overrides() config.Overrides {
	return config.Overrides{
		DirectoryURL: g.DirectoryURL,
		ExportURL:    g.ExportURL,
		LogLevel:     g.LogLevel,
	}
}

// load reads the configuration and initializes logging from it.
func (g *Globals) load(ov config.Overrides) (*config.Config, error) {
	cfg, err := config.Load(g.Config, ov)
	if err != nil {
		return nil, err
	}

	lvl, err := ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	if err := Init(&Config{Level: lvl, File: cfg.Logging.File}); err != nil {
		return nil, err
	}
	if cfg.Path != "" {
		L_debug("config loaded", "path", cfg.Path)
	} else {
		L_debug("no config file found, using defaults")
	}
	return cfg, nil
}

func newClient(cfg *config.Config) *api.Client {
	return api.New(api.Endpoints{
		DirectoryURL:  cfg.Directory.URL,
		ExportURL:     cfg.Export.URL,
		Timeout:       cfg.Directory.Timeout.Std(),
		ExportTimeout: cfg.Export.Timeout.Std(),
		UserAgent:     "tgstatctl/" + version,
	})
}

func newService(cfg *config.Config) directory.Service {
	return newClient(cfg)
}

// openJobs opens the job history. A history that cannot be opened is logged
// and left out; commands keep working without it.
func openJobs(cfg *config.Config, b *bus.Bus) *jobs.Store {
	if cfg.History.Path == "" {
		return nil
	}
	store, err := jobs.Open(cfg.History.Path, b)
	if err != nil {
		L_warn("job history unavailable", "path", cfg.History.Path, "error", err)
		return nil
	}
	return store
}

// headless builds a view-model for one-shot commands.
func headless(ctx context.Context, cfg *config.Config, store *jobs.Store, source string) *directory.Model {
	opts := directory.Options{ExportDir: cfg.Export.Dir, Source: source, Context: ctx}
	if store != nil {
		opts.Jobs = store
	}
	return directory.New(newClient(cfg), opts)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func closeJobs(store *jobs.Store) {
	if store == nil {
		return
	}
	if err := store.Close(); err != nil {
		L_warn("failed to close job history", "error", err)
	}
}

func printf(format string, args ...any) {
	fmt.Fprintf(os.Stdout, format, args...)
}
