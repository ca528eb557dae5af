package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/roelfdiedericks/tgstatctl/internal/bus"
	"github.com/roelfdiedericks/tgstatctl/internal/config"
	"github.com/roelfdiedericks/tgstatctl/internal/directory"
	. "github.com/roelfdiedericks/tgstatctl/internal/logging"
	"github.com/roelfdiedericks/tgstatctl/internal/output"
	"github.com/roelfdiedericks/tgstatctl/internal/scheduler"
	"github.com/roelfdiedericks/tgstatctl/internal/setup"
	"github.com/roelfdiedericks/tgstatctl/internal/tui"
	"github.com/roelfdiedericks/tgstatctl/internal/types"
)

// TUICmd runs the interactive console.
type TUICmd struct{}

func (c *TUICmd) Run(g *Globals) error {
	ov := g.overrides()
	cfg, err := g.load(ov)
	if err != nil {
		return err
	}

	events := bus.New()
	store := openJobs(cfg, events)
	defer closeJobs(store)

	sched, err := scheduler.New(cfg.Collect.Schedule)
	if err != nil {
		return err
	}

	if cfg.Path != "" {
		w, err := config.Watch(cfg, ov, events)
		if err != nil {
			L_warn("config watcher unavailable", "error", err)
		} else {
			defer w.Stop()
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	deps := tui.Deps{
		Config:     cfg,
		Service:    newService(cfg),
		NewService: newService,
		Scheduler:  sched,
		Bus:        events,
	}
	if store != nil {
		deps.Jobs = store
	}
	return tui.Run(ctx, deps)
}

// ChannelsCmd lists the directory once.
type ChannelsCmd struct {
	Query string `arg:"" optional:"" help:"Name or handle to search for."`
	JSON  bool   `help:"Print the raw response as JSON."`
	JQ    string `name:"jq" help:"Filter the response with a jq expression."`
	Raw   bool   `short:"r" help:"With --jq, print strings without quotes."`
}

func (c *ChannelsCmd) Run(g *Globals) error {
	cfg, err := g.load(g.overrides())
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	list, err := loadChannels(headless(ctx, cfg, nil, "cli"), c.Query)
	if err != nil {
		return err
	}

	p := output.New(os.Stdout)
	switch {
	case c.JQ != "":
		return p.JQ(list, c.JQ, c.Raw)
	case c.JSON:
		return p.JSON(list)
	}
	return p.Channels(list)
}

// CollectCmd triggers one collection run.
type CollectCmd struct {
	Name string `help:"Label for the job record." default:"CLI collection"`
}

func (c *CollectCmd) Run(g *Globals) error {
	cfg, err := g.load(g.overrides())
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	store := openJobs(cfg, nil)
	defer closeJobs(store)

	msg := runCollection(headless(ctx, cfg, store, "cli"), c.Name)
	if msg.Err != nil {
		return msg.Err
	}
	text := "Collection finished"
	if msg.Result != nil && msg.Result.Message != "" {
		text = msg.Result.Message
	}
	printf("%s\n", text)
	return nil
}

// runCollection executes a collection synchronously through the view-model.
// loadChannels runs one directory load to completion.
func loadChannels(dir *directory.Model, query string) (*types.ChannelList, error) {
	msg, _ := dir.Load(query)().(directory.LoadedMsg)
	dir.Update(msg)
	if msg.Err != nil {
		return nil, msg.Err
	}
	return msg.List, nil
}

func runCollection(dir *directory.Model, name string) directory.CollectedMsg {
	cmd := dir.TriggerCollection(name)
	if cmd == nil {
		return directory.CollectedMsg{Err: errors.New("collection already running")}
	}
	msg, _ := cmd().(directory.CollectedMsg)
	dir.Update(msg)
	return msg
}

// ExportCmd downloads the export file.
type ExportCmd struct {
	Format string `short:"f" help:"Export format: csv or xlsx." default:"xlsx" enum:"csv,xlsx,CSV,XLSX"`
	Dir    string `short:"d" help:"Directory to save into, overrides the config." type:"path"`
}

func (c *ExportCmd) Run(g *Globals) error {
	format, err := types.ParseExportFormat(c.Format)
	if err != nil {
		return err
	}
	ov := g.overrides()
	ov.ExportDir = c.Dir
	cfg, err := g.load(ov)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	dir := headless(ctx, cfg, nil, "cli")
	msg, _ := dir.Export(format)().(directory.ExportedMsg)
	dir.Update(msg)
	if msg.Err != nil {
		return msg.Err
	}
	printf("%s\n", msg.Path)
	return nil
}

// JobsCmd prints the job history.
type JobsCmd struct {
	Limit int    `short:"n" help:"Number of runs to show (0 for the configured history size)."`
	JSON  bool   `help:"Print as JSON."`
	JQ    string `name:"jq" help:"Filter with a jq expression."`
}

func (c *JobsCmd) Run(g *Globals) error {
	cfg, err := g.load(g.overrides())
	if err != nil {
		return err
	}
	store := openJobs(cfg, nil)
	if store == nil {
		return fmt.Errorf("job history is not available")
	}
	defer closeJobs(store)

	ctx, cancel := signalContext()
	defer cancel()

	limit := c.Limit
	if limit == 0 {
		limit = cfg.History.Limit
	}
	list, err := store.List(ctx, limit)
	if err != nil {
		return err
	}

	p := output.New(os.Stdout)
	switch {
	case c.JQ != "":
		return p.JQ(list, c.JQ, false)
	case c.JSON:
		return p.JSON(list)
	}
	return p.Jobs(list, time.Now())
}

// ScheduleCmd runs collections on the cron schedule until interrupted.
type ScheduleCmd struct {
	Cron string `help:"Cron expression, overrides collect.schedule."`
}

func (c *ScheduleCmd) Run(g *Globals) error {
	cfg, err := g.load(g.overrides())
	if err != nil {
		return err
	}
	expr := cfg.Collect.Schedule
	if c.Cron != "" {
		expr = c.Cron
	}
	sched, err := scheduler.New(expr)
	if err != nil {
		return err
	}
	if !sched.Enabled() {
		return fmt.Errorf("no schedule configured (set collect.schedule or --cron)")
	}

	ctx, cancel := signalContext()
	defer cancel()

	store := openJobs(cfg, nil)
	defer closeJobs(store)
	dir := headless(ctx, cfg, store, "schedule")

	// Overlapping ticks are skipped by the scheduler, so dir is only used
	// from one goroutine at a time.
	sched.Start(func() {
		msg := runCollection(dir, "Scheduled collection")
		if msg.Err != nil {
			L_error("scheduled collection failed", "error", msg.Err)
			return
		}
		if msg.Result != nil {
			L_info("scheduled collection finished", "message", msg.Result.Message)
		}
	})
	if next, ok := sched.Next(time.Now()); ok {
		L_info("scheduler started", "cron", sched.Expr(), "next", next.Format(time.RFC3339))
	}

	<-ctx.Done()
	L_info("scheduler stopping")
	sched.Stop()
	return nil
}

// InitCmd runs the setup wizard.
type InitCmd struct{}

func (c *InitCmd) Run(g *Globals) error {
	path, err := setup.TargetPath(g.Config)
	if err != nil {
		return err
	}

	base := config.Default()
	if _, statErr := os.Stat(path); statErr == nil {
		existing, err := config.Load(path, config.Overrides{})
		if err != nil {
			L_warn("existing config is invalid, starting from defaults", "path", path, "error", err)
		} else {
			base = existing
		}
	}

	_, err = setup.RunWizard(base, path)
	return err
}

// VersionCmd prints the version.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	printf("tgstatctl %s\n", version)
	return nil
}
