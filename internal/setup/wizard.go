package setup

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/roelfdiedericks/tgstatctl/internal/config"
	. "github.com/roelfdiedericks/tgstatctl/internal/logging"
	"github.com/roelfdiedericks/tgstatctl/internal/scheduler"
)

// Wizard holds the form values. Numeric fields are kept as text for the
// huh inputs and parsed by Apply.
type Wizard struct {
	base *config.Config

	directoryURL string
	exportURL    string
	exportDir    string

	category    string
	concurrency string
	useProxies  bool
	preset      string

	schedule     string
	historyLimit string
	logLevel     string
	showLogs     bool

	confirmed bool
}

// NewWizard creates a wizard prefilled from base.
func NewWizard(base *config.Config) *Wizard {
	return &Wizard{
		base:         base,
		directoryURL: base.Directory.URL,
		exportURL:    base.Export.URL,
		exportDir:    base.Export.Dir,
		category:     base.Scan.Category,
		concurrency:  strconv.Itoa(base.Scan.Concurrency),
		useProxies:   base.Scan.UseProxies,
		preset:       base.Scan.Preset,
		schedule:     base.Collect.Schedule,
		historyLimit: strconv.Itoa(base.History.Limit),
		logLevel:     base.Logging.Level,
		showLogs:     base.TUI.LogsVisible(),
	}
}

// Run shows the form. Values are kept even if the operator declines to save.
func (w *Wizard) Run() error {
	fmt.Println()
	fmt.Println("tgstatctl setup")
	fmt.Println("Point the console at your collection backend and pick the defaults.")
	fmt.Println()

	err := w.form().Run()
	if errors.Is(err, huh.ErrUserAborted) {
		w.confirmed = false
		return nil
	}
	return err
}

func (w *Wizard) form() *huh.Form {
	presets := make([]huh.Option[string], len(config.Presets))
	for i, p := range config.Presets {
		presets[i] = huh.NewOption(p, p)
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewNote().
				Title("Backend").
				Description("Endpoints of the collection service."),
			huh.NewInput().
				Title("Directory endpoint").
				Description("GET lists channels, POST starts a collection").
				Validate(validateURL).
				Value(&w.directoryURL),
			huh.NewInput().
				Title("Export endpoint").
				Description("Serves ?format=csv and ?format=xlsx").
				Validate(validateURL).
				Value(&w.exportURL),
			huh.NewInput().
				Title("Export directory").
				Value(&w.exportDir),
		),
		huh.NewGroup(
			huh.NewNote().
				Title("Scan options").
				Description("Shown on the Scrape Control tab and used to label runs."),
			huh.NewInput().
				Title("Category").
				Value(&w.category),
			huh.NewInput().
				Title("Concurrency").
				Validate(validatePositive).
				Value(&w.concurrency),
			huh.NewConfirm().
				Title("Use proxies?").
				Value(&w.useProxies),
			huh.NewSelect[string]().
				Title("Default preset").
				Options(presets...).
				Value(&w.preset),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Collection schedule").
				Description("Cron expression like \"0 */6 * * *\" or @hourly. Leave empty to disable.").
				Validate(validateSchedule).
				Value(&w.schedule),
			huh.NewInput().
				Title("Job history size").
				Validate(validateNonNegative).
				Value(&w.historyLimit),
			huh.NewSelect[string]().
				Title("Log level").
				Options(huh.NewOptions("debug", "info", "warn", "error")...).
				Value(&w.logLevel),
			huh.NewConfirm().
				Title("Show the Logs tab?").
				Value(&w.showLogs),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save configuration?").
				Affirmative("Save").
				Negative("Cancel").
				Value(&w.confirmed),
		),
	).WithShowHelp(true)
}

// Apply returns a copy of the base configuration with the form values set.
func (w *Wizard) Apply() (*config.Config, error) {
	cfg := *w.base

	concurrency, err := strconv.Atoi(strings.TrimSpace(w.concurrency))
	if err != nil {
		return nil, fmt.Errorf("concurrency: %w", err)
	}
	limit, err := strconv.Atoi(strings.TrimSpace(w.historyLimit))
	if err != nil {
		return nil, fmt.Errorf("history size: %w", err)
	}

	cfg.Directory.URL = strings.TrimSpace(w.directoryURL)
	cfg.Export.URL = strings.TrimSpace(w.exportURL)
	cfg.Export.Dir = strings.TrimSpace(w.exportDir)
	cfg.Scan.Category = strings.TrimSpace(w.category)
	cfg.Scan.Concurrency = concurrency
	cfg.Scan.UseProxies = w.useProxies
	cfg.Scan.Preset = w.preset
	cfg.Collect.Schedule = strings.TrimSpace(w.schedule)
	cfg.History.Limit = limit
	cfg.Logging.Level = w.logLevel
	show := w.showLogs
	cfg.TUI.ShowLogs = &show
	cfg.Path = ""

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	L_debug("setup: configuration assembled", "directory", cfg.Directory.URL, "preset", cfg.Scan.Preset)
	return &cfg, nil
}

func validateURL(s string) error {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("enter an http(s) URL")
	}
	return nil
}

func validatePositive(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return fmt.Errorf("enter a number of at least 1")
	}
	return nil
}

func validateNonNegative(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return fmt.Errorf("enter a number, 0 or more")
	}
	return nil
}

func validateSchedule(s string) error {
	if _, err := scheduler.New(strings.TrimSpace(s)); err != nil {
		return err
	}
	return nil
}
