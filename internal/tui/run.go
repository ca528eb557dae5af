package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/roelfdiedericks/tgstatctl/internal/bus"
	"github.com/roelfdiedericks/tgstatctl/internal/config"
	"github.com/roelfdiedericks/tgstatctl/internal/logging"
)

// Run starts the console and blocks until the operator quits or ctx ends.
func Run(ctx context.Context, deps Deps) error {
	m := New(deps)

	// Forward logs to the Logs tab (exclusive - suppresses stderr)
	logging.SetHookExclusive(func(level, msg string) {
		formatted := fmt.Sprintf("%s [%s] %s", time.Now().Format("15:04:05"), level, msg)
		select {
		case m.logChan <- formatted:
		default:
			// Drop log if channel is full
		}
	})
	defer logging.SetHookExclusive(nil)
	defer m.cancel()

	if deps.Bus != nil {
		_, unsubConfig := deps.Bus.Subscribe(bus.TopicConfigReloaded, func(e bus.Event) {
			if cfg, ok := e.Data.(*config.Config); ok {
				m.post(configReloadedMsg{cfg: cfg})
			}
		})
		defer unsubConfig()

		_, unsubJobs := deps.Bus.Subscribe(bus.TopicJobsChanged, func(bus.Event) {
			m.post(jobsChangedMsg{})
		})
		defer unsubJobs()
	}

	if deps.Scheduler != nil && deps.Scheduler.Enabled() {
		deps.Scheduler.Start(func() { m.post(scheduledMsg{}) })
		defer deps.Scheduler.Stop()
		logging.L_info("tui: collection schedule active", "cron", deps.Scheduler.Expr())
	}

	logging.L_info("TUI started", "directory", m.cfg.Directory.URL)

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
