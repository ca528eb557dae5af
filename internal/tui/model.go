// Package tui is the interactive operator console: dashboard, scrape control,
// channel directory, job history and logs.
package tui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/roelfdiedericks/tgstatctl/internal/bus"
	"github.com/roelfdiedericks/tgstatctl/internal/config"
	"github.com/roelfdiedericks/tgstatctl/internal/directory"
	"github.com/roelfdiedericks/tgstatctl/internal/export"
	"github.com/roelfdiedericks/tgstatctl/internal/jobs"
	. "github.com/roelfdiedericks/tgstatctl/internal/logging"
	"github.com/roelfdiedericks/tgstatctl/internal/scheduler"
	"github.com/roelfdiedericks/tgstatctl/internal/types"
)

const (
	noticeTTL      = 5 * time.Second
	maxLogLines    = 1000
	historyTimeout = 5 * time.Second
)

type tab int

const (
	tabDashboard tab = iota
	tabScrape
	tabChannels
	tabJobs
	tabLogs
)

func (t tab) String() string {
	switch t {
	case tabDashboard:
		return "Dashboard"
	case tabScrape:
		return "Scrape Control"
	case tabChannels:
		return "Channels"
	case tabJobs:
		return "Jobs"
	case tabLogs:
		return "Logs"
	}
	return "?"
}

// JobHistory is the job store as the console uses it.
type JobHistory interface {
	directory.JobRecorder
	List(ctx context.Context, limit int) ([]types.JobRecord, error)
	Counts(ctx context.Context, since time.Time) (jobs.Counts, error)
}

// Deps wires the console to the rest of the program.
type Deps struct {
	Config     *config.Config
	Service    directory.Service
	NewService func(*config.Config) directory.Service // rebuilds the client after a config reload
	Jobs       JobHistory                             // optional
	Scheduler  *scheduler.Scheduler                   // optional
	Bus        *bus.Bus                               // config reloads and job changes
}

// Message types
type logMsg string
type scheduledMsg struct{}
type configReloadedMsg struct{ cfg *config.Config }
type jobsChangedMsg struct{}
type dismissMsg struct{ id int }
type historyMsg struct {
	jobs    []types.JobRecord
	counts  jobs.Counts
	exports []export.File
	err     error
}

// Model is the main TUI model
type Model struct {
	cfg        *config.Config
	newService func(*config.Config) directory.Service
	history    JobHistory
	sched      *scheduler.Scheduler
	dir        *directory.Model

	// Components
	search   textinput.Model
	channels table.Model
	logs     viewport.Model
	spinner  spinner.Model
	bar      progress.Model
	help     help.Model

	// State
	tabs      []tab
	active    int
	width     int
	height    int
	ready     bool
	presetIdx int
	raw       bool
	jobCursor int
	jobList   []types.JobRecord
	counts    jobs.Counts
	exports   []export.File
	logLines  []string
	lastToast int

	// Fed from outside the event loop
	logChan chan string
	events  chan tea.Msg

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates the console model.
func New(deps Deps) Model {
	cfg := deps.Config
	if cfg == nil {
		cfg = config.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())

	var recorder directory.JobRecorder
	if deps.Jobs != nil {
		recorder = deps.Jobs
	}
	dir := directory.New(deps.Service, directory.Options{
		ExportDir: cfg.Export.Dir,
		Jobs:      recorder,
		Source:    "tui",
		Context:   ctx,
	})

	ti := textinput.New()
	ti.Placeholder = "name or @slug"
	ti.Prompt = ""
	ti.CharLimit = 100

	tbl := table.New(
		table.WithColumns(channelColumns(80)),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	st := table.DefaultStyles()
	st.Header = st.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(secondaryColor).
		BorderBottom(true).
		Bold(true)
	st.Selected = st.Selected.
		Foreground(lipgloss.Color("229")).
		Background(primaryColor).
		Bold(false)
	tbl.SetStyles(st)

	tabs := []tab{tabDashboard, tabScrape, tabChannels, tabJobs}
	if cfg.TUI.LogsVisible() {
		tabs = append(tabs, tabLogs)
	}

	presetIdx := 0
	for i, p := range config.Presets {
		if p == cfg.Scan.Preset {
			presetIdx = i
		}
	}

	return Model{
		cfg:        cfg,
		newService: deps.NewService,
		history:    deps.Jobs,
		sched:      deps.Scheduler,
		dir:        dir,
		search:     ti,
		channels:   tbl,
		logs:       viewport.New(80, 20),
		spinner:    spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(lipgloss.NewStyle().Foreground(accentColor))),
		bar:        progress.New(progress.WithDefaultGradient(), progress.WithWidth(20), progress.WithoutPercentage()),
		help:       help.New(),
		tabs:       tabs,
		presetIdx:  presetIdx,
		raw:        cfg.Scan.Raw,
		logChan:    make(chan string, 100),
		events:     make(chan tea.Msg, 16),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Init loads the directory and the history and starts the listeners.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.waitForLog(),
		m.waitForEvent(),
		m.dir.Load(""),
		m.loadHistory(),
	)
}

// post hands a message to the event loop from another goroutine. Drops it
// when the loop is not keeping up.
func (m Model) post(msg tea.Msg) {
	select {
	case m.events <- msg:
	default:
		L_debug("tui: event dropped", "type", msgType(msg))
	}
}

func msgType(msg tea.Msg) string {
	switch msg.(type) {
	case scheduledMsg:
		return "schedule"
	case configReloadedMsg:
		return "config"
	case jobsChangedMsg:
		return "jobs"
	}
	return "other"
}

// waitForLog returns a command that waits for the next log message
func (m Model) waitForLog() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg, ok := <-m.logChan:
			if !ok {
				return nil
			}
			return logMsg(msg)
		case <-m.ctx.Done():
			return nil
		}
	}
}

// waitForEvent returns a command that waits for the next bus or schedule event
func (m Model) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-m.events:
			return msg
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m Model) loadHistory() tea.Cmd {
	h, dir := m.history, m.cfg.Export.Dir
	limit := m.cfg.History.Limit
	return func() tea.Msg {
		var msg historyMsg
		var errs []error

		files, err := export.List(dir)
		msg.exports = files
		errs = append(errs, err)

		if h != nil {
			ctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
			defer cancel()
			msg.jobs, err = h.List(ctx, limit)
			errs = append(errs, err)
			msg.counts, err = h.Counts(ctx, time.Now().Add(-24*time.Hour))
			errs = append(errs, err)
		}
		msg.err = errors.Join(errs...)
		return msg
	}
}

func (m Model) current() tab {
	return m.tabs[m.active]
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case directory.LoadedMsg:
		cmds = append(cmds, m.dir.Update(msg))
		m.syncChannels()
		cmds = append(cmds, m.noticeTimer())

	case directory.CollectedMsg, directory.ExportedMsg:
		cmds = append(cmds, m.dir.Update(msg), m.loadHistory())
		if m.search.Value() != m.dir.Query() {
			m.search.SetValue(m.dir.Query())
		}
		m.syncChannels()
		cmds = append(cmds, m.noticeTimer())

	case historyMsg:
		if msg.err != nil {
			L_warn("tui: failed to load history", "error", msg.err)
		}
		m.exports = msg.exports
		if m.history != nil && msg.err == nil {
			m.jobList = msg.jobs
			m.counts = msg.counts
		}
		if m.jobCursor >= len(m.jobList) {
			m.jobCursor = max(0, len(m.jobList)-1)
		}

	case dismissMsg:
		m.dir.Dismiss(msg.id)

	case logMsg:
		m.logLines = append(m.logLines, string(msg))
		if len(m.logLines) > maxLogLines {
			m.logLines = m.logLines[len(m.logLines)-maxLogLines:]
		}
		m.logs.SetContent(m.getLogsContent())
		m.logs.GotoBottom()
		cmds = append(cmds, m.waitForLog())

	case scheduledMsg:
		if cmd := m.dir.TriggerCollection("Scheduled " + m.runName()); cmd != nil {
			cmds = append(cmds, cmd)
		} else {
			L_info("tui: scheduled run skipped, collection already running")
		}
		cmds = append(cmds, m.waitForEvent())

	case configReloadedMsg:
		m.applyConfig(msg.cfg)
		cmds = append(cmds, m.dir.Refresh(), m.loadHistory(), m.waitForEvent())

	case jobsChangedMsg:
		cmds = append(cmds, m.loadHistory(), m.waitForEvent())

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	default:
		// cursor blink and friends
		var cmd tea.Cmd
		m.search, cmd = m.search.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.cancel()
		return m, tea.Quit
	}

	// A blocking notice swallows everything until acknowledged
	if _, ok := m.dir.Blocking(); ok {
		if key.Matches(msg, keys.Ack) {
			m.dir.Ack()
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, keys.NextTab):
		cmd := m.switchTab(1)
		return m, cmd
	case key.Matches(msg, keys.PrevTab):
		cmd := m.switchTab(-1)
		return m, cmd
	case key.Matches(msg, keys.Refresh):
		return m, tea.Batch(m.dir.Refresh(), m.loadHistory())
	}

	switch m.current() {
	case tabChannels:
		return m.channelsKey(msg)
	case tabScrape:
		return m.scrapeKey(msg)
	case tabJobs:
		return m.jobsKey(msg)
	case tabLogs:
		if cmd, done := m.commonKey(msg); done {
			return m, cmd
		}
		var cmd tea.Cmd
		m.logs, cmd = m.logs.Update(msg)
		return m, cmd
	}

	cmd, _ := m.commonKey(msg)
	return m, cmd
}

// commonKey handles quit and collect on tabs without text input.
func (m *Model) commonKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch {
	case key.Matches(msg, keys.Quit):
		m.cancel()
		return tea.Quit, true
	case key.Matches(msg, keys.Collect):
		return m.collect(m.runName()), true
	}
	return nil, false
}

func (m *Model) channelsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if _, open := m.dir.Selected(); open {
		switch {
		case key.Matches(msg, keys.Clear):
			m.dir.Select(nil)
		case key.Matches(msg, keys.XLSX):
			return *m, m.startExport(types.FormatXLSX)
		case key.Matches(msg, keys.CSV):
			return *m, m.startExport(types.FormatCSV)
		}
		return *m, nil
	}

	switch {
	case key.Matches(msg, keys.XLSX):
		return *m, m.startExport(types.FormatXLSX)
	case key.Matches(msg, keys.CSV):
		return *m, m.startExport(types.FormatCSV)
	case key.Matches(msg, keys.Open):
		chs := m.dir.Channels()
		if row := m.channels.Cursor(); row >= 0 && row < len(chs) {
			m.dir.Select(&chs[row])
		}
		return *m, nil
	case key.Matches(msg, keys.Clear):
		if m.search.Value() == "" {
			return *m, nil
		}
		m.search.SetValue("")
		return *m, m.dir.Search("")
	case key.Matches(msg, keys.Up):
		m.channels.MoveUp(1)
		return *m, nil
	case key.Matches(msg, keys.Down):
		m.channels.MoveDown(1)
		return *m, nil
	}

	before := m.search.Value()
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	if after := m.search.Value(); after != before {
		return *m, tea.Batch(cmd, m.dir.Search(after))
	}
	return *m, cmd
}

func (m *Model) scrapeKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	n := len(config.Presets)
	switch {
	case key.Matches(msg, keys.PrevOpt):
		m.presetIdx = (m.presetIdx + n - 1) % n
	case key.Matches(msg, keys.NextOpt):
		m.presetIdx = (m.presetIdx + 1) % n
	case key.Matches(msg, keys.ToggleRaw):
		m.raw = !m.raw
	case key.Matches(msg, keys.Start):
		return *m, m.collect(m.runName())
	default:
		cmd, _ := m.commonKey(msg)
		return *m, cmd
	}
	return *m, nil
}

func (m *Model) jobsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Up):
		if m.jobCursor > 0 {
			m.jobCursor--
		}
	case key.Matches(msg, keys.Down):
		if m.jobCursor < len(m.jobList)-1 {
			m.jobCursor++
		}
	case key.Matches(msg, keys.Retry):
		if m.jobCursor < len(m.jobList) {
			return *m, m.collect("Retry: " + m.jobList[m.jobCursor].Name)
		}
	default:
		cmd, _ := m.commonKey(msg)
		return *m, cmd
	}
	return *m, nil
}

func (m *Model) collect(name string) tea.Cmd {
	cmd := m.dir.TriggerCollection(name)
	if cmd == nil {
		L_info("tui: collection already running")
	}
	return cmd
}

func (m *Model) startExport(format types.ExportFormat) tea.Cmd {
	cmd := m.dir.Export(format)
	if cmd == nil {
		L_info("tui: export already running")
	}
	return cmd
}

// runName labels a collection run with the selected preset, e.g. "Fast scan (raw)".
func (m *Model) runName() string {
	p := config.Presets[m.presetIdx]
	name := strings.ToUpper(p[:1]) + p[1:] + " scan"
	if m.raw {
		name += " (raw)"
	}
	return name
}

func (m *Model) switchTab(delta int) tea.Cmd {
	n := len(m.tabs)
	m.active = (m.active + delta + n) % n
	if m.current() == tabChannels {
		return m.search.Focus()
	}
	m.search.Blur()
	return nil
}

func (m *Model) applyConfig(cfg *config.Config) {
	m.cfg = cfg
	if m.newService != nil {
		m.dir.SetService(m.newService(cfg), cfg.Export.Dir)
	}
	if lvl, err := ParseLevel(cfg.Logging.Level); err == nil {
		SetLevel(lvl)
	}
	L_info("tui: configuration applied", "directory", cfg.Directory.URL)
}

// noticeTimer schedules the fade-out of a newly shown toast.
func (m *Model) noticeTimer() tea.Cmd {
	n, ok := m.dir.Toast()
	if !ok || n.ID <= m.lastToast {
		return nil
	}
	m.lastToast = n.ID
	id := n.ID
	return tea.Tick(noticeTTL, func(time.Time) tea.Msg { return dismissMsg{id: id} })
}

func (m *Model) syncChannels() {
	chs := m.dir.Channels()
	rows := make([]table.Row, len(chs))
	for i, c := range chs {
		rows[i] = table.Row{
			c.Name,
			humanize.Comma(c.Subscribers),
			c.Category,
			c.Admin,
			c.LastChecked,
			string(c.Status),
		}
	}
	m.channels.SetRows(rows)
	if m.channels.Cursor() >= len(rows) {
		m.channels.SetCursor(max(0, len(rows)-1))
	}
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	m.ready = true

	bodyHeight := max(5, height-6) // tabs, toast line, status bar
	m.search.Width = max(10, width-20)
	m.channels.SetColumns(channelColumns(width - 4))
	m.channels.SetHeight(max(3, bodyHeight-4))
	m.logs.Width = width - 4
	m.logs.Height = bodyHeight - 2
	m.logs.SetContent(m.getLogsContent())
	m.help.Width = width
}

func channelColumns(width int) []table.Column {
	fixed := 11 + 14 + 16 + 12 + 9 + 12 // widths plus cell padding
	name := max(16, width-fixed)
	return []table.Column{
		{Title: "Name", Width: name},
		{Title: "Subscribers", Width: 11},
		{Title: "Category", Width: 14},
		{Title: "Admin", Width: 16},
		{Title: "Last checked", Width: 12},
		{Title: "Status", Width: 9},
	}
}

// getLogsContent returns the log lines coloured by level
func (m Model) getLogsContent() string {
	var b strings.Builder
	for i, line := range m.logLines {
		if i > 0 {
			b.WriteByte('\n')
		}
		switch {
		case strings.Contains(line, "[ERROR]"), strings.Contains(line, "[FATAL]"):
			b.WriteString(logErrorStyle.Render(line))
		case strings.Contains(line, "[WARN]"):
			b.WriteString(logWarnStyle.Render(line))
		case strings.Contains(line, "[DEBUG]"), strings.Contains(line, "[TRACE]"):
			b.WriteString(logDebugStyle.Render(line))
		default:
			b.WriteString(logInfoStyle.Render(line))
		}
	}
	return b.String()
}
