package tui

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/roelfdiedericks/tgstatctl/internal/api"
	"github.com/roelfdiedericks/tgstatctl/internal/config"
	"github.com/roelfdiedericks/tgstatctl/internal/directory"
	"github.com/roelfdiedericks/tgstatctl/internal/jobs"
	"github.com/roelfdiedericks/tgstatctl/internal/types"
)

type fakeService struct {
	mu       sync.Mutex
	list     *types.ChannelList
	queries  []string
	collects int
}

func (f *fakeService) ListChannels(ctx context.Context, query string) (*types.ChannelList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	if f.list == nil {
		return &types.ChannelList{}, nil
	}
	return f.list, nil
}

func (f *fakeService) Collect(ctx context.Context) (*types.CollectResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.collects++
	return &types.CollectResult{Message: "Inserted 2 channels"}, nil
}

func (f *fakeService) Export(ctx context.Context, format types.ExportFormat) (*api.Payload, error) {
	return &api.Payload{Body: io.NopCloser(bytes.NewReader([]byte("id,name\n1,A\n")))}, nil
}

type fakeHistory struct {
	mu      sync.Mutex
	started []string
	list    []types.JobRecord
}

func (f *fakeHistory) Start(ctx context.Context, name, source string) (types.JobRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, name)
	return types.JobRecord{ID: int64(len(f.started)), Name: name, Status: types.JobRunning, Source: source, StartedAt: time.Now()}, nil
}

func (f *fakeHistory) Finish(ctx context.Context, id int64, status types.JobStatus, message string) (types.JobRecord, error) {
	return types.JobRecord{ID: id, Status: status, Message: message, Progress: 100}, nil
}

func (f *fakeHistory) List(ctx context.Context, limit int) ([]types.JobRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.list, nil
}

func (f *fakeHistory) Counts(ctx context.Context, since time.Time) (jobs.Counts, error) {
	return jobs.Counts{}, nil
}

var testChannels = []types.Channel{
	{ID: 1, Name: "Alpha", Slug: "@alpha", Subscribers: 1200, Category: "PR", Status: types.ChannelActive},
	{ID: 2, Name: "Beta", Slug: "@beta", Subscribers: 50, Category: "Marketing", Status: types.ChannelInactive},
}

func newTestModel(t *testing.T) (Model, *fakeService, *fakeHistory) {
	t.Helper()
	cfg := config.Default()
	cfg.Export.Dir = t.TempDir()
	svc := &fakeService{list: &types.ChannelList{Channels: testChannels, Total: 2}}
	hist := &fakeHistory{}
	m := New(Deps{Config: cfg, Service: svc, Jobs: hist})
	m = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	return m, svc, hist
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

func press(t *testing.T, m Model, k tea.KeyMsg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(k)
	return next.(Model), cmd
}

func typeText(t *testing.T, m Model, s string) Model {
	t.Helper()
	for _, r := range s {
		m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return m
}

// loaded runs a fresh load against the fake service and applies the result.
func loaded(t *testing.T, m Model) Model {
	t.Helper()
	return update(t, m, m.dir.Refresh()())
}

func gotoTab(t *testing.T, m Model, want tab) Model {
	t.Helper()
	for i := 0; i < len(m.tabs) && m.current() != want; i++ {
		m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyTab})
	}
	if m.current() != want {
		t.Fatalf("could not reach tab %v", want)
	}
	return m
}

func TestTabs(t *testing.T) {
	m, _, _ := newTestModel(t)
	if len(m.tabs) != 5 || m.current() != tabDashboard {
		t.Fatalf("tabs = %v, active = %v", m.tabs, m.current())
	}

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyShiftTab})
	if m.current() != tabLogs {
		t.Errorf("shift+tab from first tab = %v, want Logs", m.current())
	}

	hidden := false
	cfg := config.Default()
	cfg.TUI.ShowLogs = &hidden
	m = New(Deps{Config: cfg, Service: &fakeService{}})
	for _, tb := range m.tabs {
		if tb == tabLogs {
			t.Error("logs tab shown although disabled")
		}
	}
}

func TestSearchGate(t *testing.T) {
	m, _, _ := newTestModel(t)
	m = gotoTab(t, m, tabChannels)

	m = typeText(t, m, "ab")
	if m.dir.Loading() {
		t.Error("two characters must not start a load")
	}
	if m.dir.Query() != "ab" {
		t.Errorf("query = %q, want ab", m.dir.Query())
	}

	m = typeText(t, m, "c")
	if !m.dir.Loading() || m.dir.Query() != "abc" {
		t.Errorf("three characters should load, loading=%v query=%q", m.dir.Loading(), m.dir.Query())
	}

	// q is text here, not quit
	m = typeText(t, m, "q")
	if m.search.Value() != "abcq" {
		t.Errorf("search value = %q", m.search.Value())
	}

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.search.Value() != "" || m.dir.Query() != "" {
		t.Errorf("esc should clear the query, got %q/%q", m.search.Value(), m.dir.Query())
	}
}

func TestChannelDetail(t *testing.T) {
	m, _, _ := newTestModel(t)
	m = loaded(t, m)
	m = gotoTab(t, m, tabChannels)

	if rows := m.channels.Rows(); len(rows) != 2 || rows[0][1] != "1,200" {
		t.Fatalf("rows = %v", rows)
	}

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	sel, ok := m.dir.Selected()
	if !ok || sel.ID != 2 {
		t.Fatalf("selected = %+v, %v; want Beta", sel, ok)
	}
	if !strings.Contains(m.View(), "https://t.me/beta") {
		t.Error("detail view should show the channel link")
	}

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if _, ok := m.dir.Selected(); ok {
		t.Error("esc should close the detail view")
	}
}

func TestExportGuard(t *testing.T) {
	m, _, _ := newTestModel(t)
	m = gotoTab(t, m, tabChannels)

	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyCtrlE})
	if cmd == nil || !m.dir.Exporting() {
		t.Fatal("ctrl+e should start an xlsx export")
	}
	m, cmd = press(t, m, tea.KeyMsg{Type: tea.KeyCtrlS})
	if cmd != nil {
		t.Error("second export while one is running should be ignored")
	}

	m = update(t, m, directory.ExportedMsg{Format: types.FormatCSV, Path: "/tmp/x.csv"})
	if m.dir.Exporting() {
		t.Error("exporting should clear after the result")
	}
	if n, ok := m.dir.Toast(); !ok || n.Text != "Saved tgstat_channels.csv" {
		t.Errorf("toast = %+v, %v", n, ok)
	}
	if m.lastToast == 0 {
		t.Error("toast fade-out should be scheduled")
	}
}

func TestScrapeControl(t *testing.T) {
	m, svc, hist := newTestModel(t)
	m = gotoTab(t, m, tabScrape)

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyRight})
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeySpace})
	if got := m.runName(); got != "Full scan (raw)" {
		t.Errorf("runName = %q", got)
	}

	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil || !m.dir.Collecting() {
		t.Fatal("enter should start a collection")
	}
	if _, again := press(t, m, tea.KeyMsg{Type: tea.KeyEnter}); again != nil {
		t.Error("collection must not start twice")
	}

	msg := cmd()
	if svc.collects != 1 {
		t.Errorf("collects = %d, want 1", svc.collects)
	}
	if len(hist.started) != 1 || hist.started[0] != "Full scan (raw)" {
		t.Errorf("recorded jobs = %v", hist.started)
	}

	m = update(t, m, msg)
	if m.dir.Collecting() {
		t.Error("collecting should clear after the result")
	}
	n, ok := m.dir.Blocking()
	if !ok || n.Text != "Inserted 2 channels" {
		t.Fatalf("blocking notice = %+v, %v", n, ok)
	}

	// the modal swallows navigation until acknowledged
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if m.current() != tabScrape {
		t.Error("tab switched behind a blocking notice")
	}
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if _, ok := m.dir.Blocking(); ok {
		t.Error("enter should acknowledge the notice")
	}
	if m.dir.Collecting() {
		t.Error("acknowledging must not start another run")
	}
}

func TestCollectionClearsSearch(t *testing.T) {
	m, _, _ := newTestModel(t)
	m = gotoTab(t, m, tabChannels)
	m = typeText(t, m, "alpha")

	m = update(t, m, directory.CollectedMsg{Result: &types.CollectResult{Message: "done"}})
	if m.search.Value() != "" || m.dir.Query() != "" {
		t.Errorf("search = %q, query = %q; want both cleared", m.search.Value(), m.dir.Query())
	}
}

func TestJobsRetry(t *testing.T) {
	m, _, hist := newTestModel(t)
	m = update(t, m, historyMsg{jobs: []types.JobRecord{
		{ID: 2, Name: "Fast scan", Status: types.JobFailed, StartedAt: time.Now()},
		{ID: 1, Name: "Full scan", Status: types.JobCompleted, Progress: 100, StartedAt: time.Now()},
	}})
	m = gotoTab(t, m, tabJobs)

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyDown})
	if m.jobCursor != 1 {
		t.Errorf("cursor = %d, want 1", m.jobCursor)
	}

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyUp})
	_, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	if cmd == nil {
		t.Fatal("r should retry the selected job")
	}
	cmd()
	if len(hist.started) != 1 || hist.started[0] != "Retry: Fast scan" {
		t.Errorf("recorded jobs = %v", hist.started)
	}
}

func TestScheduledRun(t *testing.T) {
	m, _, _ := newTestModel(t)
	m = update(t, m, scheduledMsg{})
	if !m.dir.Collecting() {
		t.Fatal("scheduled tick should start a collection")
	}
	m = update(t, m, scheduledMsg{})
	if !m.dir.Collecting() {
		t.Error("overlapping tick must leave the running collection alone")
	}
}

func TestQuit(t *testing.T) {
	m, _, _ := newTestModel(t)
	_, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("q should quit on the dashboard")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
}

func TestLogsAndDismiss(t *testing.T) {
	m, _, _ := newTestModel(t)
	for i := 0; i < maxLogLines+10; i++ {
		m = update(t, m, logMsg("12:00:00 [INFO] line"))
	}
	if len(m.logLines) != maxLogLines {
		t.Errorf("log lines = %d, want %d", len(m.logLines), maxLogLines)
	}

	m = update(t, m, directory.ExportedMsg{Format: types.FormatXLSX, Path: "/tmp/x.xlsx"})
	n, ok := m.dir.Toast()
	if !ok {
		t.Fatal("expected toast")
	}
	m = update(t, m, dismissMsg{id: n.ID})
	if _, ok := m.dir.Toast(); ok {
		t.Error("toast should be dismissed")
	}
}

func TestConfigReload(t *testing.T) {
	m, _, _ := newTestModel(t)
	replacement := &fakeService{}
	m.newService = func(*config.Config) directory.Service { return replacement }

	cfg := config.Default()
	cfg.Directory.URL = "http://backend.test/scraper"
	cfg.Export.Dir = t.TempDir()
	m = update(t, m, configReloadedMsg{cfg: cfg})

	if m.cfg != cfg || m.dir.ExportDir() != cfg.Export.Dir {
		t.Error("reloaded config not applied")
	}
	m.dir.Refresh()()
	if len(replacement.queries) != 1 {
		t.Error("reload should switch to the new service")
	}
}

func TestViewRenders(t *testing.T) {
	m, _, _ := newTestModel(t)
	m = loaded(t, m)

	for _, tb := range m.tabs {
		m = gotoTab(t, m, tb)
		out := m.View()
		if !strings.Contains(out, tb.String()) {
			t.Errorf("%v view missing tab title", tb)
		}
	}

	m = gotoTab(t, m, tabDashboard)
	if out := m.View(); !strings.Contains(out, "Channels collected") {
		t.Error("dashboard should show the channel card")
	}
}

func TestExportFailureIsNotLoadFailure(t *testing.T) {
	m, svc, _ := newTestModel(t)
	svc.list = &types.ChannelList{}
	m = loaded(t, m)

	m = update(t, m, directory.ExportedMsg{Format: types.FormatCSV, Err: errors.New("disk full")})

	if out := m.renderChannels(); strings.Contains(out, "Failed to load channels") || !strings.Contains(out, "No channels found") {
		t.Errorf("channels view after failed export:\n%s", out)
	}
	if bar := m.renderStatusBar(); strings.Contains(bar, "Backend error") || !strings.Contains(bar, "Ready") {
		t.Errorf("status bar after failed export: %q", bar)
	}
	if n, ok := m.dir.Toast(); !ok || n.Text != "Export failed" {
		t.Errorf("toast = %+v", n)
	}
}
