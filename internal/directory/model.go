// Package directory holds the channel directory view-model: the current
// snapshot, the search query and the collection and export requests.
//
// Operations return a tea.Cmd that performs the remote call off the event
// loop; its result message must be passed back through Update on the loop.
// Only Update and the operations mutate state, so Model needs no locking.
package directory

import (
	"context"
	"time"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/roelfdiedericks/tgstatctl/internal/api"
	"github.com/roelfdiedericks/tgstatctl/internal/export"
	. "github.com/roelfdiedericks/tgstatctl/internal/logging"
	"github.com/roelfdiedericks/tgstatctl/internal/types"
)

// maxNotices caps the pending notice queue; the oldest non-blocking go first.
const maxNotices = 20

// Service is the remote side of the directory.
type Service interface {
	ListChannels(ctx context.Context, query string) (*types.ChannelList, error)
	Collect(ctx context.Context) (*types.CollectResult, error)
	Export(ctx context.Context, format types.ExportFormat) (*api.Payload, error)
}

// JobRecorder keeps a history of collection runs.
type JobRecorder interface {
	Start(ctx context.Context, name, source string) (types.JobRecord, error)
	Finish(ctx context.Context, id int64, status types.JobStatus, message string) (types.JobRecord, error)
}

// Options configures a Model.
type Options struct {
	ExportDir string
	Jobs      JobRecorder     // optional
	Source    string          // recorded with each job, e.g. "tui"
	Context   context.Context // cancels in-flight calls; defaults to Background
}

// Model is the channel directory view-model.
type Model struct {
	svc       Service
	exportDir string
	jobs      JobRecorder
	source    string
	ctx       context.Context

	query    string
	channels []types.Channel
	total    int
	loading  bool
	gen      uint64
	selected *types.Channel
	loadErr  error // last directory fetch; collect and export failures only notify

	collecting bool
	exporting  bool
	lastExport string

	notices  []Notice
	noticeID int
}

// New creates an empty view-model. Nothing is fetched until Load or Search.
func New(svc Service, opts Options) *Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	return &Model{
		svc:       svc,
		exportDir: opts.ExportDir,
		jobs:      opts.Jobs,
		source:    opts.Source,
		ctx:       ctx,
		channels:  []types.Channel{},
	}
}

// SetService swaps the remote endpoints, typically after a config reload.
// Commands already issued keep the service they captured.
func (m *Model) SetService(svc Service, exportDir string) {
	m.svc = svc
	if exportDir != "" {
		m.exportDir = exportDir
	}
}

// Read-only accessors. The Channels slice must not be modified.
func (m *Model) Query() string             { return m.query }
func (m *Model) Total() int                { return m.total }
func (m *Model) Loading() bool             { return m.loading }
func (m *Model) Collecting() bool          { return m.collecting }
func (m *Model) Exporting() bool           { return m.exporting }
func (m *Model) LoadError() error          { return m.loadErr }
func (m *Model) LastExport() string        { return m.lastExport }
func (m *Model) ExportDir() string         { return m.exportDir }
func (m *Model) Channels() []types.Channel { return m.channels }

// Selected returns the record open in the detail view.
func (m *Model) Selected() (types.Channel, bool) {
	if m.selected == nil {
		return types.Channel{}, false
	}
	return *m.selected, true
}

// Select opens c in the detail view; nil closes it.
func (m *Model) Select(c *types.Channel) {
	if c == nil {
		m.selected = nil
		return
	}
	sel := *c
	m.selected = &sel
}

// Load fetches the directory for query. Any earlier load still in flight is
// superseded: its result will be dropped when it arrives.
func (m *Model) Load(query string) tea.Cmd {
	m.gen++
	m.loading = true

	gen, svc, ctx := m.gen, m.svc, m.ctx
	L_debug("directory: load", "query", query, "gen", gen)

	return func() tea.Msg {
		list, err := svc.ListChannels(ctx, query)
		return LoadedMsg{Gen: gen, Query: query, List: list, Err: err}
	}
}

// Search records the query and fetches when it is empty or longer than two
// characters. One- and two-character queries only update the input.
func (m *Model) Search(query string) tea.Cmd {
	m.query = query
	if n := utf8.RuneCountInString(query); n != 0 && n <= 2 {
		return nil
	}
	return m.Load(query)
}

// Refresh reloads with the current query.
func (m *Model) Refresh() tea.Cmd {
	return m.Load(m.query)
}

// TriggerCollection asks the backend to run a collection. It returns nil
// while a previous run is still outstanding. name labels the job record.
func (m *Model) TriggerCollection(name string) tea.Cmd {
	if m.collecting {
		L_debug("directory: collection already running, ignoring trigger")
		return nil
	}
	m.collecting = true

	svc, ctx, jobs, source := m.svc, m.ctx, m.jobs, m.source
	if name == "" {
		name = "Collection run"
	}
	L_info("directory: collection requested", "name", name, "source", source)

	return func() tea.Msg {
		var job *types.JobRecord
		if jobs != nil {
			rec, err := jobs.Start(ctx, name, source)
			if err != nil {
				L_warn("directory: failed to record job start", "error", err)
			} else {
				job = &rec
			}
		}

		result, err := svc.Collect(ctx)

		if job != nil {
			status, message := types.JobCompleted, ""
			if err != nil {
				status, message = types.JobFailed, err.Error()
			} else if result != nil {
				message = result.Message
			}
			rec, ferr := jobs.Finish(ctx, job.ID, status, message)
			if ferr != nil {
				L_warn("directory: failed to record job finish", "id", job.ID, "error", ferr)
			} else {
				job = &rec
			}
		}
		return CollectedMsg{Result: result, Job: job, Err: err}
	}
}

// Export downloads the directory as format into the export dir. It returns
// nil while another export is outstanding.
func (m *Model) Export(format types.ExportFormat) tea.Cmd {
	if m.exporting {
		L_debug("directory: export already running, ignoring")
		return nil
	}
	m.exporting = true

	svc, ctx, dir := m.svc, m.ctx, m.exportDir
	return func() tea.Msg {
		start := time.Now()
		payload, err := svc.Export(ctx, format)
		if err != nil {
			return ExportedMsg{Format: format, Err: err}
		}
		path, err := export.Save(payload.Body, format, dir)
		api.RecordExport(start, err)
		return ExportedMsg{Format: format, Path: path, Err: err}
	}
}

// Update applies a result message. It returns a follow-up command, if any.
func (m *Model) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case LoadedMsg:
		return m.applyLoaded(msg)
	case CollectedMsg:
		return m.applyCollected(msg)
	case ExportedMsg:
		m.applyExported(msg)
	}
	return nil
}

func (m *Model) applyLoaded(msg LoadedMsg) tea.Cmd {
	if msg.Gen != m.gen {
		L_debug("directory: dropping stale load", "query", msg.Query, "gen", msg.Gen, "current", m.gen)
		api.RecordStaleDrop()
		return nil
	}
	m.loading = false

	if msg.Err != nil {
		m.loadErr = msg.Err
		L_warn("directory: load failed", "query", msg.Query, "error", msg.Err)
		m.pushNotice(Notice{Text: "Failed to load channels", Detail: msg.Err.Error(), Level: NoticeError})
		return nil
	}

	m.loadErr = nil
	m.channels = msg.List.Channels
	if m.channels == nil {
		m.channels = []types.Channel{}
	}
	m.total = msg.List.Total

	if m.selected != nil && !m.contains(m.selected.ID) {
		m.selected = nil
	}
	L_debug("directory: snapshot replaced", "count", len(m.channels), "total", m.total)
	return nil
}

func (m *Model) applyCollected(msg CollectedMsg) tea.Cmd {
	m.collecting = false

	if msg.Err != nil {
		L_error("directory: collection failed", "error", msg.Err)
		m.pushNotice(Notice{Text: "Collection failed", Detail: msg.Err.Error(), Level: NoticeError})
		return nil
	}

	text := "Collection finished"
	if msg.Result != nil && msg.Result.Message != "" {
		text = msg.Result.Message
	}
	m.pushNotice(Notice{Text: text, Level: NoticeSuccess, Blocking: true})

	m.query = ""
	return m.Load("")
}

func (m *Model) applyExported(msg ExportedMsg) {
	m.exporting = false

	if msg.Err != nil {
		L_error("directory: export failed", "format", msg.Format, "error", msg.Err)
		m.pushNotice(Notice{Text: "Export failed", Detail: msg.Err.Error(), Level: NoticeError})
		return
	}

	m.lastExport = msg.Path
	m.pushNotice(Notice{Text: "Saved " + export.FileName(msg.Format), Detail: msg.Path, Level: NoticeSuccess})
}

func (m *Model) contains(id int64) bool {
	for _, c := range m.channels {
		if c.ID == id {
			return true
		}
	}
	return false
}
