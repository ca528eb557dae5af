package tui

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/roelfdiedericks/tgstatctl/internal/config"
	"github.com/roelfdiedericks/tgstatctl/internal/directory"
	"github.com/roelfdiedericks/tgstatctl/internal/metrics"
	"github.com/roelfdiedericks/tgstatctl/internal/stats"
	"github.com/roelfdiedericks/tgstatctl/internal/types"
)

// View renders the UI
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	bodyHeight := max(5, m.height-6)
	var body string
	switch m.current() {
	case tabDashboard:
		body = m.renderDashboard()
	case tabScrape:
		body = m.renderScrape()
	case tabChannels:
		body = m.renderChannels()
	case tabJobs:
		body = m.renderJobs()
	case tabLogs:
		body = m.logs.View()
	}
	body = focusedBorder.Width(m.width - 2).Height(bodyHeight).Render(body)

	if n, ok := m.dir.Blocking(); ok {
		body = lipgloss.Place(m.width, bodyHeight+2, lipgloss.Center, lipgloss.Center, m.renderModal(n))
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderTabs(),
		body,
		m.renderToast(),
		m.renderStatusBar(),
	)
}

func (m Model) renderTabs() string {
	parts := make([]string, len(m.tabs))
	for i, t := range m.tabs {
		if i == m.active {
			parts[i] = activeTabStyle.Render(t.String())
		} else {
			parts[i] = inactiveTabStyle.Render(t.String())
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m Model) renderDashboard() string {
	now := time.Now()
	dash := stats.Compute(stats.Input{
		Total:    m.dir.Total(),
		Channels: m.dir.Channels(),
		Jobs:     m.counts,
		Exports:  m.exports,
		Requests: metrics.Summarize("api"),
		Now:      now,
	})

	var b strings.Builder
	b.WriteString(renderCards(dash.Cards))
	b.WriteString("\n\n")

	b.WriteString(titleStyle.Render("Collection dynamics"))
	b.WriteByte('\n')
	if len(dash.Dynamics) == 0 {
		b.WriteString(helpStyle.Render("  no checked channels in view"))
		b.WriteByte('\n')
	}
	peak := 1
	for _, d := range dash.Dynamics {
		peak = max(peak, d.Count)
	}
	for _, d := range dash.Dynamics {
		fmt.Fprintf(&b, "  %s %s %d\n", d.Date, m.bar.ViewAs(float64(d.Count)/float64(peak)), d.Count)
	}

	b.WriteByte('\n')
	b.WriteString(titleStyle.Render("Categories"))
	b.WriteByte('\n')
	for i, c := range dash.Categories {
		if i == 6 {
			fmt.Fprintf(&b, "  %s\n", helpStyle.Render(fmt.Sprintf("+%d more", len(dash.Categories)-i)))
			break
		}
		fmt.Fprintf(&b, "  %s %3.0f%% (%d)\n", labelStyle.Render(c.Category), 100*c.Share, c.Count)
	}

	b.WriteByte('\n')
	b.WriteString(titleStyle.Render("Backend requests"))
	b.WriteByte('\n')
	for _, c := range dash.Requests {
		line := "  " + labelStyle.Render(c.Title) + healthStyle(c.Health).Render(c.Value)
		if c.Hint != "" {
			line += " " + helpStyle.Render(c.Hint)
		}
		b.WriteString(line + "\n")
	}

	if m.sched != nil && m.sched.Enabled() {
		if next, ok := m.sched.Next(now); ok {
			fmt.Fprintf(&b, "\n%s %s, next run %s\n", labelStyle.Render("Schedule"), m.sched.Expr(), humanize.RelTime(next, now, "ago", "from now"))
		}
	}
	return b.String()
}

func healthStyle(h metrics.HealthStatus) lipgloss.Style {
	switch h {
	case metrics.HealthCritical:
		return cardValueStyle.Foreground(errorColor)
	case metrics.HealthWarning:
		return cardValueStyle.Foreground(warningColor)
	}
	return cardValueStyle
}

func renderCards(cards []stats.Card) string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = cardStyle.Render(c.Title + "\n" + cardValueStyle.Render(c.Value) + "\n" + helpStyle.Render(c.Hint))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, out...)
}

func (m Model) renderScrape() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Collection run"))
	b.WriteString("\n\n")

	presets := make([]string, len(config.Presets))
	for i, p := range config.Presets {
		if i == m.presetIdx {
			presets[i] = selectedOptionStyle.Render(p)
		} else {
			presets[i] = optionStyle.Render(p)
		}
	}
	raw := "off"
	if m.raw {
		raw = "on"
	}
	proxies := "off"
	if m.cfg.Scan.UseProxies {
		proxies = "on"
	}

	b.WriteString(labelStyle.Render("Preset") + lipgloss.JoinHorizontal(lipgloss.Top, presets...) + "\n")
	b.WriteString(labelStyle.Render("Raw mode") + raw + "\n")
	b.WriteString(labelStyle.Render("Category") + m.cfg.Scan.Category + "\n")
	b.WriteString(labelStyle.Render("Concurrency") + fmt.Sprint(m.cfg.Scan.Concurrency) + "\n")
	b.WriteString(labelStyle.Render("Proxies") + proxies + "\n")
	b.WriteString(labelStyle.Render("Backend") + m.cfg.Directory.URL + "\n\n")

	if m.dir.Collecting() {
		b.WriteString(m.spinner.View() + " Collecting, " + m.runName() + "\n")
	} else {
		b.WriteString(successStyle.Render("Idle") + helpStyle.Render(", press enter to start "+m.runName()) + "\n")
	}

	if len(m.jobList) > 0 {
		last := m.jobList[0]
		fmt.Fprintf(&b, "\n%s%s %s %s\n", labelStyle.Render("Last run"), last.Name,
			statusStyle(string(last.Status)).Render(string(last.Status)),
			helpStyle.Render(humanize.Time(last.StartedAt)))
		if last.Message != "" {
			b.WriteString(labelStyle.Render("") + last.Message + "\n")
		}
	}
	return b.String()
}

func (m Model) renderChannels() string {
	if c, ok := m.dir.Selected(); ok {
		return m.renderDetail(c)
	}

	var b strings.Builder
	b.WriteString(inputPromptStyle.Render("Search: ") + m.search.View())
	if m.dir.Loading() {
		b.WriteString(" " + m.spinner.View())
	}
	b.WriteByte('\n')
	if n := utf8.RuneCountInString(m.search.Value()); n > 0 && n <= 2 {
		b.WriteString(helpStyle.Render("type at least 3 characters to search"))
	}
	b.WriteByte('\n')

	switch {
	case m.dir.LoadError() != nil && len(m.dir.Channels()) == 0:
		b.WriteString(errorStyle.Render("Failed to load channels: " + m.dir.LoadError().Error()))
	case len(m.dir.Channels()) == 0 && !m.dir.Loading():
		b.WriteString(helpStyle.Render("No channels found"))
	default:
		b.WriteString(m.channels.View())
	}
	b.WriteByte('\n')

	footer := fmt.Sprintf("Showing %d of %s", len(m.dir.Channels()), humanize.Comma(int64(m.dir.Total())))
	if m.dir.Exporting() {
		footer += "  " + m.spinner.View() + " exporting"
	} else if p := m.dir.LastExport(); p != "" {
		footer += "  last export " + p
	}
	b.WriteString(helpStyle.Render(footer))
	return b.String()
}

func (m Model) renderDetail(c types.Channel) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(c.Name))
	b.WriteString("\n\n")

	field := func(label, value string) {
		if value == "" {
			value = "-"
		}
		b.WriteString(labelStyle.Render(label) + value + "\n")
	}
	field("Handle", c.Slug)
	field("Link", c.Link())
	field("Subscribers", humanize.Comma(c.Subscribers))
	field("Category", c.Category)
	field("Language", c.Language)
	field("Admin", c.Admin)
	field("Posts per day", fmt.Sprintf("%.1f", c.PostsPerDay))
	field("Avg views", humanize.Comma(c.AvgViews))
	field("Last checked", c.LastChecked)
	b.WriteString(labelStyle.Render("Status") + statusStyle(string(c.Status)).Render(string(c.Status)) + "\n")
	field("Contacts", strings.Join(c.Contacts, ", "))
	if c.Description != "" {
		b.WriteString("\n" + lipgloss.NewStyle().Width(max(20, m.width-8)).Render(c.Description) + "\n")
	}
	return b.String()
}

func (m Model) renderJobs() string {
	if m.history == nil {
		return helpStyle.Render("Job history is disabled")
	}
	if len(m.jobList) == 0 {
		return helpStyle.Render("No collection runs yet, press c to start one")
	}

	var b strings.Builder
	now := time.Now()
	for i, j := range m.jobList {
		cursor := "  "
		if i == m.jobCursor {
			cursor = inputPromptStyle.Render("> ")
		}
		status := statusStyle(string(j.Status)).Width(10).Render(string(j.Status))
		fmt.Fprintf(&b, "%s%-28s %s %s %3d%%  %-8s %s\n",
			cursor, truncate(j.Name, 28), status, m.bar.ViewAs(float64(j.Progress)/100), j.Progress,
			j.Source, helpStyle.Render(humanize.RelTime(j.StartedAt, now, "ago", "from now")))
	}

	if m.jobCursor < len(m.jobList) {
		j := m.jobList[m.jobCursor]
		b.WriteByte('\n')
		b.WriteString(labelStyle.Render("Duration") + j.Duration(now).Round(time.Second).String() + "\n")
		if j.Message != "" {
			b.WriteString(labelStyle.Render("Message") + j.Message + "\n")
		}
	}
	return b.String()
}

func (m Model) renderModal(n directory.Notice) string {
	style := modalStyle
	if n.Level == directory.NoticeError {
		style = style.BorderForeground(errorColor)
	}
	text := cardValueStyle.Render(n.Text)
	if n.Detail != "" {
		text += "\n\n" + n.Detail
	}
	if n.Folded > 0 {
		text += "\n" + helpStyle.Render(fmt.Sprintf("+%d earlier", n.Folded))
	}
	return style.Render(text + "\n\n" + helpStyle.Render("enter to continue"))
}

func (m Model) renderToast() string {
	n, ok := m.dir.Toast()
	if !ok {
		return ""
	}
	var style lipgloss.Style
	switch n.Level {
	case directory.NoticeError:
		style = errorStyle
	case directory.NoticeSuccess:
		style = successStyle
	default:
		style = logInfoStyle
	}
	text := n.Text
	if n.Detail != "" {
		text += ": " + n.Detail
	}
	return style.Render(truncate(text, max(10, m.width-2)))
}

// renderStatusBar creates the status bar
func (m Model) renderStatusBar() string {
	var status string
	switch {
	case m.dir.Collecting():
		status = m.spinner.View() + " Collecting"
	case m.dir.Loading():
		status = m.spinner.View() + " Loading"
	case m.dir.LoadError() != nil:
		status = errorStyle.Render("● Backend error")
	default:
		status = successStyle.Render("● Ready")
	}

	_, detail := m.dir.Selected()
	right := m.help.View(helpFor(m.current(), detail))

	gap := m.width - lipgloss.Width(status) - lipgloss.Width(right) - 4
	if gap < 1 {
		gap = 1
	}
	return statusBarStyle.Width(m.width).Render(status + strings.Repeat(" ", gap) + right)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}
