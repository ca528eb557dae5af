package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	NextTab   key.Binding
	PrevTab   key.Binding
	Refresh   key.Binding
	Collect   key.Binding
	Quit      key.Binding
	Open      key.Binding
	Clear     key.Binding
	Up        key.Binding
	Down      key.Binding
	XLSX      key.Binding
	CSV       key.Binding
	PrevOpt   key.Binding
	NextOpt   key.Binding
	ToggleRaw key.Binding
	Start     key.Binding
	Retry     key.Binding
	Ack       key.Binding
}

var keys = keyMap{
	NextTab:   key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next tab")),
	PrevTab:   key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev tab")),
	Refresh:   key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "refresh")),
	Collect:   key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "collect")),
	Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Open:      key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "details")),
	Clear:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "clear")),
	Up:        key.NewBinding(key.WithKeys("up", "ctrl+p"), key.WithHelp("↑", "up")),
	Down:      key.NewBinding(key.WithKeys("down", "ctrl+n"), key.WithHelp("↓", "down")),
	XLSX:      key.NewBinding(key.WithKeys("ctrl+e"), key.WithHelp("ctrl+e", "export xlsx")),
	CSV:       key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "export csv")),
	PrevOpt:   key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/→", "preset")),
	NextOpt:   key.NewBinding(key.WithKeys("right", "l")),
	ToggleRaw: key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "raw")),
	Start:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "start run")),
	Retry:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "retry")),
	Ack:       key.NewBinding(key.WithKeys("enter", "esc"), key.WithHelp("enter", "ok")),
}

// tabHelp implements help.KeyMap for the active tab.
type tabHelp []key.Binding

func (h tabHelp) ShortHelp() []key.Binding  { return h }
func (h tabHelp) FullHelp() [][]key.Binding { return [][]key.Binding{h} }

func helpFor(t tab, detailOpen bool) tabHelp {
	switch t {
	case tabChannels:
		if detailOpen {
			return tabHelp{keys.Clear, keys.XLSX, keys.CSV, keys.NextTab}
		}
		return tabHelp{keys.Open, keys.Clear, keys.XLSX, keys.CSV, keys.Refresh, keys.NextTab}
	case tabScrape:
		return tabHelp{keys.PrevOpt, keys.ToggleRaw, keys.Start, keys.NextTab, keys.Quit}
	case tabJobs:
		return tabHelp{keys.Up, keys.Down, keys.Retry, keys.Refresh, keys.NextTab, keys.Quit}
	}
	return tabHelp{keys.Collect, keys.Refresh, keys.NextTab, keys.PrevTab, keys.Quit}
}
