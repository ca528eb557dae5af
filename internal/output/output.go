// Package output renders CLI results: bordered tables on a terminal, TSV
// when piped, JSON, and jq-filtered JSON.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/itchyny/gojq"
	"golang.org/x/term"

	"github.com/roelfdiedericks/tgstatctl/internal/types"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// Printer writes results to w.
type Printer struct {
	w   io.Writer
	tty bool
}

// New returns a printer that draws tables when w is a terminal.
func New(w io.Writer) *Printer {
	tty := false
	if f, ok := w.(*os.File); ok {
		tty = term.IsTerminal(int(f.Fd()))
	}
	return &Printer{w: w, tty: tty}
}

// NewWithMode returns a printer with the table/TSV choice fixed.
func NewWithMode(w io.Writer, tty bool) *Printer {
	return &Printer{w: w, tty: tty}
}

// Channels prints the directory listing.
func (p *Printer) Channels(list *types.ChannelList) error {
	headers := []string{"ID", "Name", "Slug", "Subscribers", "Category", "Admin", "Last checked", "Status"}
	rows := make([][]string, 0, len(list.Channels))
	for _, c := range list.Channels {
		subs := strconv.FormatInt(c.Subscribers, 10)
		if p.tty {
			subs = humanize.Comma(c.Subscribers)
		}
		rows = append(rows, []string{
			strconv.FormatInt(c.ID, 10), c.Name, c.Slug, subs, c.Category, c.Admin, c.LastChecked, string(c.Status),
		})
	}

	if err := p.render(headers, rows); err != nil {
		return err
	}
	if p.tty {
		_, err := fmt.Fprintf(p.w, "%d of %s channels\n", len(list.Channels), humanize.Comma(int64(list.Total)))
		return err
	}
	return nil
}

// Jobs prints the job history.
func (p *Printer) Jobs(jobs []types.JobRecord, now time.Time) error {
	headers := []string{"ID", "Name", "Status", "Progress", "Source", "Started", "Duration", "Message"}
	rows := make([][]string, 0, len(jobs))
	for _, j := range jobs {
		started := j.StartedAt.Format(time.RFC3339)
		if p.tty {
			started = humanize.RelTime(j.StartedAt, now, "ago", "from now")
		}
		rows = append(rows, []string{
			strconv.FormatInt(j.ID, 10),
			j.Name,
			string(j.Status),
			strconv.Itoa(j.Progress) + "%",
			j.Source,
			started,
			j.Duration(now).Round(time.Second).String(),
			j.Message,
		})
	}
	return p.render(headers, rows)
}

// JSON prints v as indented JSON.
func (p *Printer) JSON(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// JQ runs expr over v (converted through JSON) and prints each result.
// With raw, string results are printed without quotes.
func (p *Printer) JQ(v any, expr string, raw bool) error {
	out, err := Query(v, expr, raw)
	if err != nil {
		return err
	}
	if out == "" {
		return nil
	}
	_, err = fmt.Fprintln(p.w, out)
	return err
}

// Query evaluates a jq expression over v and formats the results one per line.
func Query(v any, expr string, raw bool) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode input: %w", err)
	}
	var input any
	if err := json.Unmarshal(data, &input); err != nil {
		return "", fmt.Errorf("invalid JSON: %w", err)
	}

	parsed, err := gojq.Parse(expr)
	if err != nil {
		return "", fmt.Errorf("invalid jq query: %w", err)
	}

	var lines []string
	iter := parsed.Run(input)
	for {
		r, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := r.(error); isErr {
			return "", fmt.Errorf("jq error: %w", err)
		}
		if s, ok := r.(string); ok && raw {
			lines = append(lines, s)
			continue
		}
		b, err := json.Marshal(r)
		if err != nil {
			return "", fmt.Errorf("failed to encode result: %w", err)
		}
		lines = append(lines, string(b))
	}
	return strings.Join(lines, "\n"), nil
}

func (p *Printer) render(headers []string, rows [][]string) error {
	if !p.tty {
		return writeTSV(p.w, headers, rows)
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	_, err := fmt.Fprintln(p.w, t.Render())
	return err
}

var tsvEscaper = strings.NewReplacer("\t", " ", "\n", " ", "\r", " ")

func writeTSV(w io.Writer, headers []string, rows [][]string) error {
	if _, err := fmt.Fprintln(w, strings.Join(headers, "\t")); err != nil {
		return err
	}
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, c := range row {
			cells[i] = tsvEscaper.Replace(c)
		}
		if _, err := fmt.Fprintln(w, strings.Join(cells, "\t")); err != nil {
			return err
		}
	}
	return nil
}
