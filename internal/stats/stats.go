// Package stats derives the dashboard figures from the channel snapshot,
// the job history, the export directory and the request metrics.
package stats

import (
	"fmt"
	"sort"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roelfdiedericks/tgstatctl/internal/export"
	"github.com/roelfdiedericks/tgstatctl/internal/jobs"
	"github.com/roelfdiedericks/tgstatctl/internal/metrics"
	"github.com/roelfdiedericks/tgstatctl/internal/types"
)

// DynamicsDays is how many collection dates the dynamics chart shows.
const DynamicsDays = 4

// Input is everything the dashboard is computed from.
type Input struct {
	Total    int
	Channels []types.Channel
	Jobs     jobs.Counts
	Exports  []export.File // newest first, as export.List returns them
	Requests metrics.TopicSummary
	Now      time.Time
}

// Card is one headline figure.
type Card struct {
	Title  string
	Value  string
	Hint   string
	Health metrics.HealthStatus // request cards only
}

// DayCount is the number of channels last checked on Date (YYYY-MM-DD).
type DayCount struct {
	Date  string
	Count int
}

// CategoryCount is the share of the snapshot in one category.
type CategoryCount struct {
	Category string
	Count    int
	Share    float64 // 0-1
}

// Dashboard is the computed view.
type Dashboard struct {
	Cards      []Card
	Dynamics   []DayCount // oldest first
	Categories []CategoryCount
	Requests   []Card
}

// Compute builds the dashboard.
func Compute(in Input) Dashboard {
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}

	active := 0
	for _, c := range in.Channels {
		if c.IsActive() {
			active++
		}
	}

	exportHint := "no exports yet"
	if len(in.Exports) > 0 {
		latest := in.Exports[0]
		exportHint = fmt.Sprintf("%s, %s", export.FileName(latest.Format), humanize.RelTime(latest.ModTime, now, "ago", "from now"))
	}

	return Dashboard{
		Cards: []Card{
			{Title: "Channels collected", Value: humanize.Comma(int64(in.Total)), Hint: fmt.Sprintf("%d active in view", active)},
			{Title: "Active jobs", Value: humanize.Comma(int64(in.Jobs.Running)), Hint: fmt.Sprintf("%d completed (24h)", in.Jobs.Completed)},
			{Title: "Failed (24h)", Value: humanize.Comma(int64(in.Jobs.Failed)), Hint: failureHint(in.Jobs)},
			{Title: "Export ready", Value: humanize.Comma(int64(len(in.Exports))), Hint: exportHint},
		},
		Dynamics:   Dynamics(in.Channels, DynamicsDays),
		Categories: Categories(in.Channels),
		Requests:   requestCards(in.Requests, now),
	}
}

func failureHint(c jobs.Counts) string {
	finished := c.Completed + c.Failed
	if finished == 0 {
		return "no finished runs"
	}
	return fmt.Sprintf("%.0f%% of finished runs", 100*float64(c.Failed)/float64(finished))
}

func requestCards(r metrics.TopicSummary, now time.Time) []Card {
	last := "never"
	if !r.LastFailure.IsZero() {
		last = humanize.RelTime(r.LastFailure, now, "ago", "from now")
	}
	return []Card{
		{Title: "Requests", Value: humanize.Comma(r.Requests), Health: r.Health},
		{Title: "Failures", Value: humanize.Comma(r.Failures), Hint: "last " + last, Health: r.Health},
		{Title: "Avg latency", Value: fmt.Sprintf("%.0f ms", r.AvgMs), Health: r.Health},
		{Title: "Stale dropped", Value: humanize.Comma(r.StaleDropped), Hint: "superseded searches"},
	}
}

// Dynamics counts channels per lastChecked date and keeps the latest days,
// returned oldest first. Channels never checked are ignored.
func Dynamics(channels []types.Channel, days int) []DayCount {
	counts := make(map[string]int)
	for _, c := range channels {
		if c.LastChecked == "" {
			continue
		}
		counts[c.LastChecked]++
	}

	dates := make([]string, 0, len(counts))
	for d := range counts {
		dates = append(dates, d)
	}
	// ISO dates sort lexically
	sort.Strings(dates)
	if days > 0 && len(dates) > days {
		dates = dates[len(dates)-days:]
	}

	out := make([]DayCount, len(dates))
	for i, d := range dates {
		out[i] = DayCount{Date: d, Count: counts[d]}
	}
	return out
}

// Categories breaks the snapshot down by category, largest first.
func Categories(channels []types.Channel) []CategoryCount {
	if len(channels) == 0 {
		return nil
	}
	counts := make(map[string]int)
	for _, c := range channels {
		cat := c.Category
		if cat == "" {
			cat = "uncategorised"
		}
		counts[cat]++
	}

	out := make([]CategoryCount, 0, len(counts))
	for cat, n := range counts {
		out = append(out, CategoryCount{Category: cat, Count: n, Share: float64(n) / float64(len(channels))})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Category < out[j].Category
	})
	return out
}
