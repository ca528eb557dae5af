package output

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/roelfdiedericks/tgstatctl/internal/types"
)

func sampleList() *types.ChannelList {
	return &types.ChannelList{
		Channels: []types.Channel{
			{ID: 1, Name: "Маркетинг PRO", Slug: "@marketing_pro", Subscribers: 125000, Category: "Маркетинг", Admin: "@admin1", LastChecked: "2026-03-01", Status: types.ChannelActive},
			{ID: 2, Name: "Tab\there", Slug: "@tab", Subscribers: 42, Category: "PR", Status: types.ChannelInactive},
		},
		Total: 2,
	}
}

func TestChannelsTSV(t *testing.T) {
	var buf bytes.Buffer
	if err := NewWithMode(&buf, false).Channels(sampleList()); err != nil {
		t.Fatalf("Channels: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %q", lines)
	}
	if lines[0] != "ID\tName\tSlug\tSubscribers\tCategory\tAdmin\tLast checked\tStatus" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[1] != "1\tМаркетинг PRO\t@marketing_pro\t125000\tМаркетинг\t@admin1\t2026-03-01\tactive" {
		t.Errorf("row = %q", lines[1])
	}
	if fields := strings.Split(lines[2], "\t"); len(fields) != 8 || fields[1] != "Tab here" {
		t.Errorf("embedded tab not escaped: %q", lines[2])
	}
}

func TestChannelsTable(t *testing.T) {
	var buf bytes.Buffer
	if err := NewWithMode(&buf, true).Channels(sampleList()); err != nil {
		t.Fatalf("Channels: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Subscribers", "125,000", "@marketing_pro", "2 of 2 channels"} {
		if !strings.Contains(out, want) {
			t.Errorf("table output missing %q:\n%s", want, out)
		}
	}
}

func TestJobsTSV(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(90 * time.Second)
	jobs := []types.JobRecord{
		{ID: 7, Name: "Fast scan", Status: types.JobCompleted, Progress: 100, Source: "cli", StartedAt: start, FinishedAt: &end, Message: "Done"},
	}

	var buf bytes.Buffer
	if err := NewWithMode(&buf, false).Jobs(jobs, end.Add(time.Hour)); err != nil {
		t.Fatalf("Jobs: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 || lines[1] != "7\tFast scan\tcompleted\t100%\tcli\t2026-03-01T10:00:00Z\t1m30s\tDone" {
		t.Errorf("output = %q", lines)
	}
}

func TestQuery(t *testing.T) {
	tests := []struct {
		expr    string
		raw     bool
		want    string
		wantErr bool
	}{
		{".total", false, "2", false},
		{".channels[].slug", true, "@marketing_pro\n@tab", false},
		{".channels[].slug", false, `"@marketing_pro"` + "\n" + `"@tab"`, false},
		{`[.channels[] | select(.status == "active") | .id]`, false, "[1]", false},
		{".channels[", false, "", true},
		{".total | error", false, "", true},
	}

	for _, tt := range tests {
		got, err := Query(sampleList(), tt.expr, tt.raw)
		if (err != nil) != tt.wantErr {
			t.Errorf("Query(%q) error = %v", tt.expr, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Query(%q) = %q, want %q", tt.expr, got, tt.want)
		}
	}
}

func TestJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := NewWithMode(&buf, false).JSON(map[string]int{"total": 2}); err != nil {
		t.Fatalf("JSON: %v", err)
	}
	if buf.String() != "{\n  \"total\": 2\n}\n" {
		t.Errorf("json = %q", buf.String())
	}
}
