package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/roelfdiedericks/tgstatctl/internal/metrics"
	"github.com/roelfdiedericks/tgstatctl/internal/types"
)

func newTestClient(srv *httptest.Server) *Client {
	return New(Endpoints{
		DirectoryURL: srv.URL + "/api/channels",
		ExportURL:    srv.URL + "/api/export",
		Timeout:      2 * time.Second,
		UserAgent:    "tgstatctl/test",
	})
}

func TestListChannelsQuery(t *testing.T) {
	var gotQuery, gotRawQuery, gotUA, gotID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("query")
		gotRawQuery = r.URL.RawQuery
		gotUA = r.Header.Get("User-Agent")
		gotID = r.Header.Get("X-Request-ID")
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"channels":[{"id":1,"name":"A","slug":"@a","status":"active"},{"id":2,"name":"B","slug":"b","status":"inactive"}],"total":2}`)
	}))
	defer srv.Close()

	list, err := newTestClient(srv).ListChannels(context.Background(), "Marketing")
	if err != nil {
		t.Fatalf("ListChannels: %v", err)
	}
	if gotQuery != "Marketing" || gotRawQuery != "query=Marketing" {
		t.Errorf("query = %q (raw %q)", gotQuery, gotRawQuery)
	}
	if gotUA != "tgstatctl/test" {
		t.Errorf("User-Agent = %q", gotUA)
	}
	if gotID == "" {
		t.Error("missing X-Request-ID")
	}
	if list.Total != 2 || len(list.Channels) != 2 {
		t.Fatalf("got %d channels, total %d", len(list.Channels), list.Total)
	}
	if list.Channels[0].Name != "A" || list.Channels[1].Name != "B" {
		t.Errorf("order not kept: %+v", list.Channels)
	}
	if list.Channels[0].Link() != "https://t.me/a" {
		t.Errorf("link = %q", list.Channels[0].Link())
	}
}

func TestListChannelsEmptyQueryOmitsParam(t *testing.T) {
	var raw string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw = r.URL.RawQuery
		io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	list, err := newTestClient(srv).ListChannels(context.Background(), "")
	if err != nil {
		t.Fatalf("ListChannels: %v", err)
	}
	if raw != "" {
		t.Errorf("expected no query string, got %q", raw)
	}
	if list.Channels == nil || len(list.Channels) != 0 || list.Total != 0 {
		t.Errorf("absent fields should decode to empty: %+v", list)
	}
}

func TestListChannelsEncodesQuery(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query().Get("query")
		io.WriteString(w, `{"channels":[],"total":0}`)
	}))
	defer srv.Close()

	if _, err := newTestClient(srv).ListChannels(context.Background(), "крипто & news"); err != nil {
		t.Fatalf("ListChannels: %v", err)
	}
	if got != "крипто & news" {
		t.Errorf("query round-trip = %q", got)
	}
}

func TestListChannelsErrors(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantStatus int
		wantMsg    string
		network    bool
		decode     bool
	}{
		{
			name: "server error with json body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				io.WriteString(w, `{"error":"database is locked"}`)
			},
			wantStatus: 500,
			wantMsg:    "database is locked",
			network:    true,
		},
		{
			name: "plain text error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "bad gateway", http.StatusBadGateway)
			},
			wantStatus: 502,
			wantMsg:    "bad gateway",
			network:    true,
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, `<html>oops</html>`)
			},
			decode: true,
		},
		{
			name: "wrong shape",
			handler: func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, `{"channels":"nope"}`)
			},
			decode: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := newTestClient(srv).ListChannels(context.Background(), "")
			if err == nil {
				t.Fatal("expected error")
			}
			if IsNetwork(err) != tt.network || IsDecode(err) != tt.decode {
				t.Fatalf("classification wrong for %v", err)
			}
			if tt.network {
				var ne *NetworkError
				errors.As(err, &ne)
				if ne.Status != tt.wantStatus || ne.Message != tt.wantMsg {
					t.Errorf("got status %d message %q", ne.Status, ne.Message)
				}
			}
		})
	}
}

func TestListChannelsTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := New(Endpoints{DirectoryURL: srv.URL, Timeout: 50 * time.Millisecond})
	_, err := c.ListChannels(context.Background(), "")
	if !IsNetwork(err) {
		t.Fatalf("expected network error, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded in chain, got %v", err)
	}
}

func TestCollect(t *testing.T) {
	var method, contentType string
	var bodyLen int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		contentType = r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		bodyLen = len(b)
		io.WriteString(w, `{"status":"ok","message":"Done","inserted":4}`)
	}))
	defer srv.Close()

	res, err := newTestClient(srv).Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if method != http.MethodPost || contentType != "application/json" || bodyLen != 0 {
		t.Errorf("request: %s %q body=%d", method, contentType, bodyLen)
	}
	if res.Message != "Done" || res.Inserted != 4 {
		t.Errorf("result = %+v", res)
	}
}

func TestExport(t *testing.T) {
	var format string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		format = r.URL.Query().Get("format")
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		io.WriteString(w, "id,name\n1,A\n")
	}))
	defer srv.Close()

	p, err := newTestClient(srv).Export(context.Background(), "CSV")
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	defer p.Close()

	if format != "csv" {
		t.Errorf("format param = %q", format)
	}
	data, err := io.ReadAll(p.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(data) != "id,name\n1,A\n" || !strings.HasPrefix(p.ContentType, "text/csv") {
		t.Errorf("payload = %q (%s)", data, p.ContentType)
	}
}

func TestExportSuccessWaitsForBody(t *testing.T) {
	metrics.GetInstance().Reset()
	defer metrics.GetInstance().Reset()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "id,name\n")
	}))
	defer srv.Close()

	start := time.Now()
	p, err := newTestClient(srv).Export(context.Background(), types.FormatCSV)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	p.Close()
	if sum := metrics.Summarize(metricTopic); sum.Requests != 0 {
		t.Fatalf("headers alone recorded %d requests", sum.Requests)
	}

	RecordExport(start, errors.New("disk full"))
	if sum := metrics.Summarize(metricTopic); sum.Requests != 1 || sum.Failures != 1 {
		t.Errorf("after failed save = %+v", sum)
	}
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	c := New(Endpoints{ExportURL: "http://127.0.0.1:1/export"})
	if _, err := c.Export(context.Background(), types.ExportFormat("pdf")); err == nil {
		t.Fatal("expected error for pdf")
	}
}

func TestMetricsRecorded(t *testing.T) {
	metrics.GetInstance().Reset()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	newTestClient(srv).ListChannels(context.Background(), "")
	sum := metrics.Summarize(metricTopic)
	if sum.Requests != 1 || sum.Failures != 1 {
		t.Errorf("summary = %+v", sum)
	}
	if sum.Health != metrics.HealthCritical {
		t.Errorf("health = %v, want critical after only failures", sum.Health)
	}
}

func TestReason(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&NetworkError{Op: "list", Err: errors.New("refused")}, "network"},
		{&NetworkError{Op: "list", Status: 404}, "status"},
		{&DecodeError{Op: "list", Err: errors.New("eof")}, "decode"},
		{errors.New("x"), "other"},
	}
	for _, tt := range tests {
		if got := Reason(tt.err); got != tt.want {
			t.Errorf("Reason(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
