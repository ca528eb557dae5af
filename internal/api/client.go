// Package api is the HTTP client for the collection backend's directory and
// export endpoints.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	. "github.com/roelfdiedericks/tgstatctl/internal/logging"
	. "github.com/roelfdiedericks/tgstatctl/internal/metrics"
	"github.com/roelfdiedericks/tgstatctl/internal/types"
)

// DefaultTimeout bounds every request when the config does not set one.
const DefaultTimeout = 30 * time.Second

// maxErrorBody caps how much of an error response is read for its message.
const maxErrorBody = 4 << 10

const metricTopic = "api"

// Endpoints locates the backend.
type Endpoints struct {
	DirectoryURL  string
	ExportURL     string
	Timeout       time.Duration // directory requests
	ExportTimeout time.Duration // export downloads
	UserAgent     string
}

// Payload is a binary export body. The caller must Close it.
type Payload struct {
	Body          io.ReadCloser
	ContentType   string
	ContentLength int64 // -1 when unknown
}

// Close releases the response body.
func (p *Payload) Close() error {
	if p == nil || p.Body == nil {
		return nil
	}
	return p.Body.Close()
}

// Client talks to the directory and export endpoints.
type Client struct {
	endpoints  Endpoints
	httpClient *http.Client
}

// New creates a client. Zero timeouts fall back to DefaultTimeout.
func New(ep Endpoints) *Client {
	if ep.Timeout <= 0 {
		ep.Timeout = DefaultTimeout
	}
	if ep.ExportTimeout <= 0 {
		ep.ExportTimeout = ep.Timeout
	}
	if ep.UserAgent == "" {
		ep.UserAgent = "tgstatctl"
	}
	return &Client{
		endpoints: ep,
		// Per-request deadlines come from the context; the export body is
		// streamed after Do returns, so no client-wide Timeout here.
		httpClient: &http.Client{},
	}
}

// ListChannels fetches the directory. An empty query returns the default set.
func (c *Client) ListChannels(ctx context.Context, query string) (*types.ChannelList, error) {
	const op = "list"
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, c.endpoints.Timeout)
	defer cancel()

	u, err := withParam(c.endpoints.DirectoryURL, "query", query)
	if err != nil {
		return nil, fail(op, start, &NetworkError{Op: op, Err: err})
	}

	resp, err := c.do(ctx, http.MethodGet, u, op)
	if err != nil {
		return nil, fail(op, start, err)
	}
	defer resp.Body.Close()

	var list types.ChannelList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fail(op, start, &DecodeError{Op: op, Err: err})
	}
	if list.Channels == nil {
		list.Channels = []types.Channel{}
	}

	succeed(op, start)
	L_debug("api: channels listed", "query", query, "count", len(list.Channels), "total", list.Total)
	return &list, nil
}

// Collect asks the backend to start a collection run and waits for its answer.
func (c *Client) Collect(ctx context.Context) (*types.CollectResult, error) {
	const op = "collect"
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, c.endpoints.Timeout)
	defer cancel()

	resp, err := c.do(ctx, http.MethodPost, c.endpoints.DirectoryURL, op)
	if err != nil {
		return nil, fail(op, start, err)
	}
	defer resp.Body.Close()

	var result types.CollectResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fail(op, start, &DecodeError{Op: op, Err: err})
	}

	succeed(op, start)
	L_info("api: collection finished", "message", result.Message, "inserted", result.Inserted)
	return &result, nil
}

// Export requests a binary export in the given format. The returned payload
// streams the body and must be closed; the deadline covers the whole download.
func (c *Client) Export(ctx context.Context, format types.ExportFormat) (*Payload, error) {
	const op = "export"
	start := time.Now()

	format, err := types.ParseExportFormat(string(format))
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.endpoints.ExportTimeout)

	u, err := withParam(c.endpoints.ExportURL, "format", string(format))
	if err != nil {
		cancel()
		return nil, fail(op, start, &NetworkError{Op: op, Err: err})
	}

	resp, err := c.do(ctx, http.MethodGet, u, op)
	if err != nil {
		cancel()
		return nil, fail(op, start, err)
	}

	// success is recorded by RecordExport once the body has been saved
	return &Payload{
		Body:          &cancelOnClose{ReadCloser: resp.Body, cancel: cancel},
		ContentType:   resp.Header.Get("Content-Type"),
		ContentLength: resp.ContentLength,
	}, nil
}

// do sends the request and converts transport failures and non-2xx statuses
// into *NetworkError. On success the caller owns resp.Body.
func (c *Client) do(ctx context.Context, method, target, op string) (*http.Response, error) {
	var body io.Reader
	if method == http.MethodPost {
		body = http.NoBody
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, &NetworkError{Op: op, Err: err}
	}

	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.endpoints.UserAgent)
	req.Header.Set("X-Request-ID", requestID)
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/json")
	}

	L_trace("api: request", "op", op, "method", method, "url", target, "requestID", requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: op, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, &NetworkError{
			Op:      op,
			Status:  resp.StatusCode,
			Message: errorMessage(resp.Body),
			Err:     fmt.Errorf("unexpected status %s", resp.Status),
		}
	}
	return resp, nil
}

// RecordExport records an export whose body has been consumed. Export itself
// only records failures that happen before the body is handed over.
func RecordExport(start time.Time, err error) {
	if err != nil {
		fail("export", start, err)
		return
	}
	succeed("export", start)
}

// RecordStaleDrop counts a response that arrived after a newer request had
// superseded it.
func RecordStaleDrop() {
	MetricInc(metricTopic, "stale_dropped")
}

func succeed(op string, start time.Time) {
	MetricDuration(metricTopic, op, time.Since(start))
	MetricSuccess(metricTopic, op)
}

func fail(op string, start time.Time, err error) error {
	MetricDuration(metricTopic, op, time.Since(start))
	MetricFailWithReason(metricTopic, op, Reason(err))
	return err
}

// errorMessage extracts {"error": "..."} from an error body, falling back to
// the trimmed text.
func errorMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil || len(data) == 0 {
		return ""
	}
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &body) == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Message != "" {
			return body.Message
		}
	}
	return strings.TrimSpace(string(data))
}

// withParam sets key=value on base's query string; an empty value leaves base untouched.
func withParam(base, key, value string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint %q: %w", base, err)
	}
	if value == "" {
		return u.String(), nil
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// cancelOnClose releases the request context together with the body.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
