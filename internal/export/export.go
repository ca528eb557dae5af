// Package export stores binary export payloads as tgstat_channels.<format>
// files, checking the content matches the requested format first.
package export

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	. "github.com/roelfdiedericks/tgstatctl/internal/logging"
	"github.com/roelfdiedericks/tgstatctl/internal/paths"
	"github.com/roelfdiedericks/tgstatctl/internal/types"
)

const baseName = "tgstat_channels"

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ErrEmpty is returned for a zero-byte payload.
var ErrEmpty = errors.New("export payload is empty")

// File is an export present on disk.
type File struct {
	Path    string
	Format  types.ExportFormat
	Size    int64
	ModTime time.Time
}

// FileName returns the file name used for format, e.g. "tgstat_channels.csv".
func FileName(format types.ExportFormat) string {
	return baseName + "." + string(format)
}

// Save streams body into dir/tgstat_channels.<format>. body is always closed.
// The payload goes to a temp file first and is only renamed into place once
// its type checks out, so a failed export leaves no file behind.
func Save(body io.ReadCloser, format types.ExportFormat, dir string) (string, error) {
	defer body.Close()

	format, err := types.ParseExportFormat(string(format))
	if err != nil {
		return "", err
	}
	if err := paths.EnsureDir(dir); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(dir, ".export-*.part")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	kept := false
	defer func() {
		if !kept {
			os.Remove(tmpPath)
		}
	}()

	n, err := io.Copy(tmp, body)
	if err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to download export: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}
	if n == 0 {
		return "", ErrEmpty
	}

	detected, err := mimetype.DetectFile(tmpPath)
	if err != nil {
		return "", fmt.Errorf("failed to inspect export: %w", err)
	}
	if err := checkType(format, detected); err != nil {
		return "", err
	}

	target := filepath.Join(dir, FileName(format))
	if err := os.Rename(tmpPath, target); err != nil {
		return "", fmt.Errorf("failed to move export into place: %w", err)
	}
	kept = true

	L_info("export: saved", "path", target, "size", n, "type", detected.String())
	return target, nil
}

// checkType rejects payloads whose content does not look like format.
// Error pages (JSON, HTML) served with a 200 are the usual culprit.
func checkType(format types.ExportFormat, m *mimetype.MIME) error {
	switch format {
	case types.FormatXLSX:
		if hasAncestor(m, xlsxMIME) || hasAncestor(m, "application/zip") {
			return nil
		}
	case types.FormatCSV:
		if m.Is("application/json") || m.Is("text/html") || hasAncestor(m, "text/xml") {
			break
		}
		if hasAncestor(m, "text/plain") {
			return nil
		}
	}
	return fmt.Errorf("export is %s, not %s", m.String(), format)
}

func hasAncestor(m *mimetype.MIME, mime string) bool {
	for ; m != nil; m = m.Parent() {
		if m.Is(mime) {
			return true
		}
	}
	return false
}

// List returns the exports in dir, newest first. A missing dir is empty.
func List(dir string) ([]File, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read export dir: %w", err)
	}

	var files []File
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), baseName+".") {
			continue
		}
		format, err := types.ParseExportFormat(strings.TrimPrefix(e.Name(), baseName+"."))
		if err != nil {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, File{
			Path:    filepath.Join(dir, e.Name()),
			Format:  format,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].ModTime.After(files[j].ModTime)
	})
	return files, nil
}
