package types

import (
	"fmt"
	"strings"
)

// ExportFormat is an output format the export endpoint can produce.
type ExportFormat string

const (
	FormatXLSX ExportFormat = "xlsx"
	FormatCSV  ExportFormat = "csv"
)

// ParseExportFormat accepts "xlsx" or "csv" in any case.
func ParseExportFormat(s string) (ExportFormat, error) {
	switch f := ExportFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatXLSX, FormatCSV:
		return f, nil
	}
	return "", fmt.Errorf("unsupported export format %q (use xlsx or csv)", s)
}
