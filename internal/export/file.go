package export

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nvandessel/rabbitsim/internal/simulation"
)

// Format selects an export layout.
type Format string

const (
	FormatCSV       Format = "csv"        // one summary row per run
	FormatSeriesCSV Format = "series-csv" // one row per run-month
	FormatArrow     Format = "arrow"      // Arrow IPC file of run summaries
)

// ParseFormat accepts a format name case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatSeriesCSV, FormatArrow:
		return f, nil
	default:
		return "", fmt.Errorf("unknown export format %q (valid: csv, series-csv, arrow)", s)
	}
}

// Ext is the file extension used for the format.
func (f Format) Ext() string {
	if f == FormatArrow {
		return ".arrow"
	}
	return ".csv"
}

// Write renders results to w and returns the number of data rows.
func Write(w io.Writer, f Format, results []simulation.Result, meta map[string]string) (int, error) {
	switch f {
	case FormatCSV:
		return len(results), WriteRunsCSV(w, results)
	case FormatSeriesCSV:
		return WriteSeriesCSV(w, results)
	case FormatArrow:
		return len(results), WriteRunsArrow(w, results, meta)
	default:
		return 0, fmt.Errorf("unknown export format %q", f)
	}
}

// WriteFile writes results to path, replacing any existing file. A failed
// write removes the partial file.
func WriteFile(path string, f Format, results []simulation.Result, meta map[string]string) (int, error) {
	out, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("creating %s: %w", path, err)
	}
	rows, err := Write(out, f, results, meta)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return 0, err
	}
	return rows, nil
}
