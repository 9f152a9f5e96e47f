// Package report writes a per-file run report next to the artifacts, as CSV or JSON.
package report

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/nadmax/img2md/internal/task"
)

const (
	FormatCSV  = "csv"
	FormatJSON = "json"
)

var header = []string{"File", "Status", "Failure Kind", "Message", "Duration (ms)", "Artifact"}

// Rows renders one row per result, header first.
func Rows(s *task.Summary) [][]string {
	data := [][]string{header}
	for _, r := range s.Results {
		data = append(data, []string{
			r.Task.DisplayName,
			string(r.Status),
			string(r.Kind),
			r.Message,
			strconv.FormatInt(r.Duration.Milliseconds(), 10),
			r.ArtifactPath,
		})
	}
	return data
}

// Save writes the report for s into dir and returns the file path. The name carries the run timestamp so
// successive runs do not overwrite each other.
func Save(dir, format string, s *task.Summary, now time.Time) (string, error) {
	if format == "" {
		format = FormatCSV
	}
	if format != FormatCSV && format != FormatJSON {
		return "", fmt.Errorf("unsupported report format: %s (available: csv, json)", format)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create report directory: %w", err)
	}

	filename := fmt.Sprintf("img2md_report_%s.%s", now.Format("20060102_150405"), format)
	path := filepath.Join(dir, filename)

	data := Rows(s)
	var err error
	switch format {
	case FormatCSV:
		err = saveAsCSV(path, data)
	case FormatJSON:
		err = saveAsJSON(path, s, data, now)
	}
	if err != nil {
		return "", fmt.Errorf("save report: %w", err)
	}
	return path, nil
}

func saveAsCSV(path string, data [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			slog.Warn("failed to close report file", "path", path, "error", closeErr)
		}
	}()

	writer := csv.NewWriter(file)
	if err := writer.WriteAll(data); err != nil {
		return err
	}
	return writer.Error()
}

func saveAsJSON(path string, s *task.Summary, data [][]string, now time.Time) error {
	if len(data) < 1 {
		return errors.New("missing report header")
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			slog.Warn("failed to close report file", "path", path, "error", closeErr)
		}
	}()

	headers := data[0]
	records := make([]map[string]string, 0, len(data)-1)
	for _, row := range data[1:] {
		record := make(map[string]string, len(headers))
		for i, h := range headers {
			if i < len(row) {
				record[h] = row[i]
			}
		}
		records = append(records, record)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(map[string]any{
		"generated_at":     now.Format(time.RFC3339),
		"run_id":           s.RunID,
		"total":            s.Total,
		"succeeded":        s.Succeeded,
		"failed":           s.Failed,
		"elapsed_seconds":  s.Elapsed.Seconds(),
		"failures_by_kind": s.FailuresByKind,
		"data":             records,
		"total_rows":       len(records),
	})
}
