// Package artifact persists converted markdown next to, or in a directory derived from, its source image.
package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Writer maps a source image to <Dir>/<stem><Suffix>.md. An empty Dir writes beside the source.
type Writer struct {
	Dir    string
	Suffix string
}

func NewWriter(dir, suffix string) *Writer {
	return &Writer{Dir: dir, Suffix: suffix}
}

func (w *Writer) Path(sourcePath string) string {
	base := filepath.Base(sourcePath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	dir := w.Dir
	if dir == "" {
		dir = filepath.Dir(sourcePath)
	}
	return filepath.Join(dir, stem+w.Suffix+".md")
}

// Location describes where artifacts end up, for the run summary.
func (w *Writer) Location(inputDir string) string {
	if w.Dir == "" {
		return inputDir
	}
	return w.Dir
}

// Write stores markdown as UTF-8 at Path(sourcePath), replacing any existing file.
func (w *Writer) Write(sourcePath, markdown string) (string, error) {
	path := w.Path(sourcePath)
	dir := filepath.Dir(path)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".img2md-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.WriteString(markdown); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return "", fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("rename to %s: %w", path, err)
	}

	return path, nil
}
