// Package source discovers the images of a run and maps file extensions to mime types.
package source

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nadmax/img2md/internal/task"
)

var mimeTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// DefaultExtensions is used when no extension list is configured.
var DefaultExtensions = []string{".jpg", ".jpeg", ".png"}

// MimeType derives the mime type from the file extension. Unrecognized extensions are reported as
// image/jpeg; the backend decides whether it can read the bytes.
func MimeType(path string) string {
	if mt, ok := mimeTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return mt
	}
	return "image/jpeg"
}

// Enumerate lists the regular files directly inside dir whose extension, compared case-insensitively,
// is in extensions. Results follow directory listing order. No matches is not an error.
func Enumerate(dir string, extensions []string) ([]task.ImageTask, error) {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	wanted := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		wanted[ext] = true
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read input directory %s: %w", dir, err)
	}

	tasks := make([]task.ImageTask, 0, len(entries))
	for _, entry := range entries {
		if !wanted[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		// Stat follows symlinks.
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		tasks = append(tasks, task.NewImageTask(path))
	}

	return tasks, nil
}
