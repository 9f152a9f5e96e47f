// Package logging builds the run logger: slog text records on the console, optionally copied into a
// per-run log file.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type Options struct {
	Level   string
	Console io.Writer
	// ToFile enables the per-run log file in Dir (current directory when empty).
	ToFile bool
	Dir    string
	Now    time.Time
}

// Logger owns the optional log file.
type Logger struct {
	*slog.Logger
	Path string
	file *os.File
}

func FileName(now time.Time) string {
	return fmt.Sprintf("image_processing_%s.log", now.Format("20060102_150405"))
}

func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New returns a logger writing to opts.Console. When the log file cannot be opened the logger stays
// console-only and says so.
func New(opts Options) *Logger {
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	handlerOpts := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}

	if !opts.ToFile {
		return &Logger{Logger: slog.New(slog.NewTextHandler(console, handlerOpts))}
	}

	path := filepath.Join(opts.Dir, FileName(now))
	file, err := openFile(path)
	if err != nil {
		l := &Logger{Logger: slog.New(slog.NewTextHandler(console, handlerOpts))}
		l.Warn("log file unavailable, logging to console only", "path", path, "error", err)
		return l
	}

	w := io.MultiWriter(console, file)
	return &Logger{
		Logger: slog.New(slog.NewTextHandler(w, handlerOpts)),
		Path:   path,
		file:   file,
	}
}

func openFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
}

func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
