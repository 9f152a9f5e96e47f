// Package worker converts a single image task into a result. A worker makes exactly one backend attempt and
// never returns an error: every failure is classified into the result.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/nadmax/img2md/internal/backend"
	"github.com/nadmax/img2md/internal/metrics"
	"github.com/nadmax/img2md/internal/source"
	"github.com/nadmax/img2md/internal/task"
)

var errEmptyFile = errors.New("file is empty")

type Worker struct {
	backend      backend.Backend
	instructions string
	sampling     backend.Sampling
	logger       *slog.Logger
}

func NewWorker(b backend.Backend, instructions string, sampling backend.Sampling, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		backend:      b,
		instructions: instructions,
		sampling:     sampling,
		logger:       logger,
	}
}

func (w *Worker) BackendName() string {
	return w.backend.Name()
}

// Run is safe for concurrent use; everything it touches besides the backend is task-local.
func (w *Worker) Run(ctx context.Context, t task.ImageTask) task.Result {
	start := time.Now()
	result := w.process(ctx, t)
	result.Duration = time.Since(start)
	return result
}

func (w *Worker) process(ctx context.Context, t task.ImageTask) task.Result {
	image, err := os.ReadFile(t.SourcePath)
	if err != nil {
		return task.Failed(t, task.KindIO, fmt.Sprintf("read image: %v", err))
	}
	if len(image) == 0 {
		return task.Failed(t, task.KindIO, fmt.Sprintf("read image: %v", errEmptyFile))
	}

	mimeType := source.MimeType(t.SourcePath)
	metrics.RecordImageSize(len(image))
	w.logger.Debug("sending image to backend",
		"task_id", t.ID,
		"file", t.DisplayName,
		"mime_type", mimeType,
		"bytes", len(image),
		"backend", w.backend.Name(),
	)

	metrics.BackendCallStarted()
	markdown, err := w.backend.Convert(ctx, backend.Request{
		Image:        image,
		MimeType:     mimeType,
		Instructions: w.instructions,
		Sampling:     w.sampling,
	})
	metrics.BackendCallFinished()

	if err != nil {
		return task.Failed(t, failureKind(err), err.Error())
	}
	return task.Succeeded(t, markdown)
}

// failureKind maps backend error kinds 1:1. Errors that did not come from an adapter are treated as
// transport failures.
func failureKind(err error) task.FailureKind {
	switch backend.KindOf(err) {
	case backend.KindRateLimited:
		return task.KindRateLimited
	case backend.KindInvalidResponse:
		return task.KindInvalidResponse
	case backend.KindAuth:
		return task.KindAuth
	default:
		return task.KindTransport
	}
}
