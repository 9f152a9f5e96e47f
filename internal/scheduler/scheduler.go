// Package scheduler fans image tasks out over a bounded pool of workers and aggregates their results into
// a run summary.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nadmax/img2md/internal/metrics"
	"github.com/nadmax/img2md/internal/task"
)

// DefaultConcurrency stays well under typical provider rate limits.
const DefaultConcurrency = 4

type Converter interface {
	BackendName() string
	Run(ctx context.Context, t task.ImageTask) task.Result
}

type ArtifactWriter interface {
	Write(sourcePath, markdown string) (string, error)
}

type ProgressFunc func(done, total int, r task.Result)

type Scheduler struct {
	converter   Converter
	writer      ArtifactWriter
	concurrency int
	logger      *slog.Logger
	progress    ProgressFunc
}

func NewScheduler(c Converter, w ArtifactWriter, concurrency int, logger *slog.Logger) *Scheduler {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		converter:   c,
		writer:      w,
		concurrency: concurrency,
		logger:      logger,
	}
}

// SetProgress registers a callback invoked on the collecting goroutine after each result.
func (s *Scheduler) SetProgress(fn ProgressFunc) {
	s.progress = fn
}

// Run converts every task exactly once and returns when all of them have produced a result. Results are
// collected in completion order; a failed task never stops its siblings. The summary is only touched by
// the calling goroutine.
func (s *Scheduler) Run(ctx context.Context, tasks []task.ImageTask) *task.Summary {
	start := time.Now()
	summary := task.NewSummary(len(tasks))
	s.logger.Info("run started",
		"run_id", summary.RunID,
		"files", len(tasks),
		"backend", s.converter.BackendName(),
		"concurrency", s.concurrency,
	)

	pending := make(chan task.ImageTask)
	results := make(chan task.Result)

	var wg sync.WaitGroup
	for range min(s.concurrency, len(tasks)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range pending {
				results <- s.process(ctx, t)
			}
		}()
	}

	go func() {
		for _, t := range tasks {
			pending <- t
		}
		close(pending)
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	done := 0
	for r := range results {
		done++
		summary.Record(r)
		metrics.RecordConversion(s.converter.BackendName(), r)
		s.logResult(summary.RunID, r)
		if s.progress != nil {
			s.progress(done, len(tasks), r)
		}
	}

	summary.Finish(time.Since(start))
	metrics.RecordRun(summary, time.Now())
	s.logger.Info("run finished",
		"run_id", summary.RunID,
		"total", summary.Total,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"elapsed", summary.Elapsed.Round(time.Millisecond).String(),
	)
	return summary
}

func (s *Scheduler) process(ctx context.Context, t task.ImageTask) task.Result {
	r := s.converter.Run(ctx, t)
	if !r.OK() {
		return r
	}

	path, err := s.writer.Write(t.SourcePath, r.Markdown)
	if err != nil {
		failed := task.Failed(t, task.KindIO, err.Error())
		failed.Duration = r.Duration
		return failed
	}
	r.ArtifactPath = path
	return r
}

func (s *Scheduler) logResult(runID string, r task.Result) {
	if r.OK() {
		s.logger.Info("conversion succeeded",
			"run_id", runID,
			"task_id", r.Task.ID,
			"file", r.Task.DisplayName,
			"artifact", r.ArtifactPath,
			"duration_ms", r.Duration.Milliseconds(),
		)
		return
	}
	s.logger.Error("conversion failed",
		"run_id", runID,
		"task_id", r.Task.ID,
		"file", r.Task.DisplayName,
		"kind", string(r.Kind),
		"error", r.Message,
		"duration_ms", r.Duration.Milliseconds(),
	)
}
