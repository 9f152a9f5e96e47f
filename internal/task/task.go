// Package task defines the core domain model of a conversion run: the image tasks discovered on disk,
// the result each of them produces and the summary aggregated over a whole run.
package task

import (
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

type (
	ResultStatus string
	FailureKind  string
	ImageTask    struct {
		ID          string `json:"id"`
		SourcePath  string `json:"source_path"`
		DisplayName string `json:"display_name"`
	}
	Result struct {
		Task         ImageTask     `json:"task"`
		Status       ResultStatus  `json:"status"`
		Markdown     string        `json:"-"`
		Kind         FailureKind   `json:"kind,omitempty"`
		Message      string        `json:"message,omitempty"`
		ArtifactPath string        `json:"artifact_path,omitempty"`
		Duration     time.Duration `json:"duration"`
	}
)

const (
	StatusSucceeded ResultStatus = "succeeded"
	StatusFailed    ResultStatus = "failed"
)

const (
	KindIO              FailureKind = "io_error"
	KindTransport       FailureKind = "transport"
	KindRateLimited     FailureKind = "rate_limited"
	KindInvalidResponse FailureKind = "invalid_response"
	KindAuth            FailureKind = "auth_error"
)

func NewImageTask(sourcePath string) ImageTask {
	return ImageTask{
		ID:          uuid.New().String(),
		SourcePath:  sourcePath,
		DisplayName: filepath.Base(sourcePath),
	}
}

func Succeeded(t ImageTask, markdown string) Result {
	return Result{
		Task:     t,
		Status:   StatusSucceeded,
		Markdown: markdown,
	}
}

func Failed(t ImageTask, kind FailureKind, message string) Result {
	return Result{
		Task:    t,
		Status:  StatusFailed,
		Kind:    kind,
		Message: message,
	}
}

func (r Result) OK() bool {
	return r.Status == StatusSucceeded
}
