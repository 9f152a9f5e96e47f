package task

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewImageTask(t *testing.T) {
	task := NewImageTask("/data/in/chart.PNG")

	assert.NotEmpty(t, task.ID)
	assert.Equal(t, "/data/in/chart.PNG", task.SourcePath)
	assert.Equal(t, "chart.PNG", task.DisplayName)
}

func TestNewImageTask_UniqueIDs(t *testing.T) {
	a := NewImageTask("a.jpg")
	b := NewImageTask("a.jpg")

	assert.NotEqual(t, a.ID, b.ID)
}

func TestResultConstructors(t *testing.T) {
	task := NewImageTask("photo.jpg")

	ok := Succeeded(task, "# Photo")
	assert.True(t, ok.OK())
	assert.Equal(t, "# Photo", ok.Markdown)
	assert.Empty(t, ok.Kind)

	failed := Failed(task, KindRateLimited, "too many requests")
	assert.False(t, failed.OK())
	assert.Equal(t, StatusFailed, failed.Status)
	assert.Equal(t, KindRateLimited, failed.Kind)
	assert.Equal(t, "too many requests", failed.Message)
}

func TestFailureKinds(t *testing.T) {
	assert.Equal(t, FailureKind("io_error"), KindIO)
	assert.Equal(t, FailureKind("transport"), KindTransport)
	assert.Equal(t, FailureKind("rate_limited"), KindRateLimited)
	assert.Equal(t, FailureKind("invalid_response"), KindInvalidResponse)
	assert.Equal(t, FailureKind("auth_error"), KindAuth)
}

func TestSummaryRecord(t *testing.T) {
	s := NewSummary(4)

	s.Record(Succeeded(NewImageTask("a.jpg"), "a"))
	s.Record(Failed(NewImageTask("c.jpg"), KindTransport, "connection reset"))
	s.Record(Succeeded(NewImageTask("b.jpg"), "b"))
	s.Record(Failed(NewImageTask("a.png"), KindTransport, "timeout"))
	s.Finish(2 * time.Second)

	assert.NotEmpty(t, s.RunID)
	assert.Equal(t, 2, s.Succeeded)
	assert.Equal(t, 2, s.Failed)
	assert.True(t, s.complete())
	assert.Equal(t, 2, s.FailuresByKind[KindTransport])
	require.Len(t, s.Failures, 2)
	assert.Equal(t, "a.png", s.Failures[0].Task.DisplayName)
	assert.Equal(t, "c.jpg", s.Failures[1].Task.DisplayName)
	require.Len(t, s.Results, 4)
	assert.Equal(t, "a.jpg", s.Results[0].Task.DisplayName)
	assert.Equal(t, "a.png", s.Results[1].Task.DisplayName)
	assert.Equal(t, 500*time.Millisecond, s.AveragePerFile())
}

func TestSummaryEmpty(t *testing.T) {
	s := NewSummary(0)
	s.Finish(0)

	assert.True(t, s.complete())
	assert.Equal(t, time.Duration(0), s.AveragePerFile())
}

func TestSummaryReport(t *testing.T) {
	s := NewSummary(3)
	s.Record(Succeeded(NewImageTask("a.jpg"), "a"))
	s.Record(Failed(NewImageTask("broken.png"), KindInvalidResponse, "empty response"))
	s.Record(Failed(NewImageTask("denied.jpg"), KindAuth, "invalid key"))
	s.Finish(3 * time.Second)

	var buf bytes.Buffer
	require.NoError(t, s.Report(&buf, "/out"))

	out := buf.String()
	assert.Contains(t, out, "Files found:            3")
	assert.Contains(t, out, "Successful conversions: 1")
	assert.Contains(t, out, "Failed conversions:     2")
	assert.Contains(t, out, "Total time:             3.00 seconds")
	assert.Contains(t, out, "Average time per file:  1.00 seconds")
	assert.Contains(t, out, "auth_error")
	assert.Contains(t, out, "broken.png (invalid_response)")
	assert.Contains(t, out, "Output location: /out")
	assert.NotContains(t, out, "Not processed")
}

func TestSummaryReport_Incomplete(t *testing.T) {
	s := NewSummary(3)
	s.Record(Succeeded(NewImageTask("a.jpg"), "a"))
	s.Finish(time.Second)

	var buf bytes.Buffer
	require.NoError(t, s.Report(&buf, "."))

	assert.False(t, s.complete())
	assert.Contains(t, buf.String(), "Not processed:          2")
}

func TestSummaryReport_NoFailures(t *testing.T) {
	s := NewSummary(1)
	s.Record(Succeeded(NewImageTask("a.jpg"), "a"))
	s.Finish(time.Second)

	var buf bytes.Buffer
	require.NoError(t, s.Report(&buf, "."))

	assert.NotContains(t, buf.String(), "Failures by kind")
}
