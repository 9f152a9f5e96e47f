package task

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Summary aggregates the results of one run. It is not safe for concurrent use; the scheduler records
// results from a single collecting goroutine.
type Summary struct {
	RunID          string              `json:"run_id"`
	Total          int                 `json:"total"`
	Succeeded      int                 `json:"succeeded"`
	Failed         int                 `json:"failed"`
	Elapsed        time.Duration       `json:"elapsed"`
	FailuresByKind map[FailureKind]int `json:"failures_by_kind,omitempty"`
	Failures       []Result            `json:"failures,omitempty"`
	Results        []Result            `json:"-"`
}

func NewSummary(total int) *Summary {
	return &Summary{
		RunID:          uuid.New().String(),
		Total:          total,
		FailuresByKind: make(map[FailureKind]int),
	}
}

func (s *Summary) Record(r Result) {
	s.Results = append(s.Results, r)
	if r.OK() {
		s.Succeeded++
		return
	}

	s.Failed++
	s.FailuresByKind[r.Kind]++
	s.Failures = append(s.Failures, r)
}

// Finish stamps the elapsed time and orders failures by file name so the report does not depend on
// completion order.
func (s *Summary) Finish(elapsed time.Duration) {
	s.Elapsed = elapsed
	byName := func(rs []Result) func(i, j int) bool {
		return func(i, j int) bool { return rs[i].Task.DisplayName < rs[j].Task.DisplayName }
	}
	sort.Slice(s.Failures, byName(s.Failures))
	sort.Slice(s.Results, byName(s.Results))
}

func (s *Summary) complete() bool {
	return s.Succeeded+s.Failed == s.Total
}

func (s *Summary) AveragePerFile() time.Duration {
	if s.Total == 0 {
		return 0
	}
	return s.Elapsed / time.Duration(s.Total)
}

// Report writes the human-readable run summary.
func (s *Summary) Report(w io.Writer, outputLocation string) error {
	var b strings.Builder

	b.WriteString("\nConversion summary:\n")
	b.WriteString(strings.Repeat("-", 50) + "\n")
	fmt.Fprintf(&b, "Files found:            %d\n", s.Total)
	fmt.Fprintf(&b, "Successful conversions: %d\n", s.Succeeded)
	fmt.Fprintf(&b, "Failed conversions:     %d\n", s.Failed)
	if !s.complete() {
		fmt.Fprintf(&b, "Not processed:          %d\n", s.Total-s.Succeeded-s.Failed)
	}
	fmt.Fprintf(&b, "Total time:             %.2f seconds\n", s.Elapsed.Seconds())
	fmt.Fprintf(&b, "Average time per file:  %.2f seconds\n", s.AveragePerFile().Seconds())

	if len(s.FailuresByKind) > 0 {
		kinds := make([]string, 0, len(s.FailuresByKind))
		for k := range s.FailuresByKind {
			kinds = append(kinds, string(k))
		}
		sort.Strings(kinds)

		b.WriteString("\nFailures by kind:\n")
		for _, k := range kinds {
			fmt.Fprintf(&b, "  %-18s %d\n", k, s.FailuresByKind[FailureKind(k)])
		}
		b.WriteString("\nFailed files:\n")
		for _, r := range s.Failures {
			fmt.Fprintf(&b, "  %s (%s)\n", r.Task.DisplayName, r.Kind)
		}
	}

	fmt.Fprintf(&b, "\nOutput location: %s\n", outputLocation)

	_, err := io.WriteString(w, b.String())
	return err
}
