// Package metrics provides Prometheus metrics for conversion runs. A batch run has no scrape endpoint, so
// the registry can be dumped to a node_exporter textfile at the end of the run.
package metrics

import (
	"time"

	"github.com/nadmax/img2md/internal/task"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ConversionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "img2md_conversions_total",
			Help: "Total number of image conversions by outcome",
		},
		[]string{"backend", "status"},
	)
	ConversionFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "img2md_conversion_failures_total",
			Help: "Total number of failed conversions by failure kind",
		},
		[]string{"backend", "kind"},
	)
	ConversionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "img2md_conversion_duration_seconds",
			Help:    "Time spent converting one image, including the backend round trip",
			Buckets: []float64{.5, 1, 2, 5, 10, 20, 30, 60, 120, 300},
		},
		[]string{"backend", "status"},
	)
	ImageBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "img2md_image_bytes",
			Help:    "Size of images sent to the backend",
			Buckets: prometheus.ExponentialBuckets(16*1024, 4, 8),
		},
	)
	BackendInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "img2md_backend_in_flight",
			Help: "Number of backend calls currently in flight",
		},
	)
	LastRunFiles = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "img2md_last_run_files",
			Help: "Files counted in the last run by outcome",
		},
		[]string{"outcome"},
	)
	LastRunDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "img2md_last_run_duration_seconds",
			Help: "Wall-clock duration of the last run",
		},
	)
	LastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "img2md_last_run_timestamp_seconds",
			Help: "Unix time the last run finished",
		},
	)
)

func RecordConversion(backend string, r task.Result) {
	ConversionsTotal.WithLabelValues(backend, string(r.Status)).Inc()
	ConversionDuration.WithLabelValues(backend, string(r.Status)).Observe(r.Duration.Seconds())
	if !r.OK() {
		ConversionFailures.WithLabelValues(backend, string(r.Kind)).Inc()
	}
}

func RecordImageSize(size int) {
	ImageBytes.Observe(float64(size))
}

func BackendCallStarted() {
	BackendInFlight.Inc()
}

func BackendCallFinished() {
	BackendInFlight.Dec()
}

func RecordRun(s *task.Summary, finishedAt time.Time) {
	LastRunFiles.WithLabelValues("total").Set(float64(s.Total))
	LastRunFiles.WithLabelValues("succeeded").Set(float64(s.Succeeded))
	LastRunFiles.WithLabelValues("failed").Set(float64(s.Failed))
	LastRunDuration.Set(s.Elapsed.Seconds())
	LastRunTimestamp.Set(float64(finishedAt.Unix()))
}

// WriteTextfile writes the default registry in the text exposition format, atomically.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
