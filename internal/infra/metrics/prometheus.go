package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timelapse_jobs_processed_total",
		Help: "Total number of timelapse jobs processed, by status",
	}, []string{"status"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "timelapse_stage_duration_seconds",
		Help:    "Duration of each pipeline stage",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
	}, []string{"stage"})

	FramesCompositedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "timelapse_frames_composited_total",
		Help: "Total number of per-year frames composited across all jobs",
	})

	LightsOnlyFramesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "timelapse_lights_only_frames_total",
		Help: "Frames degraded to lights-only because no building tiles matched the year",
	})

	ExportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timelapse_exports_total",
		Help: "Export task submissions, by outcome",
	}, []string{"outcome"})

	ActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "timelapse_active_workers",
		Help: "Number of currently active workers building timelapses",
	})

	RetryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timelapse_retry_total",
		Help: "Total number of retries",
	}, []string{"attempt"})
)
