// Package metrics exposes analysis and job runner counters to Prometheus.
package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics
type Metrics struct {
	// Job runner state
	JobsSubmitted atomic.Uint64
	JobsRejected  atomic.Uint64
	JobsCompleted atomic.Uint64
	JobsFailed    atomic.Uint64
	JobsFallback  atomic.Uint64
	JobsQueued    atomic.Int64
	JobsRunning   atomic.Int64

	// Frame processing counters
	FramesProcessed atomic.Uint64
	FramesFailed    atomic.Uint64
	Detections      atomic.Uint64

	analyses *prometheus.CounterVec
	duration *prometheus.HistogramVec

	// Prometheus collectors
	registry *prometheus.Registry
}

// New creates a new Metrics instance with Prometheus collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crowcount_analyses_total",
			Help: "Analysis runs by mode and outcome",
		}, []string{"mode", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "crowcount_analysis_duration_seconds",
			Help:    "Wall time of analysis runs",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"mode"}),
	}

	m.registry.MustRegister(m.analyses, m.duration)
	m.registerGauges()

	return m
}

func (m *Metrics) gauge(name, help string, read func() float64) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: help}, read))
}

// registerGauges exposes the atomic counters.
func (m *Metrics) registerGauges() {
	// Jobs
	m.gauge("crowcount_jobs_submitted_total", "Jobs accepted by the runner",
		func() float64 { return float64(m.JobsSubmitted.Load()) })
	m.gauge("crowcount_jobs_rejected_total", "Jobs refused because the queue was full",
		func() float64 { return float64(m.JobsRejected.Load()) })
	m.gauge("crowcount_jobs_completed_total", "Jobs finished successfully",
		func() float64 { return float64(m.JobsCompleted.Load()) })
	m.gauge("crowcount_jobs_failed_total", "Jobs finished with an error",
		func() float64 { return float64(m.JobsFailed.Load()) })
	m.gauge("crowcount_jobs_fallback_total", "Detector jobs retried in motion mode",
		func() float64 { return float64(m.JobsFallback.Load()) })
	m.gauge("crowcount_jobs_queued", "Jobs waiting for a worker",
		func() float64 { return float64(m.JobsQueued.Load()) })
	m.gauge("crowcount_jobs_running", "Jobs currently being analysed",
		func() float64 { return float64(m.JobsRunning.Load()) })

	// Frames
	m.gauge("crowcount_frames_processed_total", "Sampled frames run through a detector",
		func() float64 { return float64(m.FramesProcessed.Load()) })
	m.gauge("crowcount_frames_failed_total", "Sampled frames whose detection failed",
		func() float64 { return float64(m.FramesFailed.Load()) })
	m.gauge("crowcount_detections_total", "Detections attributed to zones and cells",
		func() float64 { return float64(m.Detections.Load()) })
}

// Run summarises one finished analysis.
type Run struct {
	Mode       string
	Frames     int
	Failed     int
	Detections int
	Duration   time.Duration
	Err        error
}

// ObserveRun records a finished analysis.
func (m *Metrics) ObserveRun(r Run) {
	outcome := "ok"
	if r.Err != nil {
		outcome = "error"
	}
	m.analyses.WithLabelValues(r.Mode, outcome).Inc()
	m.duration.WithLabelValues(r.Mode).Observe(r.Duration.Seconds())

	m.FramesProcessed.Add(uint64(max(r.Frames, 0)))
	m.FramesFailed.Add(uint64(max(r.Failed, 0)))
	m.Detections.Add(uint64(max(r.Detections, 0)))
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
