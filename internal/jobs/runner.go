// Package jobs runs analyses in the background on a fixed worker pool and
// keeps their status in memory until the retention period expires.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/kai5263499/crow-counter/internal/analysis"
	"github.com/kai5263499/crow-counter/internal/grid"
	"github.com/kai5263499/crow-counter/internal/metrics"
	"github.com/kai5263499/crow-counter/internal/zone"
)

var (
	ErrQueueFull   = errors.New("job queue is full")
	ErrStopped     = errors.New("job runner is stopped")
	ErrUnknownMode = errors.New("unknown analysis mode")
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// Request describes one analysis.
type Request struct {
	Path     string
	Mode     string
	Zones    []zone.Zone
	Grid     grid.Spec
	Motion   analysis.MotionOptions
	Detector analysis.DetectorOptions
}

// Analyzer performs the actual work. The server wires the OpenCV-backed
// analysis functions in; tests use fakes.
type Analyzer struct {
	Motion   func(ctx context.Context, path string, zones []zone.Zone, g grid.Spec, opts analysis.MotionOptions) (*analysis.Result, error)
	Detector func(ctx context.Context, path string, zones []zone.Zone, g grid.Spec, opts analysis.DetectorOptions) (*analysis.Result, error)
}

// Options sizes the runner.
type Options struct {
	Workers          int
	QueueSize        int
	FallbackToMotion bool
	Retention        time.Duration
}

// Snapshot is a point-in-time view of a job.
type Snapshot struct {
	ID       string           `json:"id"`
	Status   Status           `json:"status"`
	Progress int              `json:"progress"`
	Mode     string           `json:"mode"`
	Source   string           `json:"source"`
	Result   *analysis.Result `json:"result,omitempty"`
	Error    string           `json:"error,omitempty"`
	Created  time.Time        `json:"created"`
	Started  *time.Time       `json:"started,omitempty"`
	Finished *time.Time       `json:"finished,omitempty"`
}

type job struct {
	req  Request
	snap Snapshot
}

// Runner owns the queue, the workers and the job table.
type Runner struct {
	analyzer Analyzer
	opts     Options
	fallback atomic.Bool
	metrics  *metrics.Metrics

	queue chan *job
	jobs  map[string]*job
	mu    sync.RWMutex

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	stopped bool

	now func() time.Time
}

// NewRunner creates a stopped runner. m may be nil.
func NewRunner(a Analyzer, opts Options, m *metrics.Metrics) *Runner {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 16
	}
	if m == nil {
		m = metrics.New()
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		analyzer: a,
		opts:     opts,
		metrics:  m,
		queue:    make(chan *job, opts.QueueSize),
		jobs:     make(map[string]*job),
		ctx:      ctx,
		cancel:   cancel,
		now:      time.Now,
	}
	r.fallback.Store(opts.FallbackToMotion)
	return r
}

// SetFallbackToMotion toggles the motion retry for analyses started after
// the call.
func (r *Runner) SetFallbackToMotion(on bool) {
	r.fallback.Store(on)
}

// Start launches the workers and the retention janitor.
func (r *Runner) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started || r.stopped {
		return
	}
	r.started = true

	for i := 0; i < r.opts.Workers; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}
	if r.opts.Retention > 0 {
		r.wg.Add(1)
		go r.janitor()
	}
	log.Info().Int("workers", r.opts.Workers).Int("queue", r.opts.QueueSize).Msg("Job runner started")
}

// Stop cancels running analyses and waits for the workers to exit. Queued
// jobs are left in the queued state.
func (r *Runner) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	r.mu.Unlock()

	r.cancel()
	r.wg.Wait()
	log.Info().Msg("Job runner stopped")
}

// Submit validates and enqueues req, returning the new job id.
func (r *Runner) Submit(req Request) (string, error) {
	req.Mode = analysis.CanonicalMode(req.Mode)
	if err := validMode(req.Mode); err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return "", ErrStopped
	}

	j := &job{
		req: req,
		snap: Snapshot{
			ID:      uuid.NewString(),
			Status:  StatusQueued,
			Mode:    req.Mode,
			Source:  req.Path,
			Created: r.now(),
		},
	}

	select {
	case r.queue <- j:
	default:
		r.metrics.JobsRejected.Add(1)
		return "", ErrQueueFull
	}

	r.jobs[j.snap.ID] = j
	r.metrics.JobsSubmitted.Add(1)
	r.metrics.JobsQueued.Add(1)
	log.Info().Str("job", j.snap.ID).Str("mode", req.Mode).Str("source", req.Path).Msg("Job queued")
	return j.snap.ID, nil
}

// Get returns a copy of the job's current state.
func (r *Runner) Get(id string) (Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[id]
	if !ok {
		return Snapshot{}, false
	}
	return j.snap, true
}

// Len is the number of tracked jobs.
func (r *Runner) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}

// Analyze runs req synchronously, retrying in motion mode when the detector
// is unavailable and fallback is enabled. "yolo" is accepted for detector.
func (r *Runner) Analyze(ctx context.Context, req Request, progress analysis.ProgressFunc) (*analysis.Result, error) {
	req.Mode = analysis.CanonicalMode(req.Mode)
	if err := validMode(req.Mode); err != nil {
		return nil, err
	}

	started := r.now()
	mode := req.Mode
	res, err := r.dispatch(ctx, mode, req, progress)

	if mode == analysis.ModeDetector && errors.Is(err, analysis.ErrDetectorUnavailable) && r.fallback.Load() {
		log.Warn().Err(err).Str("source", req.Path).Msg("Object detector unavailable, falling back to motion analysis")
		r.metrics.JobsFallback.Add(1)
		mode = analysis.ModeMotion
		res, err = r.dispatch(ctx, mode, req, progress)
		if res != nil {
			res.Meta.FallbackFrom = analysis.ModeDetector
		}
	}

	run := metrics.Run{Mode: mode, Duration: r.now().Sub(started), Err: err}
	if res != nil {
		run.Frames = res.Meta.FramesProcessed
		run.Failed = res.Meta.FramesFailed
		run.Detections = res.Meta.Detections
	}
	r.metrics.ObserveRun(run)
	return res, err
}

func (r *Runner) dispatch(ctx context.Context, mode string, req Request, progress analysis.ProgressFunc) (*analysis.Result, error) {
	switch mode {
	case analysis.ModeMotion:
		if r.analyzer.Motion == nil {
			return nil, fmt.Errorf("%w: motion analysis not wired", ErrUnknownMode)
		}
		opts := req.Motion
		opts.OnFrame = progress
		return r.analyzer.Motion(ctx, req.Path, req.Zones, req.Grid, opts)
	case analysis.ModeDetector:
		if r.analyzer.Detector == nil {
			return nil, fmt.Errorf("%w: no detector backend wired", analysis.ErrDetectorUnavailable)
		}
		opts := req.Detector
		opts.OnFrame = progress
		return r.analyzer.Detector(ctx, req.Path, req.Zones, req.Grid, opts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
}

func validMode(mode string) error {
	if mode != analysis.ModeMotion && mode != analysis.ModeDetector {
		return fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
	return nil
}

func (r *Runner) worker(n int) {
	defer r.wg.Done()
	for {
		select {
		case <-r.ctx.Done():
			log.Debug().Int("worker", n).Msg("Worker stopped")
			return
		case j := <-r.queue:
			r.run(j)
		}
	}
}

func (r *Runner) run(j *job) {
	r.metrics.JobsQueued.Add(-1)
	r.metrics.JobsRunning.Add(1)
	defer r.metrics.JobsRunning.Add(-1)

	r.update(j, func(s *Snapshot) {
		now := r.now()
		s.Status = StatusRunning
		s.Started = &now
	})
	log.Info().Str("job", j.snap.ID).Msg("Job started")

	progress := func(processed, limit int) {
		if limit <= 0 {
			return
		}
		pct := processed * 100 / limit
		r.update(j, func(s *Snapshot) {
			if pct > s.Progress && pct < 100 {
				s.Progress = pct
			}
		})
	}

	res, err := r.Analyze(r.ctx, j.req, progress)

	r.update(j, func(s *Snapshot) {
		now := r.now()
		s.Finished = &now
		s.Result = res
		if res != nil {
			s.Mode = res.Meta.Mode
		}
		if err != nil {
			s.Status = StatusError
			s.Error = err.Error()
			return
		}
		s.Status = StatusCompleted
		s.Progress = 100
	})

	if err != nil {
		r.metrics.JobsFailed.Add(1)
		log.Error().Err(err).Str("job", j.snap.ID).Msg("Job failed")
		return
	}
	r.metrics.JobsCompleted.Add(1)
	ev := log.Info().Str("job", j.snap.ID)
	if res != nil {
		ev = ev.Int("total", res.TotalCount)
	}
	ev.Msg("Job completed")
}

func (r *Runner) update(j *job, fn func(*Snapshot)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&j.snap)
}

func (r *Runner) janitor() {
	defer r.wg.Done()
	interval := r.opts.Retention / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			if n := r.evict(); n > 0 {
				log.Debug().Int("evicted", n).Msg("Expired jobs removed")
			}
		}
	}
}

// evict drops finished jobs older than the retention period.
func (r *Runner) evict() int {
	if r.opts.Retention <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.opts.Retention)

	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, j := range r.jobs {
		if j.snap.Finished != nil && j.snap.Finished.Before(cutoff) {
			delete(r.jobs, id)
			n++
		}
	}
	return n
}
