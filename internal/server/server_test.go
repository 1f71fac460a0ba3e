package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/kai5263499/crow-counter/docs"
	"github.com/kai5263499/crow-counter/internal/analysis"
	"github.com/kai5263499/crow-counter/internal/config"
	"github.com/kai5263499/crow-counter/internal/grid"
	"github.com/kai5263499/crow-counter/internal/jobs"
	"github.com/kai5263499/crow-counter/internal/metrics"
	"github.com/kai5263499/crow-counter/internal/zone"
)

type call struct {
	path  string
	zones []zone.Zone
	grid  grid.Spec
	mo    analysis.MotionOptions
	do    analysis.DetectorOptions
}

type fixture struct {
	t       *testing.T
	cfg     *config.Config
	media   string
	output  string
	cfgPath string
	handler http.Handler

	mu    sync.Mutex
	calls []call

	motionErr   error
	detectorErr error
	configure   func(*config.Config)
}

func newFixture(t *testing.T, mutate func(*fixture)) *fixture {
	t.Helper()

	f := &fixture{t: t, media: t.TempDir(), output: t.TempDir()}
	f.cfgPath = filepath.Join(t.TempDir(), "config.yaml")
	if mutate != nil {
		mutate(f)
	}

	f.cfg = config.Default()
	f.cfg.Update(func(c *config.Config) {
		c.Media.Root = f.media
		c.Output.Dir = f.output
		if f.configure != nil {
			f.configure(c)
		}
	})

	a := jobs.Analyzer{
		Motion: func(_ context.Context, path string, zones []zone.Zone, g grid.Spec, opts analysis.MotionOptions) (*analysis.Result, error) {
			f.record(call{path: path, zones: zones, grid: g, mo: opts})
			res := &analysis.Result{TotalCount: 4, Meta: analysis.Meta{Mode: analysis.ModeMotion, FramesProcessed: 12}}
			if f.motionErr != nil {
				if analysis.IsFatal(f.motionErr) {
					return nil, f.motionErr
				}
				return res, f.motionErr
			}
			return res, nil
		},
		Detector: func(_ context.Context, path string, zones []zone.Zone, g grid.Spec, opts analysis.DetectorOptions) (*analysis.Result, error) {
			f.record(call{path: path, zones: zones, grid: g, do: opts})
			if f.detectorErr != nil {
				return nil, f.detectorErr
			}
			return &analysis.Result{TotalCount: 2, Meta: analysis.Meta{Mode: analysis.ModeDetector}}, nil
		},
	}

	m := metrics.New()
	snap := f.cfg.Get()
	runner := jobs.NewRunner(a, jobs.Options{
		Workers:          1,
		QueueSize:        4,
		FallbackToMotion: snap.Jobs.FallbackToMotion,
	}, m)
	runner.Start()
	t.Cleanup(runner.Stop)

	f.handler = New(f.cfg, runner, m, f.cfgPath).Handler()
	return f
}

func (f *fixture) record(c call) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
}

func (f *fixture) lastCall() call {
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(f.t, f.calls)
	return f.calls[len(f.calls)-1]
}

func (f *fixture) writeMedia(name string) string {
	f.t.Helper()
	p := filepath.Join(f.media, name)
	require.NoError(f.t, os.WriteFile(p, []byte("not really a video"), 0o644))
	return p
}

func (f *fixture) do(method, target, body string) *httptest.ResponseRecorder {
	f.t.Helper()
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(method, target, strings.NewReader(body)))
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body["error"]
}

func TestAnalyzeSync(t *testing.T) {
	f := newFixture(t, nil)
	src := f.writeMedia("yard.mp4")

	rec := f.do(http.MethodPost, "/api/analyze", `{
		"file": "yard.mp4",
		"zones": [{"points": [{"x":0,"y":0},{"x":100,"y":0},{"x":100,"y":100}]}],
		"gridSize": {"x": 2, "y": 2},
		"sample_rate": 5
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res analysis.Result
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	assert.Equal(t, 4, res.TotalCount)
	assert.Equal(t, analysis.ModeMotion, res.Meta.Mode)

	c := f.lastCall()
	assert.Equal(t, src, c.path)
	assert.Len(t, c.zones, 1)
	assert.Equal(t, grid.Spec{Cols: 2, Rows: 2}, c.grid)
	assert.Equal(t, 5, c.mo.SampleRate)
	assert.Equal(t, 1000, c.mo.MaxFrames, "config default")
	assert.Equal(t, 400.0, c.mo.MinArea, "config default")
}

func TestAnalyzeDetectorOptions(t *testing.T) {
	f := newFixture(t, nil)
	f.writeMedia("yard.mp4")

	rec := f.do(http.MethodPost, "/api/analyze", `{"file":"yard.mp4","mode":"detector","classes":["bird",0],"save_frames":true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	c := f.lastCall()
	assert.Equal(t, []string{"bird", "0"}, c.do.Classes)
	assert.True(t, c.do.SaveFrames)
	assert.Equal(t, f.output, c.do.OutputRoot)
	assert.Equal(t, grid.Spec{Cols: grid.DefaultCols, Rows: grid.DefaultRows}, c.grid)
}

func TestAnalyzeYOLOAliasAndRects(t *testing.T) {
	f := newFixture(t, nil)
	f.writeMedia("yard.mp4")

	rec := f.do(http.MethodPost, "/api/analyze", `{
		"file": "yard.mp4",
		"mode": "yolo",
		"rects": [{"x": 10, "y": 20, "w": 100, "h": 50}]
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res analysis.Result
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	assert.Equal(t, analysis.ModeDetector, res.Meta.Mode)

	c := f.lastCall()
	assert.Equal(t, []analysis.Region{{X: 10, Y: 20, W: 100, H: 50}}, c.do.Regions)

	rec = f.do(http.MethodPost, "/api/analyze", `{"file":"yard.mp4","rects":[{"x":0,"y":0,"w":-5,"h":5}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec), "negative size")
}

func TestAnalyzeRequestErrors(t *testing.T) {
	f := newFixture(t, nil)
	f.writeMedia("yard.mp4")

	tests := []struct {
		name string
		body string
		want int
	}{
		{"invalid json", `{"file":`, http.StatusBadRequest},
		{"missing file", `{}`, http.StatusBadRequest},
		{"outside media root", `{"file":"../../etc/passwd"}`, http.StatusForbidden},
		{"not found", `{"file":"missing.mp4"}`, http.StatusNotFound},
		{"bad zones", `{"file":"yard.mp4","zones":{"oops":true}}`, http.StatusBadRequest},
		{"unknown mode", `{"file":"yard.mp4","mode":"magic"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(http.MethodPost, "/api/analyze", tt.body)
			assert.Equal(t, tt.want, rec.Code)
			assert.NotEmpty(t, decodeError(t, rec))
		})
	}

	rec := f.do(http.MethodGet, "/api/analyze", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestAnalyzeErrorMapping(t *testing.T) {
	t.Run("source unreadable", func(t *testing.T) {
		f := newFixture(t, func(f *fixture) {
			f.motionErr = fmt.Errorf("%w: cannot decode", analysis.ErrSourceUnreadable)
		})
		f.writeMedia("yard.mp4")

		rec := f.do(http.MethodPost, "/api/analyze", `{"file":"yard.mp4"}`)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("detector unavailable", func(t *testing.T) {
		f := newFixture(t, func(f *fixture) {
			f.detectorErr = fmt.Errorf("%w: no model", analysis.ErrDetectorUnavailable)
		})
		f.writeMedia("yard.mp4")

		rec := f.do(http.MethodPost, "/api/analyze", `{"file":"yard.mp4","mode":"detector"}`)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, decodeError(t, rec), "no model")

		f.mu.Lock()
		defer f.mu.Unlock()
		assert.Len(t, f.calls, 1, "default config does not retry in motion mode")
	})

	t.Run("detector unavailable with fallback enabled", func(t *testing.T) {
		f := newFixture(t, func(f *fixture) {
			f.detectorErr = fmt.Errorf("%w: no model", analysis.ErrDetectorUnavailable)
			f.configure = func(c *config.Config) { c.Jobs.FallbackToMotion = true }
		})
		f.writeMedia("yard.mp4")

		rec := f.do(http.MethodPost, "/api/analyze", `{"file":"yard.mp4","mode":"detector"}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var res analysis.Result
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
		assert.Equal(t, analysis.ModeMotion, res.Meta.Mode)
		assert.Equal(t, analysis.ModeDetector, res.Meta.FallbackFrom)
	})

	t.Run("partial result", func(t *testing.T) {
		f := newFixture(t, func(f *fixture) {
			f.motionErr = errors.New("read frame 30: truncated")
		})
		f.writeMedia("yard.mp4")

		rec := f.do(http.MethodPost, "/api/analyze", `{"file":"yard.mp4"}`)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Header().Get("X-Analysis-Error"), "truncated")
	})
}

func TestAnalyzeStartAndStatus(t *testing.T) {
	f := newFixture(t, nil)
	f.writeMedia("yard.mp4")

	rec := f.do(http.MethodPost, "/api/analyze/start", `{"file":"yard.mp4"}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var started StartResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&started))
	require.NotEmpty(t, started.ID)
	assert.Equal(t, jobs.StatusQueued, started.Status)

	var snap jobs.Snapshot
	require.Eventually(t, func() bool {
		rec := f.do(http.MethodGet, "/api/analyze/status/"+started.ID, "")
		if rec.Code != http.StatusOK {
			return false
		}
		snap = jobs.Snapshot{}
		return json.NewDecoder(rec.Body).Decode(&snap) == nil && snap.Status == jobs.StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, 100, snap.Progress)
	require.NotNil(t, snap.Result)
	assert.Equal(t, 4, snap.Result.TotalCount)

	rec = f.do(http.MethodGet, "/api/analyze/status/does-not-exist", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(http.MethodGet, "/api/analyze/status/", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFrames(t *testing.T) {
	f := newFixture(t, nil)

	dir := filepath.Join(f.output, "detections", "abc")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	frame := filepath.Join(dir, "frame_00003.jpg")
	require.NoError(t, os.WriteFile(frame, []byte{0xff, 0xd8, 0xff, 0xd9}, 0o644))

	rec := f.do(http.MethodGet, "/api/frames?file="+frame, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))

	outside := filepath.Join(f.media, "secret.jpg")
	require.NoError(t, os.WriteFile(outside, []byte{0xff}, 0o644))
	rec = f.do(http.MethodGet, "/api/frames?file="+outside, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(http.MethodGet, "/api/frames?file="+filepath.Join(dir, "nope.jpg"), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(http.MethodGet, "/api/frames", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConfigEndpoint(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(http.MethodGet, "/api/config", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var snap config.Snapshot
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&snap))
	assert.Equal(t, 3, snap.Analysis.SampleRate)

	rec = f.do(http.MethodPut, "/api/config", `{
		"analysis": {"sample_rate": 6, "grid": {"x": 8, "y": 40}},
		"detector": {"confidence": 0.6},
		"jobs": {"fallback_to_motion": true},
		"log": {"level": "debug"}
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got := f.cfg.Get()
	assert.Equal(t, 6, got.Analysis.SampleRate)
	assert.Equal(t, grid.Spec{Cols: 8, Rows: grid.MaxRows}, got.Analysis.Grid)
	assert.InDelta(t, 0.6, got.Detector.Confidence, 1e-9)
	assert.True(t, got.Jobs.FallbackToMotion)
	assert.Equal(t, "debug", got.Log.Level)

	saved, err := os.ReadFile(f.cfgPath)
	require.NoError(t, err)
	assert.Contains(t, string(saved), "sample_rate: 6")

	rec = f.do(http.MethodPut, "/api/config", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuxiliaryRoutes(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	rec = f.do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "crowcount_jobs_submitted_total")

	rec = f.do(http.MethodGet, "/swagger/doc.json", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Crow Counter API")

	rec = f.do(http.MethodOptions, "/api/analyze", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestStatus(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body StatusResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.True(t, body.Ready)
	assert.True(t, body.Checks.MediaReadable)
	assert.True(t, body.Checks.OutputWritable)
	assert.Equal(t, 0, body.Jobs)

	f.cfg.Update(func(c *config.Config) {
		c.Media.Root = filepath.Join(f.media, "gone")
	})
	rec = f.do(http.MethodGet, "/api/status", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestWithin(t *testing.T) {
	root := t.TempDir()

	_, ok := within(root, filepath.Join(root, "a", "b.mp4"))
	assert.True(t, ok)
	_, ok = within(root, filepath.Join(root, "..", "x.mp4"))
	assert.False(t, ok)
	_, ok = within(root, root+"-sibling/x.mp4")
	assert.False(t, ok)
}
