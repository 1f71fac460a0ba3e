// Package server exposes the analysis pipeline and the job runner over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/kai5263499/crow-counter/internal/analysis"
	"github.com/kai5263499/crow-counter/internal/config"
	"github.com/kai5263499/crow-counter/internal/detector"
	"github.com/kai5263499/crow-counter/internal/health"
	"github.com/kai5263499/crow-counter/internal/jobs"
	"github.com/kai5263499/crow-counter/internal/metrics"
	"github.com/kai5263499/crow-counter/internal/zone"
)

// maxBodyBytes bounds analysis and config request bodies.
const maxBodyBytes = 1 << 20

type Server struct {
	cfg        *config.Config
	runner     *jobs.Runner
	metrics    *metrics.Metrics
	configPath string
	checker    *health.Checker
	srv        *http.Server
}

// New creates a server. configPath is where PUT /api/config persists
// changes; an empty path keeps them in memory only.
func New(cfg *config.Config, runner *jobs.Runner, m *metrics.Metrics, configPath string) *Server {
	return &Server{
		cfg:        cfg,
		runner:     runner,
		metrics:    m,
		configPath: configPath,
		checker:    health.NewChecker(),
	}
}

// Handler builds the routing table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Analysis
	mux.HandleFunc("/api/analyze", s.handleAnalyze)
	mux.HandleFunc("/api/analyze/start", s.handleAnalyzeStart)
	mux.HandleFunc("/api/analyze/status/", s.handleAnalyzeStatus)
	mux.HandleFunc("/api/frames", s.handleFrame)

	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/api/status", s.handleStatus)

	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}

	// Swagger UI
	mux.HandleFunc("/swagger/", httpSwagger.WrapHandler)

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return s.corsMiddleware(mux)
}

func (s *Server) Start() error {
	addr := s.cfg.Get().Server.Addr()
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info().Str("addr", addr).Msg("Starting API server")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Stop() error {
	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

// CORS middleware for web app
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// AnalyzeRequest is the body of both analyze endpoints. Zero numeric fields
// take the configured defaults. Mode is motion (default), detector or its
// alias yolo.
type AnalyzeRequest struct {
	// File is relative to the media root.
	File       string             `json:"file"`
	Mode       string             `json:"mode"`
	Zones      json.RawMessage    `json:"zones,omitempty" swaggertype:"array,object"`
	GridSize   json.RawMessage    `json:"gridSize,omitempty" swaggertype:"object"`
	MaxFrames  int                `json:"max_frames,omitempty"`
	SampleRate int                `json:"sample_rate,omitempty"`
	MinArea    float64            `json:"min_area,omitempty"`
	Classes    detector.ClassList `json:"classes,omitempty" swaggertype:"array,string"`
	SaveFrames bool               `json:"save_frames,omitempty"`
	// Rects limits counting to detections centred inside any rectangle.
	Rects []analysis.Region `json:"rects,omitempty"`
}

// StartResponse acknowledges a queued job.
type StartResponse struct {
	ID     string      `json:"id"`
	Status jobs.Status `json:"status"`
}

// handleAnalyze godoc
// @Summary Analyze a media file synchronously
// @Tags Analysis
// @Accept json
// @Produce json
// @Param request body AnalyzeRequest true "Source and counting layout"
// @Success 200 {object} analysis.Result
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /api/analyze [post]
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	req, status, err := s.decodeAnalyzeRequest(w, r)
	if err != nil {
		respondError(w, status, err.Error())
		return
	}

	res, err := s.runner.Analyze(r.Context(), req, nil)
	if err != nil {
		if res == nil || analysis.IsFatal(err) {
			respondError(w, errorStatus(err), err.Error())
			return
		}
		// The stream broke part way through; the counts so far are still
		// returned.
		log.Warn().Err(err).Str("source", req.Path).Msg("Returning partial analysis result")
		w.Header().Set("X-Analysis-Error", err.Error())
	}

	respondJSON(w, http.StatusOK, res)
}

// handleAnalyzeStart godoc
// @Summary Queue a media file for background analysis
// @Tags Analysis
// @Accept json
// @Produce json
// @Param request body AnalyzeRequest true "Source and counting layout"
// @Success 202 {object} StartResponse
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 429 {object} map[string]string
// @Router /api/analyze/start [post]
func (s *Server) handleAnalyzeStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	req, status, err := s.decodeAnalyzeRequest(w, r)
	if err != nil {
		respondError(w, status, err.Error())
		return
	}

	id, err := s.runner.Submit(req)
	if err != nil {
		respondError(w, errorStatus(err), err.Error())
		return
	}

	respondJSON(w, http.StatusAccepted, StartResponse{ID: id, Status: jobs.StatusQueued})
}

// handleAnalyzeStatus godoc
// @Summary Poll a background analysis
// @Tags Analysis
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} jobs.Snapshot
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/analyze/status/{id} [get]
func (s *Server) handleAnalyzeStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/analyze/status/")
	if id == "" {
		respondError(w, http.StatusBadRequest, "Job ID required")
		return
	}

	snap, ok := s.runner.Get(id)
	if !ok {
		respondError(w, http.StatusNotFound, "Job not found")
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

// handleFrame godoc
// @Summary Fetch an annotated snapshot
// @Tags Analysis
// @Param file query string true "Snapshot path as listed in result images"
// @Produce image/jpeg
// @Success 200
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/frames [get]
func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	filePath := r.URL.Query().Get("file")
	if filePath == "" {
		respondError(w, http.StatusBadRequest, "file parameter required")
		return
	}

	// Security check: snapshots are only served from the output directory
	abs, ok := within(s.cfg.Get().Output.Dir, filePath)
	if !ok {
		respondError(w, http.StatusForbidden, "Access denied")
		return
	}

	if _, err := os.Stat(abs); err != nil {
		respondError(w, http.StatusNotFound, "Frame not found")
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	http.ServeFile(w, r, abs)
}

// handleConfig godoc
// @Summary Get or update configuration
// @Tags Configuration
// @Accept json
// @Produce json
// @Success 200 {object} config.Snapshot
// @Failure 400 {object} map[string]string
// @Router /api/config [get]
// @Router /api/config [put]
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		respondJSON(w, http.StatusOK, s.cfg.Get())

	case http.MethodPut:
		var updates map[string]interface{}
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&updates); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}

		s.cfg.Update(func(c *config.Config) {
			applyConfigUpdates(c, updates)
		})

		if s.configPath != "" {
			if err := s.cfg.Save(s.configPath); err != nil {
				log.Warn().Err(err).Str("path", s.configPath).Msg("Failed to save config")
			}
		}

		respondJSON(w, http.StatusOK, s.cfg.Get())

	default:
		respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// StatusResponse summarises service readiness.
type StatusResponse struct {
	Ready  bool               `json:"ready"`
	Checks health.CheckResult `json:"checks"`
	Jobs   int                `json:"jobs"`
}

// handleStatus godoc
// @Summary Get system status
// @Tags System
// @Produce json
// @Success 200 {object} StatusResponse
// @Failure 503 {object} StatusResponse
// @Router /api/status [get]
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	cfg := s.cfg.Get()
	checks := s.checker.Check(health.Target{
		MediaRoot: cfg.Media.Root,
		OutputDir: cfg.Output.Dir,
		Detector:  cfg.Detector,
	})

	status := http.StatusOK
	if !checks.Ready() {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, StatusResponse{Ready: checks.Ready(), Checks: checks, Jobs: s.runner.Len()})
}

// decodeAnalyzeRequest turns the request body into a job request, filling
// gaps from the current configuration. The returned status is meaningful
// only when err is non-nil.
func (s *Server) decodeAnalyzeRequest(w http.ResponseWriter, r *http.Request) (jobs.Request, int, error) {
	var body AnalyzeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		return jobs.Request{}, http.StatusBadRequest, fmt.Errorf("invalid JSON: %w", err)
	}
	if body.File == "" {
		return jobs.Request{}, http.StatusBadRequest, errors.New("file is required")
	}

	cfg := s.cfg.Get()

	path, ok := within(cfg.Media.Root, filepath.Join(cfg.Media.Root, body.File))
	if !ok {
		return jobs.Request{}, http.StatusForbidden, errors.New("access denied")
	}
	if _, err := os.Stat(path); err != nil {
		return jobs.Request{}, http.StatusNotFound, errors.New("source not found")
	}

	layout, err := zone.Parse(body.Zones, body.GridSize)
	if err != nil {
		return jobs.Request{}, http.StatusBadRequest, err
	}
	if len(bytesTrim(body.GridSize)) == 0 {
		layout.Grid = cfg.Analysis.Grid
	}

	if err := analysis.ValidateRegions(body.Rects); err != nil {
		return jobs.Request{}, http.StatusBadRequest, err
	}
	mode := analysis.CanonicalMode(body.Mode)

	maxFrames := firstPositive(body.MaxFrames, cfg.Analysis.MaxFrames)
	sampleRate := firstPositive(body.SampleRate, cfg.Analysis.SampleRate)
	minArea := body.MinArea
	if minArea <= 0 {
		minArea = cfg.Analysis.MinArea
	}

	return jobs.Request{
		Path:  path,
		Mode:  mode,
		Zones: layout.Zones,
		Grid:  layout.Grid,
		Motion: analysis.MotionOptions{
			MaxFrames:  maxFrames,
			SampleRate: sampleRate,
			MinArea:    minArea,
			Regions:    body.Rects,
			Motion:     cfg.Motion,
		},
		Detector: analysis.DetectorOptions{
			MaxFrames:  maxFrames,
			SampleRate: sampleRate,
			Classes:    body.Classes,
			Regions:    body.Rects,
			SaveFrames: body.SaveFrames,
			OutputRoot: cfg.Output.Dir,
			MaxWidth:   cfg.Output.MaxWidth,
			Model:      cfg.Detector,
		},
	}, 0, nil
}

// within resolves path and reports whether it lies inside root.
func within(root, path string) (string, bool) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", false
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", false
	}
	rel, err := filepath.Rel(absRoot, absPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return absPath, true
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, analysis.ErrSourceUnreadable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, analysis.ErrDetectorUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, jobs.ErrUnknownMode):
		return http.StatusBadRequest
	case errors.Is(err, jobs.ErrQueueFull):
		return http.StatusTooManyRequests
	case errors.Is(err, jobs.ErrStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func applyConfigUpdates(c *config.Config, updates map[string]interface{}) {
	if l, ok := updates["log"].(map[string]interface{}); ok {
		if v, ok := l["level"].(string); ok {
			c.Log.Level = v
		}
	}

	// Analysis defaults
	if a, ok := updates["analysis"].(map[string]interface{}); ok {
		if v, ok := a["max_frames"].(float64); ok {
			c.Analysis.MaxFrames = int(v)
		}
		if v, ok := a["sample_rate"].(float64); ok {
			c.Analysis.SampleRate = int(v)
		}
		if v, ok := a["min_area"].(float64); ok {
			c.Analysis.MinArea = v
		}
		if g, ok := a["grid"].(map[string]interface{}); ok {
			if x, ok := g["x"].(float64); ok {
				c.Analysis.Grid.Cols = int(x)
			}
			if y, ok := g["y"].(float64); ok {
				c.Analysis.Grid.Rows = int(y)
			}
		}
	}

	// Detector tuning
	if d, ok := updates["detector"].(map[string]interface{}); ok {
		if v, ok := d["confidence"].(float64); ok {
			c.Detector.Confidence = v
		}
		if v, ok := d["nms_threshold"].(float64); ok {
			c.Detector.NMSThreshold = v
		}
	}

	if o, ok := updates["output"].(map[string]interface{}); ok {
		if v, ok := o["max_width"].(float64); ok {
			c.Output.MaxWidth = int(v)
		}
	}

	if j, ok := updates["jobs"].(map[string]interface{}); ok {
		if v, ok := j["fallback_to_motion"].(bool); ok {
			c.Jobs.FallbackToMotion = v
		}
	}
}

func firstPositive(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

func bytesTrim(b []byte) string {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		return ""
	}
	return s
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
