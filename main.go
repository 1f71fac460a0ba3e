//go:build opencv

package main

import (
	"errors"
	"flag"
	"io/fs"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/felixge/fgprof"
	"github.com/rs/zerolog/log"

	_ "github.com/kai5263499/crow-counter/docs" // Swagger docs
	"github.com/kai5263499/crow-counter/internal/analysis"
	"github.com/kai5263499/crow-counter/internal/config"
	"github.com/kai5263499/crow-counter/internal/jobs"
	"github.com/kai5263499/crow-counter/internal/logger"
	"github.com/kai5263499/crow-counter/internal/metrics"
	"github.com/kai5263499/crow-counter/internal/server"
)

// @title Crow Counter API
// @version 0.1.0
// @description Counts moving objects in uploaded video and images, attributed to zones and a grid overlay

// @contact.name API Support
// @contact.url https://github.com/kai5263499/crow-counter

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @BasePath /
// @schemes http

// @tag.name Analysis
// @tag.description Motion and object-detector counting

// @tag.name System
// @tag.description Readiness checks

// @tag.name Configuration
// @tag.description Analysis defaults

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// Info until the config says otherwise
	logger.Init("info")

	cfg, err := config.Load(*configPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Warn().Str("path", *configPath).Msg("Config file not found, using defaults")
		cfg = config.Default()
	case err != nil:
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	snap := cfg.Get()
	logger.Init(snap.Log.Level)

	if snap.Profiling.Addr != "" {
		go serveProfiling(snap.Profiling.Addr)
	}

	log.Info().Str("version", "0.1.0").Msg("Starting crow-counter")
	log.Info().
		Str("media", snap.Media.Root).
		Str("output", snap.Output.Dir).
		Str("model", snap.Detector.ModelPath).
		Msg("Loaded configuration")

	m := metrics.New()

	runner := jobs.NewRunner(jobs.Analyzer{
		Motion:   analysis.AnalyzeMotion,
		Detector: analysis.AnalyzeWithDetector,
	}, jobs.Options{
		Workers:          snap.Jobs.Workers,
		QueueSize:        snap.Jobs.QueueSize,
		FallbackToMotion: snap.Jobs.FallbackToMotion,
		Retention:        time.Duration(snap.Jobs.RetentionMinutes) * time.Minute,
	}, m)
	runner.Start()
	defer runner.Stop()

	// Subscribers run on their own goroutines, so only swap atomics here.
	cfg.Subscribe(func(s config.Snapshot) {
		logger.SetLevel(s.Log.Level)
		runner.SetFallbackToMotion(s.Jobs.FallbackToMotion)
	})

	// Start HTTP API server
	apiServer := server.New(cfg, runner, m, *configPath)
	go func() {
		if err := apiServer.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start API server")
		}
	}()

	log.Info().Str("url", "http://"+snap.Server.Addr()+"/swagger/index.html").Msg("Swagger UI available")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("Shutting down gracefully...")
	if err := apiServer.Stop(); err != nil {
		log.Error().Err(err).Msg("API server shutdown")
	}
}

// serveProfiling exposes pprof and fgprof on their own listener.
func serveProfiling(addr string) {
	log.Info().Str("addr", addr).Msg("Starting profiling server")
	log.Info().Str("pprof", "http://"+addr+"/debug/pprof").Msg("Standard pprof available")
	log.Info().Str("fgprof", "http://"+addr+"/debug/fgprof").Msg("Full goroutine profiler available")

	http.DefaultServeMux.Handle("/debug/fgprof", fgprof.Handler())

	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Error().Err(err).Msg("Profiling server error")
	}
}
