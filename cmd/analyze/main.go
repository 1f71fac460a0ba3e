//go:build opencv

// Command analyze counts detections in one video or image and prints the
// result as JSON.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/kai5263499/crow-counter/internal/analysis"
	"github.com/kai5263499/crow-counter/internal/config"
	"github.com/kai5263499/crow-counter/internal/jobs"
	"github.com/kai5263499/crow-counter/internal/logger"
	"github.com/kai5263499/crow-counter/internal/zone"
)

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "optional YAML configuration with analysis defaults")
		mode       = flag.String("mode", analysis.ModeMotion, "motion, detector or yolo")
		zonesPath  = flag.String("zones", "", "JSON file with the zone list")
		gridJSON   = flag.String("grid", "", `grid size as JSON, e.g. {"x":4,"y":3}`)
		rectsJSON  = flag.String("rects", "", `count only inside these rectangles, e.g. [{"x":0,"y":0,"w":320,"h":240}]`)
		maxFrames  = flag.Int("max-frames", 0, "stop after this many sampled frames")
		sampleRate = flag.Int("sample-rate", 0, "analyse every Nth frame")
		minArea    = flag.Float64("min-area", 0, "smallest contour area counted in motion mode")
		classes    = flag.String("classes", "", "comma separated class names or ids for detector mode")
		save       = flag.Bool("save", false, "write annotated frames in detector mode")
		outDir     = flag.String("out", "", "directory for annotated frames")
		model      = flag.String("model", "", "detector model path")
		names      = flag.String("names", "", "class names file, one per line")
		layout     = flag.String("layout", "", "detector output layout: auto, ssd, yolov5, yolov8, darknet")
		fallback   = flag.Bool("fallback", false, "retry in motion mode when the detector is unavailable")
		level      = flag.String("log-level", "warn", "log level")
	)
	flag.Usage = func() {
		flag.CommandLine.Output().Write([]byte("usage: analyze [flags] <video-or-image>\n"))
		flag.PrintDefaults()
	}
	flag.Parse()

	logger.InitTo(os.Stderr, *level)

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	path := flag.Arg(0)

	cfg, err := config.Load(*configPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		cfg = config.Default()
	case err != nil:
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	snap := cfg.Get()

	var zonesJSON []byte
	if *zonesPath != "" {
		zonesJSON, err = os.ReadFile(*zonesPath)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to read zones")
		}
	}
	l, err := zone.Parse(zonesJSON, []byte(*gridJSON))
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid zone layout")
	}
	if *gridJSON == "" {
		l.Grid = snap.Analysis.Grid
	}

	var regions []analysis.Region
	if *rectsJSON != "" {
		if err := json.Unmarshal([]byte(*rectsJSON), &regions); err != nil {
			log.Fatal().Err(err).Msg("Invalid rects")
		}
		if err := analysis.ValidateRegions(regions); err != nil {
			log.Fatal().Err(err).Msg("Invalid rects")
		}
	}

	det := snap.Detector
	if *model != "" {
		det.ModelPath = *model
	}
	if *names != "" {
		det.NamesPath = *names
	}
	if *layout != "" {
		det.Layout = *layout
	}

	frames := pick(*maxFrames, snap.Analysis.MaxFrames)
	stride := pick(*sampleRate, snap.Analysis.SampleRate)
	area := *minArea
	if area <= 0 {
		area = snap.Analysis.MinArea
	}

	req := jobs.Request{
		Path:  path,
		Mode:  *mode,
		Zones: l.Zones,
		Grid:  l.Grid,
		Motion: analysis.MotionOptions{
			MaxFrames:  frames,
			SampleRate: stride,
			MinArea:    area,
			Regions:    regions,
			Motion:     snap.Motion,
		},
		Detector: analysis.DetectorOptions{
			MaxFrames:  frames,
			SampleRate: stride,
			Classes:    splitList(*classes),
			Regions:    regions,
			SaveFrames: *save,
			OutDir:     *outDir,
			OutputRoot: snap.Output.Dir,
			MaxWidth:   snap.Output.MaxWidth,
			Model:      det,
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := jobs.NewRunner(jobs.Analyzer{
		Motion:   analysis.AnalyzeMotion,
		Detector: analysis.AnalyzeWithDetector,
	}, jobs.Options{FallbackToMotion: *fallback || snap.Jobs.FallbackToMotion}, nil)

	res, err := runner.Analyze(ctx, req, nil)
	if res != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(res); encErr != nil {
			log.Fatal().Err(encErr).Msg("Failed to encode result")
		}
	}
	if err != nil {
		log.Error().Err(err).Str("source", path).Msg("Analysis failed")
		os.Exit(1)
	}
}

func pick(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
