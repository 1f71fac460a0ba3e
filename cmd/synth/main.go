//go:build opencv

// Command synth writes the bouncing-blob test video used to exercise the
// motion pipeline.
package main

import (
	"flag"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/kai5263499/crow-counter/internal/logger"
	"github.com/kai5263499/crow-counter/internal/synthetic"
)

func main() {
	def := synthetic.DefaultConfig()

	out := flag.String("out", "synthetic.avi", "output video path")
	width := flag.Int("width", def.Width, "frame width")
	height := flag.Int("height", def.Height, "frame height")
	frames := flag.Int("frames", def.Frames, "number of frames")
	fps := flag.Float64("fps", def.FPS, "frames per second")
	spawn := flag.Int("spawn-every", def.SpawnEvery, "add a short-lived blob every n frames, 0 disables")
	seed := flag.Int64("seed", def.Seed, "random seed for spawned blobs")
	static := flag.Bool("static", false, "render the background only")
	flag.Parse()

	logger.InitTo(os.Stderr, "info")

	cfg := def
	if *static {
		cfg = synthetic.StaticConfig()
	}
	cfg.Width = *width
	cfg.Height = *height
	cfg.Frames = *frames
	cfg.FPS = *fps
	cfg.Seed = *seed
	if !*static {
		cfg.SpawnEvery = *spawn
	}

	if err := synthetic.WriteVideo(*out, cfg); err != nil {
		log.Fatal().Err(err).Str("path", *out).Msg("Failed to write synthetic video")
	}
}
