// Package synthetic renders a deterministic bouncing-blob scene used to
// exercise the motion pipeline without real footage.
package synthetic

import (
	"image"
	"image/color"
	"math/rand"
)

// Blob is a filled white disc moving at constant velocity.
type Blob struct {
	CX, CY float64
	VX, VY float64
	R      int
}

// Config describes the scene.
type Config struct {
	Width  int
	Height int
	Frames int
	FPS    float64
	Blobs  []Blob
	// SpawnEvery draws an extra short-lived disc at a random spot on every
	// n-th frame, starting with frame 0. Zero disables it.
	SpawnEvery int
	Seed       int64
}

// DefaultConfig is 200 frames of 640x480 at 20 fps with three blobs.
func DefaultConfig() Config {
	return Config{
		Width:  640,
		Height: 480,
		Frames: 200,
		FPS:    20,
		Blobs: []Blob{
			{CX: 50, CY: 60, VX: 2.5, VY: 1.8, R: 12},
			{CX: 120, CY: 300, VX: 1.8, VY: -2.2, R: 14},
			{CX: 500, CY: 200, VX: -2.0, VY: 1.2, R: 10},
		},
		SpawnEvery: 50,
		Seed:       1,
	}
}

// StaticConfig renders the background only.
func StaticConfig() Config {
	cfg := DefaultConfig()
	cfg.Blobs = nil
	cfg.SpawnEvery = 0
	return cfg
}

// Scene renders frames one at a time.
type Scene struct {
	cfg   Config
	blobs []Blob
	rng   *rand.Rand
	frame int
}

// NewScene copies the blob state from cfg so the config can be reused.
func NewScene(cfg Config) *Scene {
	return &Scene{
		cfg:   cfg,
		blobs: append([]Blob(nil), cfg.Blobs...),
		rng:   rand.New(rand.NewSource(cfg.Seed)),
	}
}

// Next renders the next frame, or returns false once Frames are done.
func (s *Scene) Next() (*image.RGBA, bool) {
	if s.frame >= s.cfg.Frames {
		return nil, false
	}
	w, h := s.cfg.Width, s.cfg.Height
	img := image.NewRGBA(image.Rect(0, 0, w, h))

	for y := 0; y < h; y++ {
		v := uint8(40 + 80*y/h)
		c := color.RGBA{R: v, G: v, B: v, A: 255}
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}

	for i := range s.blobs {
		b := &s.blobs[i]
		disc(img, int(b.CX), int(b.CY), b.R)
		b.CX += b.VX
		b.CY += b.VY
		if b.CX < 0 || b.CX > float64(w) {
			b.VX = -b.VX
		}
		if b.CY < 0 || b.CY > float64(h) {
			b.VY = -b.VY
		}
	}

	if s.cfg.SpawnEvery > 0 && s.frame%s.cfg.SpawnEvery == 0 && w > 100 && h > 100 {
		x := 50 + s.rng.Intn(w-100)
		y := 50 + s.rng.Intn(h-100)
		disc(img, x, y, 8+s.rng.Intn(8))
	}

	s.frame++
	return img, true
}

// Blobs returns the current blob positions.
func (s *Scene) Blobs() []Blob {
	return append([]Blob(nil), s.blobs...)
}

var white = color.RGBA{R: 255, G: 255, B: 255, A: 255}

func disc(img *image.RGBA, cx, cy, r int) {
	b := img.Bounds()
	for y := cy - r; y <= cy+r; y++ {
		for x := cx - r; x <= cx+r; x++ {
			dx, dy := x-cx, y-cy
			if dx*dx+dy*dy > r*r || !(image.Point{X: x, Y: y}).In(b) {
				continue
			}
			img.SetRGBA(x, y, white)
		}
	}
}
