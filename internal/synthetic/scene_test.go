package synthetic

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSceneFrameCount(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Frames = 5
	s := NewScene(cfg)

	n := 0
	for {
		img, ok := s.Next()
		if !ok {
			break
		}
		assert.Equal(t, 640, img.Bounds().Dx())
		assert.Equal(t, 480, img.Bounds().Dy())
		n++
	}
	assert.Equal(t, 5, n)
}

func TestSceneBackgroundGradient(t *testing.T) {
	t.Parallel()

	img, ok := NewScene(StaticConfig()).Next()
	require.True(t, ok)

	assert.Equal(t, color.RGBA{R: 40, G: 40, B: 40, A: 255}, img.RGBAAt(320, 0))
	assert.Equal(t, color.RGBA{R: 80, G: 80, B: 80, A: 255}, img.RGBAAt(320, 240))
	assert.Equal(t, color.RGBA{R: 119, G: 119, B: 119, A: 255}, img.RGBAAt(320, 479))
}

func TestSceneDrawsBlobs(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.SpawnEvery = 0
	s := NewScene(cfg)

	img, ok := s.Next()
	require.True(t, ok)
	for _, b := range cfg.Blobs {
		assert.Equal(t, white, img.RGBAAt(int(b.CX), int(b.CY)))
	}

	moved := s.Blobs()
	assert.InDelta(t, 52.5, moved[0].CX, 1e-9)
	assert.InDelta(t, 61.8, moved[0].CY, 1e-9)
	assert.Equal(t, 50.0, cfg.Blobs[0].CX, "config must not be mutated")
}

func TestSceneBounces(t *testing.T) {
	t.Parallel()

	cfg := StaticConfig()
	cfg.Blobs = []Blob{{CX: 2, CY: 100, VX: -3, VY: 0, R: 4}}
	s := NewScene(cfg)

	s.Next()
	assert.Equal(t, 3.0, s.Blobs()[0].VX)
	s.Next()
	assert.Equal(t, 2.0, s.Blobs()[0].CX)
}

func TestSceneDeterministic(t *testing.T) {
	t.Parallel()

	a, b := NewScene(DefaultConfig()), NewScene(DefaultConfig())
	for i := 0; i < 60; i++ {
		fa, _ := a.Next()
		fb, _ := b.Next()
		require.Equal(t, fa.Pix, fb.Pix, "frame %d differs", i)
	}
}
