package snapshot

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "frame_00000.jpg", FrameName(0))
	assert.Equal(t, "frame_00042.jpg", FrameName(42))
	assert.Equal(t, "frame_123456.jpg", FrameName(123456))
}

func TestRunDir(t *testing.T) {
	t.Parallel()

	a := RunDir("/out")
	b := RunDir("/out")

	assert.NotEqual(t, a, b)
	assert.Equal(t, filepath.Join("/out", "detections"), filepath.Dir(a))
	assert.Len(t, filepath.Base(a), 32)
	assert.Equal(t, strings.ToLower(filepath.Base(a)), filepath.Base(a))

	_, err := os.Stat(a)
	assert.True(t, os.IsNotExist(err), "run dir must not be created eagerly")
}

func TestClassColor(t *testing.T) {
	t.Parallel()

	seen := make(map[color.RGBA]int)
	for id := 0; id < 20; id++ {
		c := ClassColor(id)
		assert.Equal(t, uint8(255), c.A)
		assert.Equal(t, c, ClassColor(id), "colors must be stable")
		if prev, dup := seen[c]; dup {
			t.Errorf("class %d shares a color with class %d", id, prev)
		}
		seen[c] = id
	}

	assert.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, ClassColor(-1))
}

func TestWriterSaveImage(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "detections", "run")
	w := NewWriter(dir, 320)

	small := image.NewRGBA(image.Rect(0, 0, 160, 120))
	large := image.NewRGBA(image.Rect(0, 0, 1280, 720))

	p1, err := w.SaveImage(small, 3)
	require.NoError(t, err)
	p2, err := w.SaveImage(large, 6)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "frame_00003.jpg"), p1)
	assert.Equal(t, filepath.Join(dir, "frame_00006.jpg"), p2)

	img, err := imaging.Open(p1)
	require.NoError(t, err)
	assert.Equal(t, 160, img.Bounds().Dx(), "small frames keep their size")

	img, err = imaging.Open(p2)
	require.NoError(t, err)
	assert.Equal(t, 320, img.Bounds().Dx())
	assert.Equal(t, 180, img.Bounds().Dy())
}

func TestWriterUnwritableDir(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	blocker := filepath.Join(base, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	w := NewWriter(filepath.Join(blocker, "sub"), 0)
	_, err := w.SaveImage(image.NewRGBA(image.Rect(0, 0, 4, 4)), 0)
	assert.Error(t, err)
	assert.NoFileExists(t, filepath.Join(blocker, "sub", FrameName(0)))
}
