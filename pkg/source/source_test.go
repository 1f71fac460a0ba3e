package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsStillImage(t *testing.T) {
	t.Parallel()

	for path, want := range map[string]bool{
		"uploads/crow.jpg":       true,
		"uploads/CROW.JPEG":      true,
		"/tmp/a.b/frame.png":     true,
		"still.Bmp":              true,
		"clip.mp4":               false,
		"clip.avi":               false,
		"rtsp://cam/stream":      false,
		"noext":                  false,
		"uploads/jpg/clip.mkv":   false,
		"uploads/archive.jpg.gz": false,
	} {
		assert.Equal(t, want, IsStillImage(path), path)
	}
}
