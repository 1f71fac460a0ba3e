// Package snapshot persists annotated frames produced during an analysis
// run.
package snapshot

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/rs/zerolog/log"
)

// JPEGQuality is used for every written frame.
const JPEGQuality = 90

// RunDir returns a fresh per-run directory under base/detections. Nothing is
// created on disk until the first frame is saved.
func RunDir(base string) string {
	id := uuid.New()
	return filepath.Join(base, "detections", fmt.Sprintf("%x", id[:]))
}

// FrameName is the file name for frame n.
func FrameName(n int) string {
	return fmt.Sprintf("frame_%05d.jpg", n)
}

// ClassColor returns a stable, well separated color for a class id by
// stepping the hue around the golden angle.
func ClassColor(id int) color.RGBA {
	if id < 0 {
		return color.RGBA{R: 255, G: 255, B: 255, A: 255}
	}
	hue := math.Mod(float64(id)*137.508, 360)
	r, g, b := colorful.Hsv(hue, 0.85, 0.95).RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

// Writer saves frames as JPEG files into a single directory.
type Writer struct {
	Dir      string
	MaxWidth int

	mu      sync.Mutex
	created bool
}

// NewWriter writes into dir, downscaling frames wider than maxWidth. A
// maxWidth of zero keeps the original size.
func NewWriter(dir string, maxWidth int) *Writer {
	return &Writer{Dir: dir, MaxWidth: maxWidth}
}

// SaveImage writes img as the snapshot for frame number and returns its
// path.
func (w *Writer) SaveImage(img image.Image, number int) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.created {
		if err := os.MkdirAll(w.Dir, 0o755); err != nil {
			return "", fmt.Errorf("failed to create snapshot dir: %w", err)
		}
		w.created = true
	}

	if w.MaxWidth > 0 && img.Bounds().Dx() > w.MaxWidth {
		img = imaging.Resize(img, w.MaxWidth, 0, imaging.Lanczos)
	}

	path := filepath.Join(w.Dir, FrameName(number))
	if err := imaging.Save(img, path, imaging.JPEGQuality(JPEGQuality)); err != nil {
		return "", fmt.Errorf("failed to save snapshot: %w", err)
	}

	log.Debug().Str("path", path).Int("frame", number).Msg("Snapshot saved")
	return path, nil
}
