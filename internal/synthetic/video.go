//go:build opencv

package synthetic

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"
)

// Codec used for written videos. MJPG is available in every OpenCV build.
const Codec = "MJPG"

// WriteVideo renders cfg into an AVI file at path.
func WriteVideo(path string, cfg Config) error {
	writer, err := gocv.VideoWriterFile(path, Codec, cfg.FPS, cfg.Width, cfg.Height, true)
	if err != nil {
		return fmt.Errorf("failed to open video writer: %w", err)
	}
	defer writer.Close()
	if !writer.IsOpened() {
		return fmt.Errorf("video writer not opened for %s", path)
	}

	s := NewScene(cfg)
	n := 0
	for {
		img, ok := s.Next()
		if !ok {
			break
		}
		mat, err := gocv.ImageToMatRGB(img)
		if err != nil {
			return fmt.Errorf("convert frame %d: %w", n, err)
		}
		err = writer.Write(mat)
		mat.Close()
		if err != nil {
			return fmt.Errorf("write frame %d: %w", n, err)
		}
		n++
	}

	log.Info().Str("path", path).Int("frames", n).Int("width", cfg.Width).Int("height", cfg.Height).Msg("Synthetic video written")
	return nil
}

// Mats renders cfg into memory. The caller owns the returned Mats.
func Mats(cfg Config) ([]gocv.Mat, error) {
	var out []gocv.Mat
	s := NewScene(cfg)
	for {
		img, ok := s.Next()
		if !ok {
			return out, nil
		}
		mat, err := gocv.ImageToMatRGB(img)
		if err != nil {
			for _, m := range out {
				m.Close()
			}
			return nil, fmt.Errorf("convert frame %d: %w", len(out), err)
		}
		out = append(out, mat)
	}
}
