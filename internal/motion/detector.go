//go:build opencv

package motion

import (
	"image"

	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"

	"github.com/kai5263499/crow-counter/internal/geometry"
)

// Blob is one qualifying foreground region of a frame.
type Blob struct {
	Centroid image.Point
	Bounds   image.Rectangle
	Area     float64
}

// Detector keeps an adaptive background model and turns each frame into
// foreground blobs. It is not safe for concurrent use; every analysis run
// owns its own Detector.
type Detector struct {
	cfg     Config
	mog2    gocv.BackgroundSubtractorMOG2
	kernel  gocv.Mat
	mask    gocv.Mat
	frames  int
	skipped int
}

// NewDetector builds the background model described by cfg.
func NewDetector(cfg Config) *Detector {
	cfg = cfg.Normalize()
	return &Detector{
		cfg:    cfg,
		mog2:   gocv.NewBackgroundSubtractorMOG2WithParams(cfg.History, cfg.VarThreshold, cfg.DetectShadows),
		kernel: gocv.GetStructuringElement(gocv.MorphEllipse, image.Pt(cfg.KernelSize, cfg.KernelSize)),
		mask:   gocv.NewMat(),
	}
}

// Detect feeds frame to the background model and returns one Blob per
// external contour whose area reaches MinArea. Contours with a zero area
// moment are skipped and counted.
//
// Blobs carry no identity between calls: an object visible in five sampled
// frames yields five blobs.
func (d *Detector) Detect(frame gocv.Mat) []Blob {
	d.frames++

	// Foreground mask; shadows come back as 127 and count as foreground.
	d.mog2.Apply(frame, &d.mask)

	// Opening removes speckle, dilation merges fragmented blobs.
	for i := 0; i < d.cfg.OpenIterations; i++ {
		gocv.MorphologyEx(d.mask, &d.mask, gocv.MorphOpen, d.kernel)
	}
	for i := 0; i < d.cfg.DilateIterations; i++ {
		gocv.Dilate(d.mask, &d.mask, d.kernel)
	}

	contours := gocv.FindContours(d.mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var blobs []Blob
	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)
		area := gocv.ContourArea(contour)
		if area < d.cfg.MinArea {
			continue
		}

		cx, cy, ok := geometry.ContourMoments(contour.ToPoints()).Centroid()
		if !ok {
			d.skipped++
			log.Debug().Int("frame", d.frames).Float64("area", area).Msg("Skipping contour without area moment")
			continue
		}

		blobs = append(blobs, Blob{
			Centroid: image.Pt(cx, cy),
			Bounds:   gocv.BoundingRect(contour),
			Area:     area,
		})
	}

	log.Debug().Int("frame", d.frames).Int("contours", contours.Size()).Int("blobs", len(blobs)).Msg("Motion frame")
	return blobs
}

// Skipped is the number of degenerate contours dropped so far.
func (d *Detector) Skipped() int {
	return d.skipped
}

// Close releases the background model and scratch buffers.
func (d *Detector) Close() {
	d.mog2.Close()
	d.kernel.Close()
	d.mask.Close()
}
