//go:build opencv

package analysis

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"

	"github.com/kai5263499/crow-counter/internal/detector"
	"github.com/kai5263499/crow-counter/internal/grid"
	"github.com/kai5263499/crow-counter/internal/motion"
	"github.com/kai5263499/crow-counter/internal/snapshot"
	"github.com/kai5263499/crow-counter/internal/zone"
	"github.com/kai5263499/crow-counter/pkg/source"
)

// AnalyzeMotion counts foreground blobs found by background subtraction.
// total_count is a count of detection events, not of distinct objects.
func AnalyzeMotion(ctx context.Context, path string, zones []zone.Zone, spec grid.Spec, opts MotionOptions) (*Result, error) {
	opts = opts.normalize()

	src, err := source.Open(path)
	if err != nil {
		return nil, err
	}

	md := motion.NewDetector(opts.Motion)
	defer md.Close()

	return Run[source.Frame](ctx, src, motionDetector{md}, zones, spec, RunOptions[source.Frame]{
		MaxFrames:  opts.MaxFrames,
		SampleRate: opts.SampleRate,
		Regions:    opts.Regions,
		Meta:       Meta{Mode: ModeMotion, MinArea: opts.Motion.MinArea, Video: videoInfo(src)},
		OnFrame:    opts.OnFrame,
	})
}

// AnalyzeWithDetector counts boxes reported by the object detection model.
// It fails with ErrDetectorUnavailable when the model cannot be loaded and
// never falls back to motion mode by itself.
func AnalyzeWithDetector(ctx context.Context, path string, zones []zone.Zone, spec grid.Spec, opts DetectorOptions) (*Result, error) {
	opts = opts.normalize()

	model, err := detector.Load(opts.Model)
	if err != nil {
		return nil, err
	}
	defer model.Close()

	src, err := source.Open(path)
	if err != nil {
		return nil, err
	}

	adapter := detector.NewAdapter[gocv.Mat](model, opts.Classes)
	run := RunOptions[source.Frame]{
		MaxFrames:  opts.MaxFrames,
		SampleRate: opts.SampleRate,
		Regions:    opts.Regions,
		Meta: Meta{
			Mode:     ModeDetector,
			ClassIDs: adapter.AllowList(),
			Model:    filepath.Base(opts.Model.ModelPath),
			Video:    videoInfo(src),
		},
		OnFrame: opts.OnFrame,
	}

	if opts.SaveFrames {
		dir := opts.OutDir
		if dir == "" {
			dir = snapshot.RunDir(opts.OutputRoot)
		}
		log.Debug().Str("dir", dir).Msg("Saving annotated frames")
		w := snapshot.NewWriter(dir, opts.MaxWidth)
		run.Save = func(f source.Frame, number int, dets []Detection) (string, error) {
			return w.SaveMat(f.Mat, number, labels(dets))
		}
	}

	return Run[source.Frame](ctx, src, objectDetector{adapter}, zones, spec, run)
}

// videoInfo reports the decoder's view of a video; still images have none.
func videoInfo(src source.Reader) *VideoInfo {
	v, ok := src.(*source.Video)
	if !ok {
		return nil
	}
	info := v.Info()
	return &VideoInfo{
		Width:      info.Width,
		Height:     info.Height,
		FPS:        info.FPS,
		FrameCount: info.FrameCount,
	}
}

type motionDetector struct {
	*motion.Detector
}

func (m motionDetector) Detect(f source.Frame) ([]Detection, error) {
	blobs := m.Detector.Detect(f.Mat)
	dets := make([]Detection, len(blobs))
	for i, b := range blobs {
		dets[i] = Detection{
			X:       b.Centroid.X,
			Y:       b.Centroid.Y,
			Box:     b.Bounds,
			ClassID: detector.NoClass,
			Area:    b.Area,
		}
	}
	return dets, nil
}

type objectDetector struct {
	adapter *detector.Adapter[gocv.Mat]
}

func (o objectDetector) Detect(f source.Frame) ([]Detection, error) {
	boxes, err := o.adapter.Detect(f.Mat)
	if err != nil {
		return nil, err
	}
	dets := make([]Detection, len(boxes))
	for i, b := range boxes {
		cx, cy := b.Centroid()
		dets[i] = Detection{
			X:       cx,
			Y:       cy,
			Box:     b.Rect(),
			ClassID: b.ClassID,
			Label:   o.adapter.Label(b.ClassID),
			Score:   b.Score,
		}
	}
	return dets, nil
}

func labels(dets []Detection) []snapshot.Label {
	out := make([]snapshot.Label, len(dets))
	for i, d := range dets {
		text := d.Label
		if d.Score > 0 {
			text = fmt.Sprintf("%s %.2f", d.Label, d.Score)
		}
		out[i] = snapshot.Label{Rect: d.Box, Text: text, ClassID: d.ClassID}
	}
	return out
}
