package analysis

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kai5263499/crow-counter/internal/grid"
	"github.com/kai5263499/crow-counter/internal/zone"
)

// Frame is anything with pixel dimensions.
type Frame interface {
	Dims() (width, height int)
}

// Source yields frames until io.EOF. Still sources yield a single frame.
type Source[F Frame] interface {
	Read() (F, error)
	Still() bool
	Close() error
}

// Detector finds objects in one frame.
type Detector[F Frame] interface {
	Detect(frame F) ([]Detection, error)
}

// Detection is a single object sighting. Only the centroid is used for
// counting; the rest feeds snapshots.
type Detection struct {
	X, Y    int
	Box     image.Rectangle
	ClassID int
	Label   string
	Score   float32
	Area    float64
}

// RunOptions controls the frame loop.
type RunOptions[F Frame] struct {
	MaxFrames  int
	SampleRate int
	// Regions drops detections whose centroid falls outside all of them.
	Regions []Region
	// Meta seeds the result metadata; counters and statistics are filled in.
	Meta Meta
	// Save persists a processed frame and returns the written path. When nil
	// no snapshots are taken and the result carries no images.
	Save    func(frame F, number int, dets []Detection) (string, error)
	OnFrame ProgressFunc
}

// skipCounter is implemented by detectors that drop degenerate contours.
type skipCounter interface {
	Skipped() int
}

// Run drives det over src and tallies every detection against zones and the
// grid. Video frames are kept when their 1-based index is divisible by
// SampleRate, until MaxFrames have been processed or the stream ends. A still
// source is processed once as frame 0.
//
// src is closed on every path. Per-frame detector errors are counted in
// Meta.FramesFailed and do not stop the run. A read error or cancelled ctx
// stops the run and returns the partial result together with the error.
func Run[F Frame](ctx context.Context, src Source[F], det Detector[F], zones []zone.Zone, spec grid.Spec, opts RunOptions[F]) (*Result, error) {
	defer func() {
		if err := src.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close source")
		}
	}()

	opts.MaxFrames, opts.SampleRate = normalizeSampling(opts.MaxFrames, opts.SampleRate)

	started := time.Now()
	tally := NewTally(zones, spec)
	still := src.Still()

	result := &Result{
		Meta:            opts.Meta,
		imagesRequested: opts.Save != nil,
	}
	result.Meta.SampleRate = opts.SampleRate
	result.Meta.MaxFrames = opts.MaxFrames
	result.Meta.StillImage = still
	result.Meta.Regions = len(opts.Regions)

	log.Info().
		Str("mode", result.Meta.Mode).
		Int("zones", len(zones)).
		Str("grid", spec.Normalize().String()).
		Int("sample_rate", opts.SampleRate).
		Int("max_frames", opts.MaxFrames).
		Bool("still", still).
		Msg("Analysis started")

	finish := func(runErr error) (*Result, error) {
		tally.Fill(result)
		if sc, ok := det.(skipCounter); ok {
			result.Meta.SkippedContours = sc.Skipped()
		}
		result.Meta.DurationMS = time.Since(started).Milliseconds()
		result.Timestamp = time.Now().UTC()

		ev := log.Info()
		if runErr != nil {
			ev = log.Warn().Err(runErr)
		}
		ev.Str("mode", result.Meta.Mode).
			Int("frames", result.Meta.FramesProcessed).
			Int("detections", result.Meta.Detections).
			Int("total", result.TotalCount).
			Int("frames_failed", result.Meta.FramesFailed).
			Int64("duration_ms", result.Meta.DurationMS).
			Msg("Analysis finished")
		return result, runErr
	}

	index := 0
	for result.Meta.FramesProcessed < opts.MaxFrames {
		if err := ctx.Err(); err != nil {
			return finish(fmt.Errorf("analysis interrupted after %d frames: %w", result.Meta.FramesProcessed, err))
		}

		frame, err := src.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return finish(fmt.Errorf("read frame %d: %w", index+1, err))
		}

		number := 0
		if !still {
			index++
			if index%opts.SampleRate != 0 {
				continue
			}
			number = index
		}

		process(frame, number, det, tally, result, opts)

		if opts.OnFrame != nil {
			opts.OnFrame(result.Meta.FramesProcessed, opts.MaxFrames)
		}
		if still {
			break
		}
	}

	return finish(nil)
}

func process[F Frame](frame F, number int, det Detector[F], tally *Tally, result *Result, opts RunOptions[F]) {
	result.Meta.FramesProcessed++

	dets, err := det.Detect(frame)
	if err != nil {
		result.Meta.FramesFailed++
		log.Warn().Err(err).Int("frame", number).Msg("Detection failed, frame skipped")
		tally.EndFrame()
		return
	}

	dets, dropped := filterRegions(opts.Regions, dets)
	result.Meta.OutsideRegions += dropped

	w, h := frame.Dims()
	for _, d := range dets {
		tally.Add(d.X, d.Y, w, h)
	}
	tally.EndFrame()

	log.Debug().Int("frame", number).Int("detections", len(dets)).Msg("Frame analysed")

	if opts.Save == nil {
		return
	}
	path, err := opts.Save(frame, number, dets)
	if err != nil {
		log.Warn().Err(err).Int("frame", number).Msg("Failed to save snapshot")
		return
	}
	result.Images = append(result.Images, path)
}
