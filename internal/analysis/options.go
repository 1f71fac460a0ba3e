package analysis

import (
	"errors"

	"github.com/kai5263499/crow-counter/internal/detector"
	"github.com/kai5263499/crow-counter/internal/motion"
	"github.com/kai5263499/crow-counter/pkg/source"
)

// Defaults applied to zero option fields.
const (
	DefaultMaxFrames  = 1000
	DefaultSampleRate = 3
	DefaultMinArea    = 400
)

var (
	// ErrSourceUnreadable means the input could not be opened or decoded.
	ErrSourceUnreadable = source.ErrUnreadable
	// ErrDetectorUnavailable means detector mode has no usable backend.
	ErrDetectorUnavailable = detector.ErrUnavailable
)

// IsFatal reports whether err prevented any result from being produced.
func IsFatal(err error) bool {
	return errors.Is(err, ErrSourceUnreadable) || errors.Is(err, ErrDetectorUnavailable)
}

// ProgressFunc is told how many frames have been processed out of the
// max_frames budget.
type ProgressFunc func(processed, max int)

// MotionOptions configures a background-subtraction run.
type MotionOptions struct {
	MaxFrames  int
	SampleRate int
	MinArea    float64
	Regions    []Region
	// Motion tunes the background model; its MinArea is replaced by the
	// field above.
	Motion  motion.Config
	OnFrame ProgressFunc
}

func (o MotionOptions) normalize() MotionOptions {
	o.MaxFrames, o.SampleRate = normalizeSampling(o.MaxFrames, o.SampleRate)
	if o.MinArea <= 0 {
		o.MinArea = DefaultMinArea
	}
	o.Motion.MinArea = o.MinArea
	o.Motion = o.Motion.Normalize()
	return o
}

// DetectorOptions configures an object-detector run.
type DetectorOptions struct {
	MaxFrames  int
	SampleRate int
	// Classes selects what to count by name or numeric id. Empty counts
	// people when the model knows the class.
	Classes    []string
	Regions    []Region
	SaveFrames bool
	// OutDir receives snapshots. When empty a fresh directory is created
	// under OutputRoot/detections.
	OutDir     string
	OutputRoot string
	MaxWidth   int
	Model      detector.Config
	OnFrame    ProgressFunc
}

func (o DetectorOptions) normalize() DetectorOptions {
	o.MaxFrames, o.SampleRate = normalizeSampling(o.MaxFrames, o.SampleRate)
	if o.OutputRoot == "" {
		o.OutputRoot = "uploads"
	}
	o.Model = o.Model.Normalize()
	return o
}

func normalizeSampling(maxFrames, sampleRate int) (int, int) {
	if maxFrames <= 0 {
		maxFrames = DefaultMaxFrames
	}
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	return maxFrames, sampleRate
}
