//go:build opencv

package analysis

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kai5263499/crow-counter/internal/detector"
	"github.com/kai5263499/crow-counter/internal/geometry"
	"github.com/kai5263499/crow-counter/internal/grid"
	"github.com/kai5263499/crow-counter/internal/motion"
	"github.com/kai5263499/crow-counter/internal/synthetic"
	"github.com/kai5263499/crow-counter/internal/zone"
	"github.com/kai5263499/crow-counter/pkg/source"
)

func writeVideo(t *testing.T, cfg synthetic.Config) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "synthetic.avi")
	if err := synthetic.WriteVideo(path, cfg); err != nil {
		t.Skipf("video encoding unavailable: %v", err)
	}
	return path
}

func TestAnalyzeMotionBouncingBlobs(t *testing.T) {
	path := writeVideo(t, synthetic.DefaultConfig())

	res, err := AnalyzeMotion(context.Background(), path, nil, grid.Spec{}, MotionOptions{SampleRate: 5, MaxFrames: 20})
	require.NoError(t, err)

	assert.Len(t, res.GridCounts, 12)
	for _, id := range grid.Default().Cells() {
		assert.Contains(t, res.GridCounts, id)
	}
	assert.Equal(t, 20, res.Meta.FramesProcessed)
	assert.Equal(t, 5, res.Meta.SampleRate)
	require.NotNil(t, res.Meta.Video)
	assert.Equal(t, 640, res.Meta.Video.Width)
	assert.Equal(t, 480, res.Meta.Video.Height)
	assert.InDelta(t, 20.0, res.Meta.Video.FPS, 0.5)
	assert.Equal(t, ModeMotion, res.Meta.Mode)
	assert.Equal(t, 400.0, res.Meta.MinArea)
	assert.Positive(t, res.TotalCount)
	assert.Equal(t, sumCounts(res.GridCounts), res.TotalCount)
}

func TestRunMotionOverMats(t *testing.T) {
	scene := synthetic.DefaultConfig()
	scene.Frames = 60
	mats, err := synthetic.Mats(scene)
	require.NoError(t, err)
	src := source.FromMats(mats)

	md := motion.NewDetector(motion.DefaultConfig())
	defer md.Close()

	var progress []int
	res, err := Run[source.Frame](context.Background(), src, motionDetector{md}, nil, grid.Default(), RunOptions[source.Frame]{
		SampleRate: 2,
		Meta:       Meta{Mode: ModeMotion},
		OnFrame:    func(n, _ int) { progress = append(progress, n) },
	})
	require.NoError(t, err)

	assert.True(t, src.Closed(), "Run closes the source")
	assert.Equal(t, 30, res.Meta.FramesProcessed)
	assert.Len(t, progress, 30)
	assert.Positive(t, res.Meta.Detections)
	assert.Equal(t, res.Meta.Detections, res.TotalCount)
	assert.Equal(t, sumCounts(res.GridCounts), res.TotalCount)
	assert.Zero(t, res.Meta.FramesFailed)
}

func TestAnalyzeMotionStaticSceneIsIdempotent(t *testing.T) {
	path := writeVideo(t, synthetic.StaticConfig())

	a, err := AnalyzeMotion(context.Background(), path, nil, grid.Default(), MotionOptions{})
	require.NoError(t, err)
	b, err := AnalyzeMotion(context.Background(), path, nil, grid.Default(), MotionOptions{})
	require.NoError(t, err)

	assert.Equal(t, a.GridCounts, b.GridCounts)
	assert.Equal(t, a.TotalCount, b.TotalCount)
	assert.Equal(t, a.Meta.FramesProcessed, b.Meta.FramesProcessed)
}

func TestAnalyzeMotionFullFrameZone(t *testing.T) {
	path := writeVideo(t, synthetic.DefaultConfig())
	full := zone.Zone{Points: geometry.Polygon{{X: -1, Y: -1}, {X: 641, Y: -1}, {X: 641, Y: 481}, {X: -1, Y: 481}}}

	res, err := AnalyzeMotion(context.Background(), path, []zone.Zone{full}, grid.Default(), MotionOptions{})
	require.NoError(t, err)

	assert.Equal(t, res.Meta.Detections, res.ZoneCounts["0"].Count)
	assert.Equal(t, res.ZoneCounts["0"].Count, res.TotalCount)
	assert.Equal(t, sumCounts(res.GridCounts), res.TotalCount)
}

func TestAnalyzeMotionUnreadableSource(t *testing.T) {
	dir := t.TempDir()

	_, err := AnalyzeMotion(context.Background(), filepath.Join(dir, "missing.mp4"), nil, grid.Default(), MotionOptions{})
	assert.ErrorIs(t, err, ErrSourceUnreadable)

	garbage := filepath.Join(dir, "garbage.jpg")
	require.NoError(t, os.WriteFile(garbage, []byte("not an image"), 0o644))
	res, err := AnalyzeMotion(context.Background(), garbage, nil, grid.Default(), MotionOptions{})
	assert.ErrorIs(t, err, ErrSourceUnreadable)
	assert.Nil(t, res)
}

func TestAnalyzeWithDetectorUnavailable(t *testing.T) {
	path := writeVideo(t, synthetic.StaticConfig())

	res, err := AnalyzeWithDetector(context.Background(), path, nil, grid.Default(), DetectorOptions{
		Model: detector.Config{ModelPath: filepath.Join(t.TempDir(), "absent.onnx")},
	})
	require.ErrorIs(t, err, ErrDetectorUnavailable)
	assert.Nil(t, res)
}
