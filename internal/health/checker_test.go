package health

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kai5263499/crow-counter/internal/detector"
)

func TestCheckHealthy(t *testing.T) {
	media := t.TempDir()
	out := filepath.Join(t.TempDir(), "nested", "out")
	model := filepath.Join(t.TempDir(), "yolov8n.onnx")
	if err := os.WriteFile(model, []byte("onnx"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := NewChecker()
	fixed := time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)
	c.now = func() time.Time { return fixed }

	r := c.Check(Target{MediaRoot: media, OutputDir: out, Detector: detector.Config{ModelPath: model}})

	assert.True(t, r.MediaReadable)
	assert.True(t, r.OutputWritable)
	assert.True(t, r.DetectorAvailable)
	assert.True(t, r.Ready())
	assert.Equal(t, "2026-10-19T09:30:00Z", r.LastChecked)
	assert.Zero(t, r.CheckTime)

	entries, err := os.ReadDir(out)
	assert.NoError(t, err)
	assert.Empty(t, entries, "scratch file is removed")
}

func TestCheckProblems(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewChecker().Check(Target{
		MediaRoot: filepath.Join(dir, "missing"),
		OutputDir: filepath.Join(blocker, "out"),
		Detector:  detector.Config{ModelPath: filepath.Join(dir, "nope.onnx")},
	})

	assert.False(t, r.MediaReadable)
	assert.Contains(t, r.MediaError, "Media root unreadable")
	assert.False(t, r.OutputWritable)
	assert.NotEmpty(t, r.OutputError)
	assert.False(t, r.DetectorAvailable)
	assert.Contains(t, r.DetectorError, "Model file missing")
	assert.False(t, r.Ready())
}

func TestCheckNoModel(t *testing.T) {
	r := NewChecker().Check(Target{MediaRoot: t.TempDir(), OutputDir: t.TempDir()})

	assert.True(t, r.Ready())
	assert.False(t, r.DetectorAvailable)
	assert.Equal(t, "No model configured", r.DetectorError)
}
