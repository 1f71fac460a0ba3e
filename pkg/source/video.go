//go:build opencv

package source

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"
)

// Frame is one decoded picture. Its Mat is owned by the source and is only
// valid until the next Read.
type Frame struct {
	Mat gocv.Mat
	// Number is the 1-based position in the stream; 0 for still images.
	Number int
}

// Dims returns the frame width and height in pixels.
func (f Frame) Dims() (int, int) {
	return f.Mat.Cols(), f.Mat.Rows()
}

// Reader yields frames sequentially until io.EOF.
type Reader interface {
	Read() (Frame, error)
	Still() bool
	Close() error
}

// Info describes an opened video.
type Info struct {
	Width      int
	Height     int
	FPS        float64
	FrameCount int
}

// Video reads frames from a file or stream URL.
type Video struct {
	Path    string
	capture *gocv.VideoCapture
	frame   gocv.Mat
	read    int
	closed  bool
}

// Open picks a still image or video reader for path.
func Open(path string) (Reader, error) {
	if IsStillImage(path) {
		return OpenImage(path)
	}
	return OpenVideo(path)
}

// OpenVideo opens path with OpenCV's capture backend.
func OpenVideo(path string) (*Video, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreadable, path, err)
	}

	capture, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open video %s: %v", ErrUnreadable, path, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("%w: video %s opened but not ready", ErrUnreadable, path)
	}

	v := &Video{
		Path:    path,
		capture: capture,
		frame:   gocv.NewMat(),
	}
	info := v.Info()
	log.Debug().
		Str("source", path).
		Int("width", info.Width).
		Int("height", info.Height).
		Float64("fps", info.FPS).
		Int("frames", info.FrameCount).
		Msg("Video opened")
	return v, nil
}

// Info reports the container properties.
func (v *Video) Info() Info {
	if v.closed {
		return Info{}
	}
	return Info{
		Width:      int(v.capture.Get(gocv.VideoCaptureFrameWidth)),
		Height:     int(v.capture.Get(gocv.VideoCaptureFrameHeight)),
		FPS:        v.capture.Get(gocv.VideoCaptureFPS),
		FrameCount: int(v.capture.Get(gocv.VideoCaptureFrameCount)),
	}
}

// Read decodes the next frame into the reader's buffer.
func (v *Video) Read() (Frame, error) {
	if v.closed {
		return Frame{}, fmt.Errorf("%w: video %s is closed", ErrUnreadable, v.Path)
	}
	if !v.capture.Read(&v.frame) || v.frame.Empty() {
		return Frame{}, io.EOF
	}
	v.read++
	return Frame{Mat: v.frame, Number: v.read}, nil
}

// Still is always false for videos.
func (v *Video) Still() bool { return false }

// Close releases the capture handle. It is safe to call more than once.
func (v *Video) Close() error {
	if v.closed {
		return nil
	}
	v.closed = true
	v.capture.Close()
	v.frame.Close()
	log.Debug().Str("source", v.Path).Int("frames", v.read).Msg("Video closed")
	return nil
}
