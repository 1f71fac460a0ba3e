//go:build opencv

package source

import (
	"fmt"
	"io"
	"os"

	"gocv.io/x/gocv"
)

// Image serves a single still picture as frame 0.
type Image struct {
	Path   string
	mat    gocv.Mat
	served bool
	closed bool
}

// OpenImage decodes path eagerly so an unreadable file fails at open time.
func OpenImage(path string) (*Image, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreadable, path, err)
	}
	mat := gocv.IMRead(path, gocv.IMReadColor)
	if mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("%w: unable to decode image %s", ErrUnreadable, path)
	}
	return &Image{Path: path, mat: mat}, nil
}

// Read returns the image once, then io.EOF.
func (i *Image) Read() (Frame, error) {
	if i.closed {
		return Frame{}, fmt.Errorf("%w: image %s is closed", ErrUnreadable, i.Path)
	}
	if i.served {
		return Frame{}, io.EOF
	}
	i.served = true
	return Frame{Mat: i.mat}, nil
}

// Still is always true for images.
func (i *Image) Still() bool { return true }

// Close frees the decoded pixels.
func (i *Image) Close() error {
	if !i.closed {
		i.closed = true
		i.mat.Close()
	}
	return nil
}

// Mats replays caller-owned frames, mostly for synthetic input. Closing it
// releases every Mat.
type Mats struct {
	frames []gocv.Mat
	next   int
	closed bool
}

// FromMats wraps frames as a video-like reader.
func FromMats(frames []gocv.Mat) *Mats {
	return &Mats{frames: frames}
}

func (m *Mats) Read() (Frame, error) {
	if m.closed {
		return Frame{}, fmt.Errorf("%w: frame list is closed", ErrUnreadable)
	}
	if m.next >= len(m.frames) {
		return Frame{}, io.EOF
	}
	f := Frame{Mat: m.frames[m.next], Number: m.next + 1}
	m.next++
	return f, nil
}

func (m *Mats) Still() bool { return false }

// Closed reports whether Close has been called.
func (m *Mats) Closed() bool { return m.closed }

func (m *Mats) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	for _, f := range m.frames {
		f.Close()
	}
	return nil
}
