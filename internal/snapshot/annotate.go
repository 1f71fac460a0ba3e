//go:build opencv

package snapshot

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Label is one box to draw.
type Label struct {
	Rect    image.Rectangle
	Text    string
	ClassID int
}

// Annotate draws labels on a copy of frame and returns it as an image. The
// frame itself is left untouched.
func Annotate(frame gocv.Mat, labels []Label) (image.Image, error) {
	canvas := frame.Clone()
	defer canvas.Close()

	for _, l := range labels {
		c := ClassColor(l.ClassID)
		gocv.Rectangle(&canvas, l.Rect, c, 2)
		if l.Text == "" {
			continue
		}
		y := l.Rect.Min.Y - 6
		if y < 10 {
			y = 10
		}
		gocv.PutText(&canvas, l.Text, image.Pt(l.Rect.Min.X, y), gocv.FontHersheySimplex, 0.5, c, 1)
	}

	img, err := canvas.ToImage()
	if err != nil {
		return nil, fmt.Errorf("failed to convert frame: %w", err)
	}
	return img, nil
}

// SaveMat annotates frame and writes it as the snapshot for number.
func (w *Writer) SaveMat(frame gocv.Mat, number int, labels []Label) (string, error) {
	img, err := Annotate(frame, labels)
	if err != nil {
		return "", err
	}
	return w.SaveImage(img, number)
}
