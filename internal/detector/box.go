// Package detector adapts bounding-box object detection models to the
// counting pipeline. Model output of any supported shape is normalised into
// Box values at this boundary; nothing downstream sees backend tensors.
package detector

import (
	"errors"
	"image"
)

// ErrUnavailable is returned when the detection backend or its model cannot
// be loaded in this environment. Callers decide whether to fall back.
var ErrUnavailable = errors.New("object detector unavailable")

// NoClass marks a box whose class is unknown.
const NoClass = -1

// Box is a detection in frame pixel coordinates.
type Box struct {
	X1, Y1, X2, Y2 int
	ClassID        int
	Score          float32
}

// Centroid is the integer midpoint of the box.
func (b Box) Centroid() (int, int) {
	return (b.X1 + b.X2) / 2, (b.Y1 + b.Y2) / 2
}

// Rect converts the box to an image.Rectangle.
func (b Box) Rect() image.Rectangle {
	return image.Rect(b.X1, b.Y1, b.X2, b.Y2)
}

// Filter keeps boxes whose class is in allow. A nil allow-list keeps all.
func Filter(boxes []Box, allow []int) []Box {
	if allow == nil {
		return boxes
	}
	set := make(map[int]struct{}, len(allow))
	for _, id := range allow {
		set[id] = struct{}{}
	}
	kept := boxes[:0:0]
	for _, b := range boxes {
		if _, ok := set[b.ClassID]; ok {
			kept = append(kept, b)
		}
	}
	return kept
}
