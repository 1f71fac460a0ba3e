package detector

import (
	"fmt"
	"image"
	"strings"
)

// Layout names the tensor shape a model emits.
type Layout string

const (
	LayoutAuto    Layout = "auto"
	LayoutSSD     Layout = "ssd"     // [1,1,N,7]: image, class, score, x1, y1, x2, y2 in [0,1]
	LayoutYOLOv5  Layout = "yolov5"  // [1,N,5+C]: cx, cy, w, h, objectness, class scores
	LayoutYOLOv8  Layout = "yolov8"  // [1,4+C,N]: cx, cy, w, h, class scores; channel-first
	LayoutDarknet Layout = "darknet" // [N,5+C]: like YOLOv5 but coordinates in [0,1]
)

// ParseLayout accepts the names above case-insensitively; "" means auto.
func ParseLayout(s string) (Layout, error) {
	switch l := Layout(strings.ToLower(strings.TrimSpace(s))); l {
	case "", LayoutAuto:
		return LayoutAuto, nil
	case LayoutSSD, LayoutYOLOv5, LayoutYOLOv8, LayoutDarknet:
		return l, nil
	default:
		return "", fmt.Errorf("unknown output layout %q", s)
	}
}

// Output is a raw model tensor: row-major data plus its dimensions.
type Output struct {
	Data  []float32
	Shape []int
}

// squeeze drops leading unit dimensions, keeping at least two.
func (o Output) squeeze() []int {
	s := o.Shape
	for len(s) > 2 && s[0] == 1 {
		s = s[1:]
	}
	return s
}

// DetectLayout guesses the layout from the tensor shape. YOLOv8 exports put
// the per-box attributes first, so the attribute axis is the shorter one.
func DetectLayout(shape []int) (Layout, error) {
	if len(shape) == 4 && shape[3] == 7 {
		return LayoutSSD, nil
	}
	s := Output{Shape: shape}.squeeze()
	if len(s) != 2 {
		return "", fmt.Errorf("unsupported output shape %v", shape)
	}
	if len(shape) == 2 {
		return LayoutDarknet, nil
	}
	if s[0] < s[1] {
		return LayoutYOLOv8, nil
	}
	return LayoutYOLOv5, nil
}

// Geometry relates model input space to frame space. Frames are stretched to
// the input size, so each axis scales independently.
type Geometry struct {
	Frame image.Point
	Input image.Point
}

func (g Geometry) scale() (float32, float32) {
	if g.Input.X <= 0 || g.Input.Y <= 0 {
		return 1, 1
	}
	return float32(g.Frame.X) / float32(g.Input.X), float32(g.Frame.Y) / float32(g.Input.Y)
}

// Decode converts one output tensor into candidate boxes in frame pixels,
// dropping anything scoring below minScore. No suppression is applied.
func Decode(out Output, layout Layout, g Geometry, minScore float32) ([]Box, error) {
	if layout == LayoutAuto || layout == "" {
		var err error
		if layout, err = DetectLayout(out.Shape); err != nil {
			return nil, err
		}
	}

	s := out.squeeze()
	if len(s) < 2 {
		return nil, fmt.Errorf("output shape %v has too few dimensions", out.Shape)
	}
	need := 1
	for _, d := range out.Shape {
		need *= d
	}
	if len(out.Data) < need {
		return nil, fmt.Errorf("output data has %d values, shape %v needs %d", len(out.Data), out.Shape, need)
	}

	switch layout {
	case LayoutSSD:
		return decodeSSD(out.Data, s[len(s)-2], g, minScore)
	case LayoutYOLOv5:
		return decodeRows(out.Data, s[0], s[1], true, g, minScore, false)
	case LayoutDarknet:
		return decodeRows(out.Data, s[0], s[1], true, g, minScore, true)
	case LayoutYOLOv8:
		return decodeColumns(out.Data, s[0], s[1], g, minScore)
	default:
		return nil, fmt.Errorf("unknown output layout %q", layout)
	}
}

func decodeSSD(data []float32, n int, g Geometry, minScore float32) ([]Box, error) {
	var boxes []Box
	for i := 0; i < n; i++ {
		row := data[i*7 : i*7+7]
		score := row[2]
		if score < minScore {
			continue
		}
		fx, fy := float32(g.Frame.X), float32(g.Frame.Y)
		boxes = append(boxes, clampBox(Box{
			X1:      int(row[3] * fx),
			Y1:      int(row[4] * fy),
			X2:      int(row[5] * fx),
			Y2:      int(row[6] * fy),
			ClassID: int(row[1]),
			Score:   score,
		}, g.Frame))
	}
	return boxes, nil
}

// decodeRows handles one box per row: cx, cy, w, h, [objectness,] scores.
func decodeRows(data []float32, n, attrs int, objectness bool, g Geometry, minScore float32, normalized bool) ([]Box, error) {
	first := 4
	if objectness {
		first = 5
	}
	if attrs <= first {
		return nil, fmt.Errorf("row of %d attributes carries no class scores", attrs)
	}

	sx, sy := g.scale()
	if normalized {
		sx, sy = float32(g.Frame.X), float32(g.Frame.Y)
	}

	var boxes []Box
	for i := 0; i < n; i++ {
		row := data[i*attrs : (i+1)*attrs]
		cls, best := argmax(row[first:])
		score := best
		// Darknet region layers already fold objectness into class scores.
		if objectness && !normalized {
			score *= row[4]
		}
		if score < minScore {
			continue
		}
		boxes = append(boxes, centerBox(row[0], row[1], row[2], row[3], sx, sy, cls, score, g.Frame))
	}
	return boxes, nil
}

// decodeColumns handles the transposed layout where box i is column i.
func decodeColumns(data []float32, attrs, n int, g Geometry, minScore float32) ([]Box, error) {
	if attrs <= 4 {
		return nil, fmt.Errorf("column of %d attributes carries no class scores", attrs)
	}
	sx, sy := g.scale()
	at := func(a, i int) float32 { return data[a*n+i] }

	var boxes []Box
	for i := 0; i < n; i++ {
		cls, best := -1, float32(0)
		for a := 4; a < attrs; a++ {
			if v := at(a, i); cls < 0 || v > best {
				cls, best = a-4, v
			}
		}
		if best < minScore {
			continue
		}
		boxes = append(boxes, centerBox(at(0, i), at(1, i), at(2, i), at(3, i), sx, sy, cls, best, g.Frame))
	}
	return boxes, nil
}

func argmax(v []float32) (int, float32) {
	idx, best := 0, v[0]
	for i, x := range v[1:] {
		if x > best {
			idx, best = i+1, x
		}
	}
	return idx, best
}

func centerBox(cx, cy, w, h, sx, sy float32, cls int, score float32, frame image.Point) Box {
	return clampBox(Box{
		X1:      int((cx - w/2) * sx),
		Y1:      int((cy - h/2) * sy),
		X2:      int((cx + w/2) * sx),
		Y2:      int((cy + h/2) * sy),
		ClassID: cls,
		Score:   score,
	}, frame)
}

func clampBox(b Box, frame image.Point) Box {
	if frame.X <= 0 || frame.Y <= 0 {
		return b
	}
	b.X1, b.X2 = clampInt(b.X1, frame.X), clampInt(b.X2, frame.X)
	b.Y1, b.Y2 = clampInt(b.Y1, frame.Y), clampInt(b.Y2, frame.Y)
	return b
}

func clampInt(v, limit int) int {
	if v < 0 {
		return 0
	}
	if v > limit {
		return limit
	}
	return v
}
