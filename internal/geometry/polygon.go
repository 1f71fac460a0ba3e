// Package geometry provides the planar helpers used to attribute detections
// to zones: point-in-polygon membership and contour moments.
package geometry

import "math"

// Point is a pixel coordinate. Zone vertices arrive as integers from the UI
// but are kept as float64 so the ray-casting math needs no conversions.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Polygon is an ordered, implicitly closed vertex list.
type Polygon []Point

// edgeEpsilon keeps the edge-intersection division finite when an edge is
// horizontal at the test point's y.
const edgeEpsilon = 1e-9

// Degenerate reports whether the polygon has fewer than three vertices.
func (p Polygon) Degenerate() bool {
	return len(p) < 3
}

// Contains is shorthand for PointInPolygon(x, y, p).
func (p Polygon) Contains(x, y float64) bool {
	return PointInPolygon(x, y, p)
}

// PointInPolygon tests membership with the even-odd ray casting rule. A
// horizontal ray from (x, y) toggles the result on every edge it crosses.
//
// Points lying exactly on an edge have implementation-defined membership:
// the epsilon added to the denominator avoids the division by zero on
// horizontal edges but does not make boundary handling consistent. Existing
// zone layouts may rely on the current behaviour, so it is left as is.
//
// Polygons with fewer than three vertices never contain anything.
func PointInPolygon(x, y float64, poly Polygon) bool {
	n := len(poly)
	if n < 3 {
		return false
	}

	inside := false
	j := n - 1
	for i := 0; i < n; i++ {
		xi, yi := poly[i].X, poly[i].Y
		xj, yj := poly[j].X, poly[j].Y
		if (yi > y) != (yj > y) && x < (xj-xi)*(y-yi)/(yj-yi+edgeEpsilon)+xi {
			inside = !inside
		}
		j = i
	}
	return inside
}

// Bounds returns the axis-aligned bounding box of the polygon.
func (p Polygon) Bounds() (lo, hi Point) {
	if len(p) == 0 {
		return Point{}, Point{}
	}
	lo, hi = p[0], p[0]
	for _, pt := range p[1:] {
		lo.X = math.Min(lo.X, pt.X)
		lo.Y = math.Min(lo.Y, pt.Y)
		hi.X = math.Max(hi.X, pt.X)
		hi.Y = math.Max(hi.Y, pt.Y)
	}
	return lo, hi
}
