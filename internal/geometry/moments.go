package geometry

import (
	"image"
	"math"
)

// Moments holds the low-order spatial moments of a closed contour.
type Moments struct {
	M00 float64
	M10 float64
	M01 float64
}

// ContourMoments computes m00, m10 and m01 of the polygon traced by pts using
// Green's theorem, the same quantities OpenCV reports for a contour. The sign
// is normalised so that M00 is never negative regardless of winding order.
func ContourMoments(pts []image.Point) Moments {
	n := len(pts)
	if n < 3 {
		return Moments{}
	}

	var a00, a10, a01 float64
	prev := pts[n-1]
	for _, cur := range pts {
		xp, yp := float64(prev.X), float64(prev.Y)
		xc, yc := float64(cur.X), float64(cur.Y)
		cross := xp*yc - xc*yp
		a00 += cross
		a10 += cross * (xp + xc)
		a01 += cross * (yp + yc)
		prev = cur
	}

	m := Moments{M00: a00 / 2, M10: a10 / 6, M01: a01 / 6}
	if m.M00 < 0 {
		m.M00, m.M10, m.M01 = -m.M00, -m.M10, -m.M01
	}
	return m
}

// Centroid returns the truncated centre of mass. ok is false when the
// contour encloses no area.
func (m Moments) Centroid() (cx, cy int, ok bool) {
	if m.M00 == 0 || math.IsNaN(m.M00) {
		return 0, 0, false
	}
	return int(m.M10 / m.M00), int(m.M01 / m.M00), true
}

// Area is the absolute enclosed area.
func (m Moments) Area() float64 {
	return m.M00
}
