// Package grid maps pixel coordinates onto a uniform row/column overlay.
package grid

import (
	"fmt"
	"math"
	"strconv"
)

const (
	// DefaultCols and DefaultRows are used when no grid is configured.
	DefaultCols = 4
	DefaultRows = 3

	// MaxRows keeps row labels within 'A'..'Z'.
	MaxRows = 26
)

// Spec is a grid of Cols columns by Rows rows. It serialises as {x, y} to
// stay compatible with stored zone configurations.
type Spec struct {
	Cols int `json:"x" yaml:"x"`
	Rows int `json:"y" yaml:"y"`
}

// Default returns the 4x3 grid.
func Default() Spec {
	return Spec{Cols: DefaultCols, Rows: DefaultRows}
}

// Normalize substitutes the default for non-positive dimensions and clamps
// rows to MaxRows.
func (s Spec) Normalize() Spec {
	if s.Cols <= 0 {
		s.Cols = DefaultCols
	}
	if s.Rows <= 0 {
		s.Rows = DefaultRows
	}
	if s.Rows > MaxRows {
		s.Rows = MaxRows
	}
	return s
}

// Size is the number of cells.
func (s Spec) Size() int {
	return s.Cols * s.Rows
}

func (s Spec) String() string {
	return fmt.Sprintf("%dx%d", s.Cols, s.Rows)
}

// CellID formats a zero-based row/column pair as <row letter><column number>.
func CellID(row, col int) string {
	return string(rune('A'+row)) + strconv.Itoa(col+1)
}

// Cells lists every cell id in row-major order.
func (s Spec) Cells() []string {
	ids := make([]string, 0, s.Size())
	for row := 0; row < s.Rows; row++ {
		for col := 0; col < s.Cols; col++ {
			ids = append(ids, CellID(row, col))
		}
	}
	return ids
}

// Locate returns the clamped row and column of (cx, cy) in a width x height
// frame. Centroids on or past the frame edge land in the last row/column.
func (s Spec) Locate(cx, cy, width, height int) (row, col int) {
	col = clampIndex(float64(cx)/(float64(width)/float64(s.Cols)), s.Cols)
	row = clampIndex(float64(cy)/(float64(height)/float64(s.Rows)), s.Rows)
	return row, col
}

// Classify returns the id of the cell containing (cx, cy).
func (s Spec) Classify(cx, cy, width, height int) string {
	row, col := s.Locate(cx, cy, width, height)
	return CellID(row, col)
}

func clampIndex(v float64, n int) int {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	// A zero frame dimension divides to +Inf.
	if math.IsInf(v, 1) || v >= float64(n) {
		return n - 1
	}
	return int(math.Floor(v))
}
