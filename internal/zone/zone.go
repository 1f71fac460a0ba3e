// Package zone decodes the zone and grid layouts that callers attach to a
// source before analysis.
package zone

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/kai5263499/crow-counter/internal/geometry"
	"github.com/kai5263499/crow-counter/internal/grid"
)

// Zone is one user-drawn polygon. It is identified by its position in the
// list it was configured in.
type Zone struct {
	Name   string           `json:"name,omitempty" yaml:"name,omitempty"`
	Points geometry.Polygon `json:"points" yaml:"points"`
}

// UnmarshalJSON accepts both {"points": [...]} and a bare point list, the
// format older layouts were saved in.
func (z *Zone) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var pts geometry.Polygon
		if err := json.Unmarshal(data, &pts); err != nil {
			return fmt.Errorf("decode zone points: %w", err)
		}
		*z = Zone{Points: pts}
		return nil
	}

	type plain Zone
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("decode zone: %w", err)
	}
	*z = Zone(p)
	return nil
}

// Contains reports whether (x, y) lies inside the zone polygon.
func (z Zone) Contains(x, y int) bool {
	return z.Points.Contains(float64(x), float64(y))
}

// Degenerate reports whether the zone cannot enclose any point.
func (z Zone) Degenerate() bool {
	return z.Points.Degenerate()
}

// Layout is the full spatial configuration of one analysis run.
type Layout struct {
	Zones []Zone    `json:"zones"`
	Grid  grid.Spec `json:"gridSize"`
}

// Parse decodes a zone list and a grid spec as stored by the UI. Either
// argument may be empty, in which case the documented defaults apply: no
// zones and a 4x3 grid.
func Parse(zonesJSON, gridJSON []byte) (Layout, error) {
	var l Layout
	if len(bytes.TrimSpace(zonesJSON)) > 0 && !bytes.Equal(bytes.TrimSpace(zonesJSON), []byte("null")) {
		if err := json.Unmarshal(zonesJSON, &l.Zones); err != nil {
			return Layout{}, fmt.Errorf("parse zones: %w", err)
		}
	}
	if len(bytes.TrimSpace(gridJSON)) > 0 && !bytes.Equal(bytes.TrimSpace(gridJSON), []byte("null")) {
		if err := json.Unmarshal(gridJSON, &l.Grid); err != nil {
			return Layout{}, fmt.Errorf("parse grid: %w", err)
		}
	}
	l.Grid = l.Grid.Normalize()
	return l, nil
}

// DegenerateIndexes lists the positions of zones with fewer than three points.
func DegenerateIndexes(zones []Zone) []int {
	var idx []int
	for i, z := range zones {
		if z.Degenerate() {
			idx = append(idx, i)
		}
	}
	return idx
}
