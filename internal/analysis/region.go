package analysis

import "fmt"

// Region is an axis-aligned rectangle in frame pixels. When a run has
// regions, only detections whose centroid lies in at least one of them are
// counted.
type Region struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Contains reports whether (x, y) lies in r, edges included.
func (r Region) Contains(x, y int) bool {
	return x >= r.X && x <= r.X+r.W && y >= r.Y && y <= r.Y+r.H
}

// Validate rejects negative sizes.
func (r Region) Validate() error {
	if r.W < 0 || r.H < 0 {
		return fmt.Errorf("region %dx%d at (%d,%d) has a negative size", r.W, r.H, r.X, r.Y)
	}
	return nil
}

// ValidateRegions checks every region in rs.
func ValidateRegions(rs []Region) error {
	for i, r := range rs {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("rects[%d]: %w", i, err)
		}
	}
	return nil
}

func inRegions(rs []Region, x, y int) bool {
	if len(rs) == 0 {
		return true
	}
	for _, r := range rs {
		if r.Contains(x, y) {
			return true
		}
	}
	return false
}

// filterRegions keeps the detections inside rs and returns how many were
// dropped. dets is left untouched.
func filterRegions(rs []Region, dets []Detection) ([]Detection, int) {
	if len(rs) == 0 {
		return dets, 0
	}
	kept := make([]Detection, 0, len(dets))
	for _, d := range dets {
		if inRegions(rs, d.X, d.Y) {
			kept = append(kept, d)
		}
	}
	return kept, len(dets) - len(kept)
}
