package analysis

import (
	"strconv"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/kai5263499/crow-counter/internal/grid"
	"github.com/kai5263499/crow-counter/internal/zone"
)

// Tally accumulates zone and cell counters for one run. Counters only grow.
type Tally struct {
	zones      []zone.Zone
	degenerate map[int]bool
	spec       grid.Spec

	zoneCounts []int
	cellCounts map[string]int
	perFrame   []float64
	current    int
	detections int
}

// NewTally pre-initializes a counter for every zone and cell. Zones with
// fewer than three points keep their counter but never match.
func NewTally(zones []zone.Zone, spec grid.Spec) *Tally {
	spec = spec.Normalize()
	t := &Tally{
		zones:      zones,
		degenerate: make(map[int]bool),
		spec:       spec,
		zoneCounts: make([]int, len(zones)),
		cellCounts: make(map[string]int, spec.Size()),
	}
	for _, i := range zone.DegenerateIndexes(zones) {
		t.degenerate[i] = true
	}
	for _, id := range spec.Cells() {
		t.cellCounts[id] = 0
	}
	return t
}

// Add attributes a centroid in a w×h frame. Overlapping zones each count.
func (t *Tally) Add(x, y, w, h int) {
	t.detections++
	t.current++
	for i, z := range t.zones {
		if t.degenerate[i] {
			continue
		}
		if z.Contains(x, y) {
			t.zoneCounts[i]++
		}
	}
	t.cellCounts[t.spec.Classify(x, y, w, h)]++
}

// EndFrame closes the per-frame detection count.
func (t *Tally) EndFrame() {
	t.perFrame = append(t.perFrame, float64(t.current))
	t.current = 0
}

// Total applies the counting rule: the zone sum when zones are configured,
// otherwise the grid sum.
func (t *Tally) Total() int {
	total := 0
	if len(t.zones) > 0 {
		for _, c := range t.zoneCounts {
			total += c
		}
		return total
	}
	for _, c := range t.cellCounts {
		total += c
	}
	return total
}

// Fill copies the counters into r and sets the detection statistics in its
// meta.
func (t *Tally) Fill(r *Result) {
	r.ZoneCounts = make(map[string]Count, len(t.zoneCounts))
	for i, c := range t.zoneCounts {
		r.ZoneCounts[strconv.Itoa(i)] = Count{Count: c}
	}
	r.GridCounts = make(map[string]Count, len(t.cellCounts))
	for id, c := range t.cellCounts {
		r.GridCounts[id] = Count{Count: c}
	}
	r.TotalCount = t.Total()

	r.Meta.Grid = t.spec
	r.Meta.Detections = t.detections
	r.Meta.DegenerateZones = zone.DegenerateIndexes(t.zones)
	if len(t.perFrame) > 0 {
		r.Meta.PeakDetections = int(floats.Max(t.perFrame))
		r.Meta.MeanDetections = stat.Mean(t.perFrame, nil)
	}
}
