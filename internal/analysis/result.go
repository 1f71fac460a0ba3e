// Package analysis samples frames from a source, dispatches them to the
// active detector and attributes every detection to zones and grid cells.
package analysis

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/kai5263499/crow-counter/internal/grid"
)

// Modes reported in Meta.Mode.
const (
	ModeMotion   = "motion"
	ModeDetector = "detector"
)

// ModeYOLO is accepted from clients as another name for ModeDetector.
const ModeYOLO = "yolo"

// CanonicalMode maps a requested mode to ModeMotion or ModeDetector. An empty
// mode means motion; unknown names come back unchanged.
func CanonicalMode(mode string) string {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", ModeMotion:
		return ModeMotion
	case ModeDetector, ModeYOLO:
		return ModeDetector
	}
	return mode
}

// Count is one counter entry.
type Count struct {
	Count int `json:"count"`
}

// VideoInfo describes the input stream as reported by the decoder.
type VideoInfo struct {
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	FPS        float64 `json:"fps"`
	FrameCount int     `json:"frame_count"`
}

// Meta describes how a result was produced.
type Meta struct {
	Mode            string     `json:"mode"`
	FramesProcessed int        `json:"frames_processed"`
	SampleRate      int        `json:"sample_rate"`
	MaxFrames       int        `json:"max_frames"`
	MinArea         float64    `json:"min_area,omitempty"`
	ClassIDs        []int      `json:"class_ids,omitempty"`
	Model           string     `json:"model,omitempty"`
	Grid            grid.Spec  `json:"grid_size"`
	StillImage      bool       `json:"still_image,omitempty"`
	Video           *VideoInfo `json:"video_info,omitempty"`
	Regions         int        `json:"regions,omitempty"`
	OutsideRegions  int        `json:"outside_regions,omitempty"`
	Detections      int        `json:"detections"`
	PeakDetections  int        `json:"peak_detections"`
	MeanDetections  float64    `json:"mean_detections"`
	FramesFailed    int        `json:"frames_failed"`
	SkippedContours int        `json:"skipped_contours"`
	DegenerateZones []int      `json:"degenerate_zones,omitempty"`
	FallbackFrom    string     `json:"fallback_from,omitempty"`
	DurationMS      int64      `json:"duration_ms"`
}

// Result is the outcome of one analysis run. Every configured zone and grid
// cell has an entry, even at zero.
type Result struct {
	Timestamp  time.Time
	ZoneCounts map[string]Count
	GridCounts map[string]Count
	TotalCount int
	Meta       Meta
	// Images holds written snapshot paths. It is serialized only when
	// snapshots were requested.
	Images []string

	imagesRequested bool
}

// ImagesRequested reports whether the run was asked to save snapshots.
func (r *Result) ImagesRequested() bool {
	return r.imagesRequested
}

type resultJSON struct {
	Timestamp  string           `json:"timestamp"`
	ZoneCounts map[string]Count `json:"zone_counts"`
	GridCounts map[string]Count `json:"grid_counts"`
	TotalCount int              `json:"total_count"`
	Meta       Meta             `json:"meta"`
	Images     *[]string        `json:"images,omitempty"`
}

func (r Result) MarshalJSON() ([]byte, error) {
	out := resultJSON{
		Timestamp:  r.Timestamp.UTC().Format(time.RFC3339),
		ZoneCounts: r.ZoneCounts,
		GridCounts: r.GridCounts,
		TotalCount: r.TotalCount,
		Meta:       r.Meta,
	}
	if r.imagesRequested {
		images := r.Images
		if images == nil {
			images = []string{}
		}
		out.Images = &images
	}
	return json.Marshal(out)
}

func (r *Result) UnmarshalJSON(data []byte) error {
	var in resultJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	ts, err := time.Parse(time.RFC3339, in.Timestamp)
	if err != nil {
		return err
	}
	*r = Result{
		Timestamp:  ts,
		ZoneCounts: in.ZoneCounts,
		GridCounts: in.GridCounts,
		TotalCount: in.TotalCount,
		Meta:       in.Meta,
	}
	if in.Images != nil {
		r.Images = *in.Images
		r.imagesRequested = true
	}
	return nil
}
