//go:build opencv

package detector

import (
	"fmt"
	"image"
	"os"
	"sync"

	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"
)

// classOffset separates classes for suppression so that overlapping boxes
// of different classes never suppress each other.
const classOffset = 8192

// DNN runs a model through OpenCV's dnn module.
type DNN struct {
	cfg      Config
	layout   Layout
	net      gocv.Net
	outNames []string
	classes  Table
	mu       sync.Mutex
}

// Load reads the model described by cfg. A missing model file, an empty
// network or an unknown layout all report ErrUnavailable.
func Load(cfg Config) (*DNN, error) {
	cfg = cfg.Normalize()

	layout, err := ParseLayout(cfg.Layout)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("%w: model %s: %v", ErrUnavailable, cfg.ModelPath, err)
	}
	if cfg.ConfigPath != "" {
		if _, err := os.Stat(cfg.ConfigPath); err != nil {
			return nil, fmt.Errorf("%w: model config %s: %v", ErrUnavailable, cfg.ConfigPath, err)
		}
	}

	net := gocv.ReadNet(cfg.ModelPath, cfg.ConfigPath)
	if net.Empty() {
		net.Close()
		return nil, fmt.Errorf("%w: unable to load network from %s", ErrUnavailable, cfg.ModelPath)
	}
	if cfg.Backend != "" {
		if err := net.SetPreferableBackend(gocv.ParseNetBackend(cfg.Backend)); err != nil {
			log.Warn().Err(err).Str("backend", cfg.Backend).Msg("Preferred DNN backend rejected")
		}
	}
	if cfg.Target != "" {
		if err := net.SetPreferableTarget(gocv.ParseNetTarget(cfg.Target)); err != nil {
			log.Warn().Err(err).Str("target", cfg.Target).Msg("Preferred DNN target rejected")
		}
	}

	classes := COCO
	if cfg.NamesPath != "" {
		if classes, err = LoadNames(cfg.NamesPath); err != nil {
			net.Close()
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	} else if layout == LayoutSSD {
		classes = withBackground(COCO)
	}

	d := &DNN{
		cfg:      cfg,
		layout:   layout,
		net:      net,
		outNames: outputLayers(net),
		classes:  classes,
	}

	log.Info().
		Str("model", cfg.ModelPath).
		Str("layout", string(layout)).
		Int("input", cfg.InputSize).
		Int("classes", len(classes)).
		Strs("outputs", d.outNames).
		Msg("Object detector loaded")
	return d, nil
}

// outputLayers lists the unconnected output layers, which Darknet models
// have several of.
func outputLayers(net gocv.Net) []string {
	names := net.GetLayerNames()
	var out []string
	for _, idx := range net.GetUnconnectedOutLayers() {
		if idx > 0 && idx <= len(names) {
			out = append(out, names[idx-1])
		}
	}
	return out
}

// Classes returns the class table in use.
func (d *DNN) Classes() ClassNameResolver {
	return d.classes
}

// Detect runs one forward pass on frame and returns suppressed boxes in frame
// pixels.
func (d *DNN) Detect(frame gocv.Mat) ([]Box, error) {
	if frame.Empty() {
		return nil, fmt.Errorf("empty frame")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	size := image.Pt(d.cfg.InputSize, d.cfg.InputSize)
	scale, mean := 1.0/255.0, gocv.NewScalar(0, 0, 0, 0)
	if d.layout == LayoutSSD {
		scale, mean = 1.0/127.5, gocv.NewScalar(127.5, 127.5, 127.5, 0)
	}

	blob := gocv.BlobFromImage(frame, scale, size, mean, true, false)
	defer blob.Close()
	d.net.SetInput(blob, "")

	var outs []gocv.Mat
	if len(d.outNames) > 1 {
		outs = d.net.ForwardLayers(d.outNames)
	} else {
		outs = []gocv.Mat{d.net.Forward("")}
	}
	defer func() {
		for _, o := range outs {
			o.Close()
		}
	}()

	g := Geometry{Frame: image.Pt(frame.Cols(), frame.Rows()), Input: size}
	var (
		boxes  []Box
		layout = d.layout
	)
	for _, o := range outs {
		data, err := o.DataPtrFloat32()
		if err != nil {
			return nil, fmt.Errorf("read model output: %w", err)
		}
		shape := o.Size()
		if layout == LayoutAuto {
			if layout, err = DetectLayout(shape); err != nil {
				return nil, err
			}
		}
		found, err := Decode(Output{Data: data, Shape: shape}, layout, g, float32(d.cfg.Confidence))
		if err != nil {
			return nil, err
		}
		boxes = append(boxes, found...)
	}

	// SSD graphs end in their own suppression stage.
	if layout == LayoutSSD {
		return boxes, nil
	}
	return d.suppress(boxes), nil
}

func (d *DNN) suppress(boxes []Box) []Box {
	if len(boxes) == 0 {
		return nil
	}
	rects := make([]image.Rectangle, len(boxes))
	scores := make([]float32, len(boxes))
	for i, b := range boxes {
		off := image.Pt(b.ClassID*classOffset, 0)
		rects[i] = b.Rect().Add(off)
		scores[i] = b.Score
	}

	idx := gocv.NMSBoxes(rects, scores, float32(d.cfg.Confidence), float32(d.cfg.NMSThreshold))
	kept := make([]Box, 0, len(idx))
	for _, i := range idx {
		kept = append(kept, boxes[i])
	}
	return kept
}

// Close releases the network.
func (d *DNN) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}
