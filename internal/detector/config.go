package detector

import "os"

// ModelPathEnv overrides the default model location.
const ModelPathEnv = "CROWCOUNT_MODEL_PATH"

// Config locates and tunes the detection model.
type Config struct {
	ModelPath    string  `yaml:"model_path" json:"model_path"`
	ConfigPath   string  `yaml:"config_path" json:"config_path,omitempty"`
	NamesPath    string  `yaml:"names_path" json:"names_path,omitempty"`
	Layout       string  `yaml:"layout" json:"layout"`
	InputSize    int     `yaml:"input_size" json:"input_size"`
	Confidence   float64 `yaml:"confidence" json:"confidence"`
	NMSThreshold float64 `yaml:"nms_threshold" json:"nms_threshold"`
	Backend      string  `yaml:"backend" json:"backend,omitempty"`
	Target       string  `yaml:"target" json:"target,omitempty"`
}

// DefaultConfig expects a YOLOv8 nano ONNX export next to the binary.
func DefaultConfig() Config {
	path := "models/yolov8n.onnx"
	if p := os.Getenv(ModelPathEnv); p != "" {
		path = p
	}
	return Config{
		ModelPath:    path,
		Layout:       string(LayoutAuto),
		InputSize:    640,
		Confidence:   0.25,
		NMSThreshold: 0.45,
	}
}

// Normalize fills unset fields from DefaultConfig.
func (c Config) Normalize() Config {
	d := DefaultConfig()
	if c.ModelPath == "" {
		c.ModelPath = d.ModelPath
	}
	if c.Layout == "" {
		c.Layout = d.Layout
	}
	if c.InputSize <= 0 {
		c.InputSize = d.InputSize
	}
	if c.Confidence <= 0 || c.Confidence > 1 {
		c.Confidence = d.Confidence
	}
	if c.NMSThreshold <= 0 || c.NMSThreshold > 1 {
		c.NMSThreshold = d.NMSThreshold
	}
	return c
}
