package motion

// Config tunes the background-subtraction pipeline.
type Config struct {
	History          int     `yaml:"history" json:"history"`
	VarThreshold     float64 `yaml:"var_threshold" json:"var_threshold"`
	DetectShadows    bool    `yaml:"detect_shadows" json:"detect_shadows"`
	KernelSize       int     `yaml:"kernel_size" json:"kernel_size"`
	OpenIterations   int     `yaml:"open_iterations" json:"open_iterations"`
	DilateIterations int     `yaml:"dilate_iterations" json:"dilate_iterations"`
	MinArea          float64 `yaml:"min_area" json:"min_area"`
}

// DefaultConfig is MOG2 with a 500 frame
// history, variance threshold 25 and shadow detection, a 5x5 elliptical
// kernel opened once and dilated twice, 400 px² minimum blob area.
func DefaultConfig() Config {
	return Config{
		History:          500,
		VarThreshold:     25,
		DetectShadows:    true,
		KernelSize:       5,
		OpenIterations:   1,
		DilateIterations: 2,
		MinArea:          400,
	}
}

// Normalize fills non-positive fields from DefaultConfig. DetectShadows and
// zero iteration counts are taken as given.
func (c Config) Normalize() Config {
	d := DefaultConfig()
	if c.History <= 0 {
		c.History = d.History
	}
	if c.VarThreshold <= 0 {
		c.VarThreshold = d.VarThreshold
	}
	if c.KernelSize <= 0 {
		c.KernelSize = d.KernelSize
	}
	if c.OpenIterations < 0 {
		c.OpenIterations = d.OpenIterations
	}
	if c.DilateIterations < 0 {
		c.DilateIterations = d.DilateIterations
	}
	if c.MinArea <= 0 {
		c.MinArea = d.MinArea
	}
	return c
}
