// Package config provides configuration management for the crow counter
// service.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/kai5263499/crow-counter/internal/detector"
	"github.com/kai5263499/crow-counter/internal/grid"
	"github.com/kai5263499/crow-counter/internal/motion"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "CROWCOUNT_"

// Config holds the application configuration with thread-safe access.
type Config struct {
	Server      ServerConfig    `yaml:"server"`
	Profiling   ProfilingConfig `yaml:"profiling"`
	Log         LogConfig       `yaml:"log"`
	Media       MediaConfig     `yaml:"media"`
	Analysis    AnalysisConfig  `yaml:"analysis"`
	Motion      motion.Config   `yaml:"motion"`
	Detector    detector.Config `yaml:"detector"`
	Output      OutputConfig    `yaml:"output"`
	Jobs        JobsConfig      `yaml:"jobs"`
	mu          sync.RWMutex
	subscribers []func(Snapshot)
}

// Snapshot is a read-only copy of the current configuration.
type Snapshot struct {
	Server    ServerConfig    `yaml:"server" json:"server"`
	Profiling ProfilingConfig `yaml:"profiling" json:"profiling"`
	Log       LogConfig       `yaml:"log" json:"log"`
	Media     MediaConfig     `yaml:"media" json:"media"`
	Analysis  AnalysisConfig  `yaml:"analysis" json:"analysis"`
	Motion    motion.Config   `yaml:"motion" json:"motion"`
	Detector  detector.Config `yaml:"detector" json:"detector"`
	Output    OutputConfig    `yaml:"output" json:"output"`
	Jobs      JobsConfig      `yaml:"jobs" json:"jobs"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host" json:"host"`
	Port int    `yaml:"port" json:"port"`
}

// ProfilingConfig controls the pprof/fgprof listener. An empty Addr
// disables it.
type ProfilingConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

// LogConfig sets the global log level.
type LogConfig struct {
	Level string `yaml:"level" json:"level"`
}

// MediaConfig restricts which files may be analysed.
type MediaConfig struct {
	Root string `yaml:"root" json:"root"`
}

// AnalysisConfig holds defaults applied to requests that leave them out.
type AnalysisConfig struct {
	MaxFrames  int       `yaml:"max_frames" json:"max_frames"`
	SampleRate int       `yaml:"sample_rate" json:"sample_rate"`
	MinArea    float64   `yaml:"min_area" json:"min_area"`
	Grid       grid.Spec `yaml:"grid" json:"grid"`
}

// OutputConfig controls where annotated frames go.
type OutputConfig struct {
	Dir      string `yaml:"dir" json:"dir"`
	MaxWidth int    `yaml:"max_width" json:"max_width"`
}

// JobsConfig sizes the background job runner.
type JobsConfig struct {
	Workers          int  `yaml:"workers" json:"workers"`
	QueueSize        int  `yaml:"queue_size" json:"queue_size"`
	FallbackToMotion bool `yaml:"fallback_to_motion" json:"fallback_to_motion"`
	RetentionMinutes int  `yaml:"retention_minutes" json:"retention_minutes"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{
		Motion:   motion.DefaultConfig(),
		Detector: detector.DefaultConfig(),
	}
	cfg.setDefaults()
	return cfg
}

// Load reads configuration from a YAML file and applies env var overrides.
// Fields missing from the file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	// Apply environment variable overrides
	cfg.applyEnvOverrides()
	// Set defaults for any missing config values
	cfg.setDefaults()

	return cfg, nil
}

func env(name string) string {
	return strings.TrimSpace(os.Getenv(EnvPrefix + name))
}

func envInt(name string, dst *int) {
	if v := env(name); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			*dst = i
		}
	}
}

func envFloat(name string, dst *float64) {
	if v := env(name); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func envBool(name string, dst *bool) {
	if v := env(name); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func envString(name string, dst *string) {
	if v := env(name); v != "" {
		*dst = v
	}
}

func (c *Config) applyEnvOverrides() {
	// Server
	envString("HOST", &c.Server.Host)
	envInt("PORT", &c.Server.Port)
	envString("PROFILING_ADDR", &c.Profiling.Addr)
	envString("LOG_LEVEL", &c.Log.Level)

	// Inputs and outputs
	envString("MEDIA_ROOT", &c.Media.Root)
	envString("OUTPUT_DIR", &c.Output.Dir)

	// Analysis defaults
	envInt("MAX_FRAMES", &c.Analysis.MaxFrames)
	envInt("SAMPLE_RATE", &c.Analysis.SampleRate)
	envFloat("MIN_AREA", &c.Analysis.MinArea)

	// Detector
	envString("MODEL_PATH", &c.Detector.ModelPath)
	envString("NAMES_PATH", &c.Detector.NamesPath)
	envString("MODEL_LAYOUT", &c.Detector.Layout)

	// Jobs
	envInt("WORKERS", &c.Jobs.Workers)
	envBool("FALLBACK_TO_MOTION", &c.Jobs.FallbackToMotion)
}

func (c *Config) setDefaults() {
	if c.Server.Port <= 0 {
		c.Server.Port = 8080
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Media.Root == "" {
		c.Media.Root = "uploads"
	}
	if c.Analysis.MaxFrames <= 0 {
		c.Analysis.MaxFrames = 1000
	}
	if c.Analysis.SampleRate <= 0 {
		c.Analysis.SampleRate = 3
	}
	if c.Analysis.MinArea <= 0 {
		c.Analysis.MinArea = 400
	}
	c.Analysis.Grid = c.Analysis.Grid.Normalize()
	c.Motion = c.Motion.Normalize()
	c.Detector = c.Detector.Normalize()
	if c.Output.Dir == "" {
		c.Output.Dir = c.Media.Root
	}
	if c.Output.MaxWidth < 0 {
		c.Output.MaxWidth = 0
	}
	if c.Jobs.Workers <= 0 {
		c.Jobs.Workers = 2
	}
	if c.Jobs.QueueSize <= 0 {
		c.Jobs.QueueSize = 64
	}
	if c.Jobs.RetentionMinutes <= 0 {
		c.Jobs.RetentionMinutes = 60
	}
}

// Addr is the listen address for the API server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Update atomically updates the configuration. Defaults are re-applied so an
// updater cannot leave a field invalid.
func (c *Config) Update(updater func(*Config)) {
	c.mu.Lock()
	updater(c)
	c.setDefaults()
	snap := c.snapshot()
	subs := append([]func(Snapshot){}, c.subscribers...)
	c.mu.Unlock()

	for _, callback := range subs {
		go callback(snap)
	}
}

// Get safely retrieves a snapshot of the config.
func (c *Config) Get() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot()
}

func (c *Config) snapshot() Snapshot {
	return Snapshot{
		Server:    c.Server,
		Profiling: c.Profiling,
		Log:       c.Log,
		Media:     c.Media,
		Analysis:  c.Analysis,
		Motion:    c.Motion,
		Detector:  c.Detector,
		Output:    c.Output,
		Jobs:      c.Jobs,
	}
}

// Subscribe registers a callback for config changes.
func (c *Config) Subscribe(callback func(Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribers = append(c.subscribers, callback)
}

// Save writes the current configuration to a file.
func (c *Config) Save(path string) error {
	c.mu.RLock()
	data, err := yaml.Marshal(c.snapshot())
	c.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
