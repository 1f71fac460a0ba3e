// Package health reports whether the service can actually analyse media:
// the media root is readable, snapshots can be written and a detector model
// is present.
package health

import (
	"fmt"
	"os"
	"time"

	"github.com/kai5263499/crow-counter/internal/detector"
)

// CheckResult contains the results of health checks
type CheckResult struct {
	MediaReadable     bool   `json:"media_readable"`
	MediaError        string `json:"media_error,omitempty"`
	OutputWritable    bool   `json:"output_writable"`
	OutputError       string `json:"output_error,omitempty"`
	DetectorAvailable bool   `json:"detector_available"`
	DetectorError     string `json:"detector_error,omitempty"`
	CheckTime         int64  `json:"check_time_ms"`
	LastChecked       string `json:"last_checked"`
}

// Ready reports whether motion analysis can run. Detector mode additionally
// needs DetectorAvailable.
func (r CheckResult) Ready() bool {
	return r.MediaReadable && r.OutputWritable
}

// Target is what gets checked.
type Target struct {
	MediaRoot string
	OutputDir string
	Detector  detector.Config
}

// Checker inspects the filesystem side of the service.
type Checker struct {
	now func() time.Time
}

// NewChecker creates a new health checker
func NewChecker() *Checker {
	return &Checker{now: time.Now}
}

// Check runs every check against t.
func (c *Checker) Check(t Target) CheckResult {
	start := c.now()
	result := CheckResult{
		LastChecked: start.Format(time.RFC3339),
	}

	result.MediaReadable, result.MediaError = readableDir(t.MediaRoot)
	result.OutputWritable, result.OutputError = writableDir(t.OutputDir)
	result.DetectorAvailable, result.DetectorError = modelFiles(t.Detector)

	result.CheckTime = c.now().Sub(start).Milliseconds()
	return result
}

func readableDir(dir string) (bool, string) {
	if _, err := os.ReadDir(dir); err != nil {
		return false, fmt.Sprintf("Media root unreadable: %v", err)
	}
	return true, ""
}

// writableDir creates dir if needed and checks it with a temp file.
func writableDir(dir string) (bool, string) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, fmt.Sprintf("Output dir unavailable: %v", err)
	}
	f, err := os.CreateTemp(dir, ".health-*")
	if err != nil {
		return false, fmt.Sprintf("Output dir not writable: %v", err)
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return true, ""
}

// modelFiles only checks that the files exist; loading the network is left
// to the analysis itself.
func modelFiles(cfg detector.Config) (bool, string) {
	if cfg.ModelPath == "" {
		return false, "No model configured"
	}
	for _, p := range []string{cfg.ModelPath, cfg.ConfigPath, cfg.NamesPath} {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			return false, fmt.Sprintf("Model file missing: %v", err)
		}
	}
	return true, ""
}
