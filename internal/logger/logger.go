// Package logger provides structured logging configuration using zerolog.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// TimeFormat is used by the console writer.
const TimeFormat = "2006/01/02 15:04:05"

// Init initializes the global logger on stdout with the specified level.
func Init(level string) {
	InitTo(os.Stdout, level)
}

// InitTo is Init with an explicit destination. The CLI logs to stderr so
// stdout stays clean for JSON output.
func InitTo(out io.Writer, level string) {
	// Use console writer for human-readable output
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: TimeFormat}).
		With().
		Timestamp().
		Logger()

	SetLevel(level)
}

// SetLevel changes the global level without replacing the logger, so it is
// safe to call while other goroutines are logging.
func SetLevel(level string) {
	zerolog.SetGlobalLevel(ParseLevel(level))
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}
