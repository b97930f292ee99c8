// Package logging configures zerolog for the availability loader and its
// tools. Every package derives a component logger from the global one, so a
// single Setup call decides level, format and destination for all of them.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	LevelDebug    LogLevel = "debug"
	LevelInfo     LogLevel = "info"
	LevelWarn     LogLevel = "warn"
	LevelError    LogLevel = "error"
	LevelDisabled LogLevel = "disabled"
)

// Component names, attached to every line as the "component" field.
const (
	ComponentLoader = "availability-loader"
	ComponentClient = "availability-client"
	ComponentHealth = "endpoint-health"
	ComponentBatch  = "batch-render"
	ComponentCLI    = "availability-render"
)

// Field names shared by all components so one page load can be followed
// across loader, client and CLI output.
const (
	FieldComponent  = "component"
	FieldLoadID     = "load_id"
	FieldAttempt    = "attempt"
	FieldErrorClass = "error_class"
	FieldRecordID   = "record_id"
)

// Config holds logger configuration.
type Config struct {
	Level LogLevel

	// Pretty switches from JSON lines to console output.
	Pretty bool

	// Output defaults to os.Stderr so page HTML on stdout stays clean.
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Output: os.Stderr,
	}
}

// ParseLevel validates a user-supplied level name. "warning", "off" and
// "none" are accepted as aliases.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	case "disabled", "off", "none":
		return LevelDisabled, nil
	}
	return "", fmt.Errorf("unknown log level %q", s)
}

// Setup configures the global zerolog logger and returns it.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(zerologLevel(cfg.Level))

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.TimeOnly}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// zerologLevel maps a level onto zerolog. Unknown names fall back to info.
func zerologLevel(level LogLevel) zerolog.Level {
	parsed, err := ParseLevel(string(level))
	if err != nil {
		return zerolog.InfoLevel
	}
	switch parsed {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	case LevelDisabled:
		return zerolog.Disabled
	}
	return zerolog.InfoLevel
}

// NewLogger derives a component logger from the global logger.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str(FieldComponent, component).Logger()
}

// ForLoad tags logger with the correlation id of one page load.
func ForLoad(logger zerolog.Logger, loadID string) zerolog.Logger {
	return logger.With().Str(FieldLoadID, loadID).Logger()
}

// Level guidelines
//
// Debug: request URL and id count, records per response, skipped holdings,
// pages without placeholders.
//
// Info: availability loaded (attempts, placeholders rendered), page written,
// batch summary.
//
// Warn: failed attempts that will be retried, placeholders without record
// ids, health tracker write failures, formatter panics.
//
// Error: retry bound exhausted, endpoint unhealthy, configuration errors.
//
// Common fields besides the ones above: ids, status, consecutive_failures.
