// Package logging configures structured zerolog output for branchdesk components.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"

	// LevelDisabled silences all output (used by the terminal list view,
	// which owns the screen).
	LevelDisabled LogLevel = "disabled"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel `yaml:"level"`

	// Pretty enables human-readable console output instead of JSON.
	Pretty bool `yaml:"pretty"`

	// Output is the writer logs go to (default: os.Stderr).
	Output io.Writer `yaml:"-"`
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger and returns it.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}

	logger := zerolog.New(out).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

var levels = map[string]zerolog.Level{
	"debug":    zerolog.DebugLevel,
	"info":     zerolog.InfoLevel,
	"":         zerolog.InfoLevel,
	"warn":     zerolog.WarnLevel,
	"warning":  zerolog.WarnLevel,
	"error":    zerolog.ErrorLevel,
	"disabled": zerolog.Disabled,
	"off":      zerolog.Disabled,
	"none":     zerolog.Disabled,
}

func normalize(level LogLevel) string {
	return strings.ToLower(strings.TrimSpace(string(level)))
}

// ParseLevel converts a LogLevel to a zerolog.Level. Unknown values map to info.
func ParseLevel(level LogLevel) zerolog.Level {
	if l, ok := levels[normalize(level)]; ok {
		return l
	}
	return zerolog.InfoLevel
}

// Valid reports whether ParseLevel knows the level. Empty counts as info.
func (l LogLevel) Valid() bool {
	_, ok := levels[normalize(l)]
	return ok
}

// Redact masks a secret for display. Empty stays empty so "unset" remains
// visible.
func Redact(secret string) string {
	if secret == "" {
		return ""
	}
	return "********"
}

// NewLogger creates a child of the global logger tagged with a component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Level guidelines used across the repository:
//
// Debug: request flow, cache hits and revalidations, fetch keys, debounce commits,
//        discarded stale responses, envelope shape substitutions.
// Info:  login/logout, CLI lifecycle, metrics server start.
// Warn:  retries, cache backend failures (request continues uncached),
//        401 handling, failed list refetches (previous page stays visible).
// Error: exhausted retries, token store failures, configuration errors.
//
// Common fields: component, method, endpoint, status, error_class, fetch_key,
// request_id, page, attempt, ttl.
