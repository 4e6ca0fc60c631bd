// Package logging builds the slog loggers used across the compiler.
// Components attach themselves with a "component" attribute (compiler,
// dx, dx-cache) so interleaved records stay attributable.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New creates a logger writing to stderr; stdout is reserved for the
// compiled IR. format is "text" (human-readable) or "json"
// (structured).
func New(level slog.Level, format string) *slog.Logger {
	return NewWithWriter(level, format, os.Stderr)
}

// NewWithWriter creates a logger writing to the given writer.
func NewWithWriter(level slog.Level, format string, w io.Writer) *slog.Logger {
	return slog.New(handlerFor(format, w, &slog.HandlerOptions{Level: level}))
}

func handlerFor(format string, w io.Writer, opts *slog.HandlerOptions) slog.Handler {
	if strings.EqualFold(format, "json") {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// LevelForVerbosity maps the CLI -v count to a slog level: 0 warns and
// errors only, 1 adds info, 2 and above adds debug.
func LevelForVerbosity(v int) slog.Level {
	switch {
	case v <= 0:
		return slog.LevelWarn
	case v == 1:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

var levelNames = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// ParseLevel converts a config-file log level to slog.Level.
// Unrecognized values fall back to info.
func ParseLevel(s string) slog.Level {
	if level, ok := levelNames[strings.ToLower(s)]; ok {
		return level
	}
	return slog.LevelInfo
}
