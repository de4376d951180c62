// Package logging builds the slog.Logger used by the census client.
package logging

import (
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// Formats accepted by New.
const (
	FormatPretty = "pretty"
	FormatJSON   = "json"
	FormatText   = "text"
)

// ParseLevel maps "debug", "info", "warn" and "error" to a slog.Level.
// Anything else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewHandler returns a handler writing to out in the given format:
// colorized human-readable lines for "pretty" (the default), one JSON object
// per line for "json", and logfmt-style text for "text".
func NewHandler(out io.Writer, format string, level slog.Level) slog.Handler {
	switch strings.ToLower(format) {
	case FormatJSON:
		return slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})
	case FormatText:
		return slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})
	default:
		return tint.NewHandler(out, &tint.Options{
			Level:      level,
			TimeFormat: time.TimeOnly,
		})
	}
}

// New returns a logger built from NewHandler.
func New(out io.Writer, format, level string) *slog.Logger {
	return slog.New(NewHandler(out, format, ParseLevel(level)))
}
