// Package logger configures log/slog for the server and the board client.
// The server logs JSON with source locations for aggregation; the interactive client can
// switch to text so its output stays readable next to the printed board.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Format selects the slog handler.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Setup initializes the global slog logger with JSON output and source location on stdout.
func Setup(level slog.Level) {
	SetupWith(os.Stdout, FormatJSON, level)
}

// SetupWith installs a global logger writing to w in the given format.
// Unknown formats fall back to JSON.
func SetupWith(w io.Writer, format Format, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{
		AddSource: format != FormatText,
		Level:     level,
	}

	var handler slog.Handler
	if format == FormatText {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	l := slog.New(handler)
	slog.SetDefault(l)
	return l
}

// ParseLevel converts a string log level to slog.Level.
// Valid values: "debug", "info", "warn", "error".
// Unrecognized values default to info level.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseFormat converts "text" or "json" to a Format; anything else is JSON.
func ParseFormat(format string) Format {
	if strings.EqualFold(format, string(FormatText)) {
		return FormatText
	}
	return FormatJSON
}
