package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New initializes a new slog logger and sets it as the default.
// It reads the LOG_FORMAT environment variable to determine the output format.
// Defaults to "text" for development, can be set to "json" for production.
// LOG_LEVEL selects the minimum level and defaults to debug.
func New() *slog.Logger {
	logger := NewWith(os.Stdout, os.Getenv("LOG_FORMAT"), os.Getenv("LOG_LEVEL"))
	slog.SetDefault(logger)
	return logger
}

// NewWith builds a logger writing to w without touching the default.
func NewWith(w io.Writer, format, level string) *slog.Logger {
	var handler slog.Handler
	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: ParseLevel(level),
		})
	default:
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{
			Level:     ParseLevel(level),
			AddSource: true, // Adds source file and line number
		})
	}
	return slog.New(handler)
}

// ParseLevel maps a LOG_LEVEL value to a slog level. Unknown values mean
// debug.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelDebug
	}
}
