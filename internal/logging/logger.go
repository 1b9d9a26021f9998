package logging

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger creates a structured logger appropriate for the environment.
// Logs go to stderr so command output on stdout stays machine readable.
func NewLogger(env string) *slog.Logger {
	return NewLoggerTo(env, os.Stderr)
}

// NewLoggerTo is NewLogger with an explicit destination.
// Production uses JSON format, development uses human-readable text.
func NewLoggerTo(env string, w io.Writer) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if env == "production" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}
