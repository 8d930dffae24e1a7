// Package logging provides the structured logger shared by the server
// components. Messages take alternating key/value pairs:
//
//	logger.Info("item advanced", "item_id", id, "stage", stageID)
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger is a key/value structured logger.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a Logger writing human readable lines to stdout.
func NewLogger() *Logger {
	return New(os.Stdout, "DEV", "info")
}

// New creates a Logger for the environment: text lines in DEV, JSON
// everywhere else. Unknown levels fall back to info.
func New(w io.Writer, environment, level string) *Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	var h slog.Handler
	if strings.EqualFold(environment, "dev") {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	return &Logger{Logger: slog.New(h)}
}

// Named returns a child logger tagging every line with the component.
func (l *Logger) Named(component string) *Logger {
	return &Logger{Logger: l.Logger.With("component", component)}
}

// Discard returns a Logger that drops everything, for tests.
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
