// Package logging configures the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Init configures the global slog logger.
// In production it uses JSON output for log aggregation; otherwise the
// human-readable text handler. level is one of debug, info, warn, error.
func Init(env, level string) *slog.Logger {
	return InitWriter(os.Stdout, env, level)
}

// InitWriter is Init with an explicit destination.
func InitWriter(w io.Writer, env, level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if strings.EqualFold(env, "production") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// ParseLevel maps a level name to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
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

// WithSession returns a logger scoped to one consultation.
func WithSession(logger *slog.Logger, sessionID string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With("session_id", sessionID)
}
