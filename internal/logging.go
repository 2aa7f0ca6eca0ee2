package internal

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewLogger builds the process logger from the configured level and format.
// Unknown levels fall back to info.
func NewLogger(w io.Writer, level, format string) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	var h slog.Handler
	if strings.EqualFold(format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h)
}

// InitLogging installs a stderr logger as the slog default and returns it.
func InitLogging(level, format string) *slog.Logger {
	l := NewLogger(os.Stderr, level, format)
	slog.SetDefault(l)
	return l
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
