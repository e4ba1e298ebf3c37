package app

import (
	"io"
	"log/slog"
)

// SetupLogging installs a text handler at level as the default logger.
func SetupLogging(w io.Writer, level slog.Level) {
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}
