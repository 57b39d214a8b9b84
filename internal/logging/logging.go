// Package logging configures structured logging for the gateway and masks
// credentials before they reach logs or callers.
//
// Logs always go to stderr: with the stdio transport, stdout carries the
// protocol stream.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// Level is the process-wide log level; Setup installs a handler bound to it
// so it can be changed at runtime.
var Level = new(slog.LevelVar)

// Setup installs a JSON slog handler on w (stderr when nil) as the default logger.
func Setup(w io.Writer, level slog.Level) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	Level.Set(level)
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: Level})).
		With("component", "mcp-server")
	slog.SetDefault(logger)
	return logger
}
