package logger

import (
	"log/slog"
	"os"
)

// Setup builds the process-wide structured logger.
func Setup(level slog.Level) *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(handler)
}
