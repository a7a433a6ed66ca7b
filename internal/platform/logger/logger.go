package logger

import (
	"log/slog"
	"os"
)

// New returns the process-wide structured logger. format is "json" for
// machine-readable output; anything else gets the text handler.
func New(format string) *slog.Logger {
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, nil)
	} else {
		handler = slog.NewTextHandler(os.Stdout, nil)
	}
	return slog.New(handler)
}
