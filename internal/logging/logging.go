// Package logging sets up the process-wide structured logger.
package logging

import (
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
)

// Options controls the process-wide logger.
type Options struct {
	// Level is the minimum level to emit.
	Level slog.Level
	// Color enables ANSI colored output, typically only for interactive/dev runs.
	Color bool
}

// Setup installs a slog.Logger as the default logger and returns it.
//
// In color mode this uses tint's handler so local runs are readable; otherwise
// it falls back to slog's JSON handler, which is what a device's log collector
// expects.
func Setup(opts Options) *slog.Logger {
	var handler slog.Handler
	if opts.Color {
		handler = tint.NewHandler(os.Stderr, &tint.Options{
			Level:      opts.Level,
			TimeFormat: "15:04:05.000",
		})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: opts.Level,
		})
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
