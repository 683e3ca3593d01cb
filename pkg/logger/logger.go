package logger

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls optional log sinks.
type Options struct {
	// File, when set, receives a copy of every record, rotated by size.
	File string
}

// Setup configures the global logger based on the environment.
// It returns the logger instance, but also sets it as the default global logger.
func Setup(env string, opts Options) *slog.Logger {
	var out io.Writer = os.Stdout
	if opts.File != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    20, // MB
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		})
	}

	logger := slog.New(NewHandler(env, out))
	slog.SetDefault(logger)

	return logger
}

// NewHandler returns JSON output in production and text elsewhere.
func NewHandler(env string, w io.Writer) slog.Handler {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if env == "production" {
		// JSON for machine parsing
		return slog.NewJSONHandler(w, opts)
	}
	// Text for human readability in development
	opts.Level = slog.LevelDebug
	return slog.NewTextHandler(w, opts)
}
