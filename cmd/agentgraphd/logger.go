package main

import (
	"log/slog"
	"os"

	"github.com/lmittmann/tint"

	"github.com/hupe1980/agentgraph/logging"
)

// newLogger builds a tinted stderr logger at the given level.
func newLogger(logLevel string) logging.Logger {
	return logging.NewSlogAdapter(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level: parseLogLevel(logLevel),
	})))
}

func parseLogLevel(levelStr string) slog.Level {
	switch levelStr {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
