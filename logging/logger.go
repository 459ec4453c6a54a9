// Package logging provides a tiny abstraction over slog so downstream code
// can depend on a minimal interface (Logger) while callers plug any
// structured logger. It also offers GraphLogger, a contextual wrapper that
// attaches execution identity (graph, conversation, run) to every entry.
package logging

import (
	"context"
	"log/slog"
	"time"
)

// Logger defines the minimal logging interface used throughout agentgraph.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// NoOpLogger discards all log messages. Useful for tests or when logging is
// disabled.
type NoOpLogger struct{}

// Debug implements Logger.
func (NoOpLogger) Debug(string, ...any) {}

// Info implements Logger.
func (NoOpLogger) Info(string, ...any) {}

// Warn implements Logger.
func (NoOpLogger) Warn(string, ...any) {}

// Error implements Logger.
func (NoOpLogger) Error(string, ...any) {}

// SlogAdapter wraps *slog.Logger to implement the Logger interface.
type SlogAdapter struct {
	*slog.Logger
}

// NewSlogAdapter creates a Logger from *slog.Logger.
func NewSlogAdapter(logger *slog.Logger) Logger { return &SlogAdapter{Logger: logger} }

// NewDefaultSlogLogger creates a Logger using slog.Default().
func NewDefaultSlogLogger() Logger { return NewSlogAdapter(slog.Default()) }

// Debug implements Logger.
func (s *SlogAdapter) Debug(msg string, args ...any) { s.Logger.Debug(msg, args...) }

// Info implements Logger.
func (s *SlogAdapter) Info(msg string, args ...any) { s.Logger.Info(msg, args...) }

// Warn implements Logger.
func (s *SlogAdapter) Warn(msg string, args ...any) { s.Logger.Warn(msg, args...) }

// Error implements Logger.
func (s *SlogAdapter) Error(msg string, args ...any) { s.Logger.Error(msg, args...) }

// GraphLogger wraps a Logger adding execution-identity attributes to every
// entry. Cheap to copy via the With* methods.
type GraphLogger struct {
	base  Logger
	attrs []any
}

// NewGraphLogger wraps base. A nil base falls back to NoOpLogger.
func NewGraphLogger(base Logger) *GraphLogger {
	if base == nil {
		base = NoOpLogger{}
	}
	return &GraphLogger{base: base}
}

func (l *GraphLogger) with(args ...any) *GraphLogger {
	attrs := make([]any, 0, len(l.attrs)+len(args))
	attrs = append(attrs, l.attrs...)
	attrs = append(attrs, args...)
	return &GraphLogger{base: l.base, attrs: attrs}
}

// WithComponent sets the logical component (engine, session, resolver, ...).
func (l *GraphLogger) WithComponent(c string) *GraphLogger { return l.with("component", c) }

// WithGraph attaches the graph identifier.
func (l *GraphLogger) WithGraph(graphID string) *GraphLogger { return l.with("graph_id", graphID) }

// WithConversation attaches conversation and run identifiers.
func (l *GraphLogger) WithConversation(conversationID, runID string) *GraphLogger {
	return l.with("conversation_id", conversationID, "run_id", runID)
}

// Debug implements Logger.
func (l *GraphLogger) Debug(msg string, args ...any) { l.base.Debug(msg, append(l.attrs, args...)...) }

// Info implements Logger.
func (l *GraphLogger) Info(msg string, args ...any) { l.base.Info(msg, append(l.attrs, args...)...) }

// Warn implements Logger.
func (l *GraphLogger) Warn(msg string, args ...any) { l.base.Warn(msg, append(l.attrs, args...)...) }

// Error implements Logger.
func (l *GraphLogger) Error(msg string, args ...any) { l.base.Error(msg, append(l.attrs, args...)...) }

// LogRun records aggregate run metrics after a graph execution finishes.
func (l *GraphLogger) LogRun(ctx context.Context, iterations, transfers int, dur time.Duration, success bool, err error) {
	args := []any{"iterations", iterations, "transfers", transfers, "duration_ms", dur.Milliseconds(), "success", success}
	if err != nil {
		args = append(args, "error", err.Error())
	}
	if success {
		l.Info("run completed", args...)
		return
	}
	l.Error("run failed", args...)
}
