// Package logging provides the structured logger every bridge component
// writes through. Output goes to stderr; stdout belongs to the MCP channel.
package logging

// file: internal/logging/logger.go

import (
	"context"
)

// Logger is the logging surface components depend on. Args are slog-style
// alternating key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)

	// WithContext picks up per-call values such as the request ID.
	WithContext(ctx context.Context) Logger
	// WithField returns a child logger that always carries key=value.
	WithField(key string, value any) Logger
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any)                 {}
func (nopLogger) Info(string, ...any)                  {}
func (nopLogger) Warn(string, ...any)                  {}
func (nopLogger) Error(string, ...any)                 {}
func (l nopLogger) WithContext(context.Context) Logger { return l }
func (l nopLogger) WithField(string, any) Logger       { return l }

// GetNoopLogger returns a logger that discards everything. Constructors
// fall back to it when handed a nil Logger.
func GetNoopLogger() Logger { return nopLogger{} }

// For tags logger with a component name, substituting the no-op logger
// for nil.
func For(logger Logger, component string) Logger {
	if logger == nil {
		return GetNoopLogger()
	}
	return logger.WithField("component", component)
}

var defaultLogger Logger = nopLogger{}

// SetDefaultLogger replaces the logger GetLogger derives from. Nil is ignored.
func SetDefaultLogger(logger Logger) {
	if logger != nil {
		defaultLogger = logger
	}
}

// GetLogger returns the default logger tagged with component name.
func GetLogger(name string) Logger {
	return For(defaultLogger, name)
}
