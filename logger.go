package qpgo

import (
	"log/slog"
	"os"
)

// Logger defines the interface qpgo uses for structured logging.
// The framework logs priority registration, RTC dispatch panics it recovers
// from, and timer rearm decisions using this interface, so host applications
// control how framework diagnostics appear.
//
// The interface uses variadic key-value pairs:
//
//	logger.Debug("armed time event", "ao", ao.Name(), "deadline", deadline)
//
// This is compatible with slog, logrus, zap, and similar structured loggers.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	Debug(msg string, args ...any)
}

// SlogLogger adapts a *slog.Logger to the Logger interface. It is the
// reference implementation and the default used when a Framework is
// constructed without an explicit WithLogger option.
type SlogLogger struct {
	logger *slog.Logger
}

// NewSlogLogger wraps logger, or slog.Default() if logger is nil.
func NewSlogLogger(logger *slog.Logger) *SlogLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogLogger{logger: logger}
}

func (l *SlogLogger) Info(msg string, args ...any)  { l.logger.Info(msg, args...) }
func (l *SlogLogger) Error(msg string, args ...any) { l.logger.Error(msg, args...) }
func (l *SlogLogger) Warn(msg string, args ...any)  { l.logger.Warn(msg, args...) }
func (l *SlogLogger) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }

// newDefaultLogger builds the SlogLogger a Framework installs when no
// WithLogger option is given, with its level driven by Config.Debug: Debug
// enables Debug-level output (active object registration, timer rearms),
// Info suppresses it.
func newDefaultLogger(debug bool) *SlogLogger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return NewSlogLogger(slog.New(handler))
}

// noopLogger discards everything. Used when WithLogger(nil) is passed.
type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Debug(string, ...any) {}
