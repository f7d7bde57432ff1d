package cbanalytics

import (
	"log/slog"

	"github.com/couchbase/gocbanalytics/internal/slogadapter"
)

// Logger is the logging sink diagnostic messages are written to. It takes
// no dependency on any particular logging library: callers that already
// have a log/slog.Logger, a zap.Logger, or anything else can adapt it
// with a few lines. NewDefaultLogger and NewSlogLogger cover the common
// cases.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// NewDefaultLogger returns a Logger writing human-readable, tinted output
// to stderr at the given level.
func NewDefaultLogger(level slog.Level) Logger {
	return slogadapter.NewDefault(level)
}

// NewSlogLogger returns a Logger delegating to an existing *slog.Logger,
// so the client's diagnostics flow through the application's own handler
// chain.
func NewSlogLogger(sl *slog.Logger) Logger {
	return slogadapter.New(sl)
}

// noopLogger discards everything. Used when a caller does not supply a
// Logger.
type noopLogger struct{}

func (noopLogger) Debugf(string, ...interface{}) {}
func (noopLogger) Infof(string, ...interface{})  {}
func (noopLogger) Warnf(string, ...interface{})  {}
func (noopLogger) Errorf(string, ...interface{}) {}
