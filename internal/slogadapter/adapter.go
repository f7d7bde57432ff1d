// Package slogadapter provides the default Logger implementation, built on
// log/slog the way this module's reference CLI wires up its logging: a
// slog.Logger backed by a tinted, human-readable handler on stderr.
package slogadapter

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// Adapter implements the core's Logger interface over a *slog.Logger.
// Messages are formatted with fmt.Sprintf before being handed to slog,
// matching the printf-style call sites this client's logging interface
// exposes, while still flowing through slog's leveling and handler chain.
type Adapter struct {
	sl *slog.Logger
}

// New wraps an existing *slog.Logger.
func New(sl *slog.Logger) *Adapter {
	return &Adapter{sl: sl}
}

// NewDefault builds the default Adapter: a tint-formatted handler writing
// to stderr at the given level.
func NewDefault(level slog.Level) *Adapter {
	h := tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.RFC3339,
	})
	return &Adapter{sl: slog.New(h)}
}

func (a *Adapter) Debugf(format string, args ...interface{}) {
	a.sl.Debug(fmt.Sprintf(format, args...))
}

func (a *Adapter) Infof(format string, args ...interface{}) {
	a.sl.Info(fmt.Sprintf(format, args...))
}

func (a *Adapter) Warnf(format string, args ...interface{}) {
	a.sl.Warn(fmt.Sprintf(format, args...))
}

func (a *Adapter) Errorf(format string, args ...interface{}) {
	a.sl.Error(fmt.Sprintf(format, args...))
}
