package logger

import (
	"io"
	"log/slog"
)

// Interface is the structured logger every component receives. Arguments
// after msg are alternating keys and values.
type Interface interface {
	Debugw(msg string, keysAndValues ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Errorw(msg string, keysAndValues ...interface{})
	With(args ...any) Interface
	Named(name string) Interface
}

type slogAdapter struct {
	l *slog.Logger
}

// NewLogger wraps the process logger configured by Init.
func NewLogger() Interface {
	return FromSlog(Get())
}

func FromSlog(l *slog.Logger) Interface {
	return &slogAdapter{l: l}
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() Interface {
	return FromSlog(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func (a *slogAdapter) Debugw(msg string, keysAndValues ...interface{}) {
	a.l.Debug(msg, keysAndValues...)
}

func (a *slogAdapter) Infow(msg string, keysAndValues ...interface{}) {
	a.l.Info(msg, keysAndValues...)
}

func (a *slogAdapter) Warnw(msg string, keysAndValues ...interface{}) {
	a.l.Warn(msg, keysAndValues...)
}

func (a *slogAdapter) Errorw(msg string, keysAndValues ...interface{}) {
	a.l.Error(msg, keysAndValues...)
}

func (a *slogAdapter) With(args ...any) Interface {
	return FromSlog(a.l.With(args...))
}

// Named tags entries with logger=name.
func (a *slogAdapter) Named(name string) Interface {
	return FromSlog(a.l.With("logger", name))
}
