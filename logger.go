package clusterdb

import "log/slog"

// Logger receives table events: index declarations and drops, restores
// (Info), rolled back writes (Warn), and detected index corruption or
// failed undo steps (Error). Args are alternating key/value pairs.
//
// *slog.Logger satisfies Logger; package logger adapts zap and logrus.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	Info(msg string, args ...any)
}

var (
	_ Logger = (*slog.Logger)(nil)
	_ Logger = DiscardLogger{}
)

// DiscardLogger drops every event. It is the default.
type DiscardLogger struct{}

func (DiscardLogger) Error(string, ...any) {}

func (DiscardLogger) Warn(string, ...any) {}

func (DiscardLogger) Info(string, ...any) {}
