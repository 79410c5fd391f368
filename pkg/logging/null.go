package logging

import "context"

// NullLogger discards everything. The engine and scheduler fall back to it
// when no sink is configured.
type NullLogger struct{}

// NewNullLogger creates a new null logger
func NewNullLogger() *NullLogger {
	return &NullLogger{}
}

func (*NullLogger) Debug(context.Context, string, Fields) {}
func (*NullLogger) Info(context.Context, string, Fields) {}
func (*NullLogger) Warn(context.Context, string, Fields) {}
func (*NullLogger) Error(context.Context, string, error, Fields) {}

// WithFields returns the same null logger
func (l *NullLogger) WithFields(Fields) Logger { return l }

func (*NullLogger) Close() error { return nil }
