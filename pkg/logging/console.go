package logging

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"
)

// lineFormatter renders logrus entries in the same "<timestamp> -- <message>"
// layout as the log file
type lineFormatter struct{}

func (lineFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var err error
	fields := make(Fields, len(entry.Data))
	for k, v := range entry.Data {
		if k == logrus.ErrorKey {
			if e, ok := v.(error); ok {
				err = e
				continue
			}
		}
		fields[k] = v
	}

	return []byte(FormatLine(entry.Time, fromLogrusLevel(entry.Level), entry.Message, err, fields)), nil
}

// ConsoleLogger echoes log lines to a terminal through logrus
type ConsoleLogger struct {
	entry *logrus.Entry
}

// NewConsoleLogger creates a console logger writing to out
func NewConsoleLogger(out io.Writer, level Level) *ConsoleLogger {
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetFormatter(lineFormatter{})
	logger.SetLevel(toLogrusLevel(level))

	return &ConsoleLogger{entry: logrus.NewEntry(logger)}
}

// Debug logs a debug message
func (l *ConsoleLogger) Debug(ctx context.Context, msg string, fields Fields) {
	l.entry.WithContext(ctx).WithFields(logrus.Fields(fields)).Debug(msg)
}

// Info logs an info message
func (l *ConsoleLogger) Info(ctx context.Context, msg string, fields Fields) {
	l.entry.WithContext(ctx).WithFields(logrus.Fields(fields)).Info(msg)
}

// Warn logs a warning message
func (l *ConsoleLogger) Warn(ctx context.Context, msg string, fields Fields) {
	l.entry.WithContext(ctx).WithFields(logrus.Fields(fields)).Warn(msg)
}

// Error logs an error message
func (l *ConsoleLogger) Error(ctx context.Context, msg string, err error, fields Fields) {
	e := l.entry.WithContext(ctx).WithFields(logrus.Fields(fields))
	if err != nil {
		e = e.WithError(err)
	}
	e.Error(msg)
}

// WithFields returns a logger with additional fields
func (l *ConsoleLogger) WithFields(fields Fields) Logger {
	return &ConsoleLogger{entry: l.entry.WithFields(logrus.Fields(fields))}
}

// Close does nothing; the output belongs to the caller
func (l *ConsoleLogger) Close() error {
	return nil
}

func toLogrusLevel(level Level) logrus.Level {
	switch level {
	case DebugLevel:
		return logrus.DebugLevel
	case WarnLevel:
		return logrus.WarnLevel
	case ErrorLevel:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

func fromLogrusLevel(level logrus.Level) Level {
	switch level {
	case logrus.DebugLevel, logrus.TraceLevel:
		return DebugLevel
	case logrus.InfoLevel:
		return InfoLevel
	case logrus.WarnLevel:
		return WarnLevel
	default:
		return ErrorLevel
	}
}
