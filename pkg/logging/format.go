package logging

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// TimestampFormat is the timestamp layout of text log lines
const TimestampFormat = "2006-01-02 15:04:05"

// Separator sits between the timestamp and the message
const Separator = " -- "

// FormatLine renders a text log line: "<timestamp> -- <message>". Levels
// other than info are prefixed to the message; the error and fields follow
// as sorted key=value pairs.
func FormatLine(ts time.Time, level Level, msg string, err error, fields Fields) string {
	var b strings.Builder
	b.WriteString(ts.Format(TimestampFormat))
	b.WriteString(Separator)

	if level != InfoLevel {
		b.WriteString(levelString(level))
		b.WriteString(": ")
	}
	b.WriteString(msg)

	if err != nil {
		fmt.Fprintf(&b, " error=%q", err.Error())
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, fields[k])
	}

	b.WriteByte('\n')
	return b.String()
}

// formatJSON renders a JSON log line
func formatJSON(ts time.Time, level Level, msg string, err error, fields Fields) ([]byte, error) {
	entry := map[string]interface{}{
		"timestamp": ts.UTC().Format(time.RFC3339),
		"level":     strings.ToLower(levelString(level)),
		"message":   msg,
	}

	if err != nil {
		entry["error"] = err.Error()
	}

	for k, v := range fields {
		entry[k] = v
	}

	data, jsonErr := json.Marshal(entry)
	if jsonErr != nil {
		return nil, jsonErr
	}

	return append(data, '\n'), nil
}

// levelString returns the string representation of a log level
func levelString(level Level) string {
	switch level {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel parses a log level string
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// LevelString returns level as string (exported version)
func LevelString(level Level) string {
	return levelString(level)
}
