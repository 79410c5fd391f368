package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

var fixedTime = time.Date(2024, 3, 9, 14, 5, 7, 0, time.Local)

func newTestLogger(t *testing.T, config FileLoggerConfig) (*FileLogger, string) {
	t.Helper()

	if config.Path == "" {
		config.Path = filepath.Join(t.TempDir(), "log.txt")
	}
	if config.Clock == nil {
		config.Clock = clockwork.NewFakeClockAt(fixedTime)
	}

	logger, err := NewFileLogger(config)
	if err != nil {
		t.Fatalf("NewFileLogger() error = %v", err)
	}
	return logger, config.Path
}

func readLog(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	return string(content)
}

func TestNewFileLogger(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "nested", "dir", "log.txt")

	logger, err := NewFileLogger(FileLoggerConfig{Path: logPath, Level: InfoLevel})
	if err != nil {
		t.Fatalf("NewFileLogger() error = %v", err)
	}
	defer logger.Close()

	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		t.Error("Log file was not created")
	}
	if logger.Path() != logPath {
		t.Errorf("Path() = %s, want %s", logger.Path(), logPath)
	}
}

func TestFileLogger_AppendsToExisting(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "log.txt")
	if err := os.WriteFile(logPath, []byte("earlier line\n"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	logger, _ := newTestLogger(t, FileLoggerConfig{Path: logPath, Level: InfoLevel})
	logger.Info(context.Background(), "later line", nil)
	logger.Close()

	content := readLog(t, logPath)
	if !strings.HasPrefix(content, "earlier line\n") || !strings.Contains(content, "later line") {
		t.Errorf("log content = %q, want appended line", content)
	}
}

func TestFileLogger_MirrorLineFormat(t *testing.T) {
	logger, logPath := newTestLogger(t, FileLoggerConfig{Level: InfoLevel})

	logger.Info(context.Background(), "Copied file: a/b.txt to replica.", nil)
	logger.Close()

	want := "2024-03-09 14:05:07 -- Copied file: a/b.txt to replica.\n"
	if got := readLog(t, logPath); got != want {
		t.Errorf("log line = %q, want %q", got, want)
	}
}

func TestFileLogger_LogLevels(t *testing.T) {
	logger, logPath := newTestLogger(t, FileLoggerConfig{Level: WarnLevel})

	ctx := context.Background()
	logger.Debug(ctx, "debug message", nil)
	logger.Info(ctx, "info message", nil)
	logger.Warn(ctx, "warn message", nil)
	logger.Error(ctx, "error message", errors.New("boom"), nil)
	logger.Close()

	content := readLog(t, logPath)

	if strings.Contains(content, "debug message") || strings.Contains(content, "info message") {
		t.Error("messages below the configured level should be dropped")
	}
	if !strings.Contains(content, " -- WARN: warn message") {
		t.Errorf("warn line missing: %q", content)
	}
	if !strings.Contains(content, ` -- ERROR: error message error="boom"`) {
		t.Errorf("error line missing: %q", content)
	}
}

func TestFileLogger_TextFields(t *testing.T) {
	logger, logPath := newTestLogger(t, FileLoggerConfig{Level: InfoLevel})

	logger.Info(context.Background(), "test message", Fields{"key": "value", "count": 42})
	logger.Close()

	want := "2024-03-09 14:05:07 -- test message count=42 key=value\n"
	if got := readLog(t, logPath); got != want {
		t.Errorf("log line = %q, want %q", got, want)
	}
}

func TestFileLogger_JSONFormat(t *testing.T) {
	logger, logPath := newTestLogger(t, FileLoggerConfig{Format: FormatJSON, Level: InfoLevel})

	logger.Error(context.Background(), "operation failed", errors.New("something went wrong"), Fields{"key": "value"})
	logger.Close()

	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(readLog(t, logPath)), &entry); err != nil {
		t.Fatalf("Failed to parse JSON log: %v", err)
	}

	if entry["level"] != "error" {
		t.Errorf("level = %v, want error", entry["level"])
	}
	if entry["message"] != "operation failed" {
		t.Errorf("message = %v, want 'operation failed'", entry["message"])
	}
	if entry["error"] != "something went wrong" {
		t.Errorf("error = %v, want 'something went wrong'", entry["error"])
	}
	if entry["key"] != "value" {
		t.Errorf("key = %v, want 'value'", entry["key"])
	}
	if entry["timestamp"] == nil {
		t.Error("timestamp should be present")
	}
}

func TestFileLogger_WithFields(t *testing.T) {
	logger, logPath := newTestLogger(t, FileLoggerConfig{Format: FormatJSON, Level: InfoLevel})

	derived := logger.WithFields(Fields{"pass": "p1"})
	derived.Info(context.Background(), "test", Fields{"action": "copy"})

	// Closing the parent flushes the shared file
	logger.Close()

	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(readLog(t, logPath)), &entry); err != nil {
		t.Fatalf("Failed to parse JSON log: %v", err)
	}

	if entry["pass"] != "p1" {
		t.Errorf("pass = %v, want 'p1'", entry["pass"])
	}
	if entry["action"] != "copy" {
		t.Errorf("action = %v, want 'copy'", entry["action"])
	}
}

func TestFileLogger_Flush(t *testing.T) {
	logger, logPath := newTestLogger(t, FileLoggerConfig{Level: InfoLevel})
	defer logger.Close()

	logger.Info(context.Background(), "buffered", nil)
	if err := Flush(logger); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	if !strings.Contains(readLog(t, logPath), "buffered") {
		t.Error("Flush() should write buffered lines to the file")
	}
}

func TestFileLogger_Rotation(t *testing.T) {
	logger, logPath := newTestLogger(t, FileLoggerConfig{
		Level:      InfoLevel,
		MaxSize:    100,
		MaxBackups: 2,
	})

	ctx := context.Background()
	for i := 0; i < 20; i++ {
		logger.Info(ctx, "This is a test message that is long enough to trigger rotation eventually", nil)
	}
	logger.Close()

	if _, err := os.Stat(logPath + ".1"); os.IsNotExist(err) {
		t.Error("Backup file .1 should exist after rotation")
	}
	if _, err := os.Stat(logPath + ".3"); !os.IsNotExist(err) {
		t.Error("Backups beyond MaxBackups should be removed")
	}
	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		t.Error("Main log file should still exist")
	}
}

func TestFileLogger_ClosedIsSilent(t *testing.T) {
	logger, _ := newTestLogger(t, FileLoggerConfig{Level: InfoLevel})
	logger.Close()

	// Must not panic
	logger.Info(context.Background(), "after close", nil)
	if err := logger.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestFileLogger_ConcurrentWrites(t *testing.T) {
	logger, logPath := newTestLogger(t, FileLoggerConfig{Level: InfoLevel})

	ctx := context.Background()

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func(id int) {
			derived := logger.WithFields(Fields{"goroutine": id})
			for j := 0; j < 100; j++ {
				derived.Info(ctx, "concurrent message", Fields{"iteration": j})
			}
			done <- true
		}(i)
	}

	for i := 0; i < 10; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("Timeout waiting for concurrent writes")
		}
	}

	logger.Close()

	lines := strings.Split(strings.TrimSpace(readLog(t, logPath)), "\n")
	if len(lines) != 1000 {
		t.Errorf("Expected 1000 log lines, got %d", len(lines))
	}
}

func TestConsoleLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewConsoleLogger(&buf, InfoLevel)

	ctx := context.Background()
	logger.Debug(ctx, "hidden", nil)
	logger.Info(ctx, "Deleted obsolete file: x.txt from replica.", nil)
	logger.WithFields(Fields{"path": "y"}).Error(ctx, "copy failed", errors.New("denied"), nil)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2: %q", len(lines), buf.String())
	}
	if !strings.HasSuffix(lines[0], " -- Deleted obsolete file: x.txt from replica.") {
		t.Errorf("info line = %q", lines[0])
	}
	if !strings.HasSuffix(lines[1], ` -- ERROR: copy failed error="denied" path=y`) {
		t.Errorf("error line = %q", lines[1])
	}
}

func TestMultiLogger(t *testing.T) {
	file, logPath := newTestLogger(t, FileLoggerConfig{Level: InfoLevel})
	var buf bytes.Buffer

	multi := NewMultiLogger(file, NewConsoleLogger(&buf, InfoLevel), nil)
	multi.Info(context.Background(), "both sinks", nil)

	if err := multi.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if !strings.Contains(readLog(t, logPath), "both sinks") {
		t.Error("file sink missing line")
	}
	if !strings.Contains(buf.String(), "both sinks") {
		t.Error("console sink missing line")
	}
	if err := multi.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestNullLogger(t *testing.T) {
	logger := NewNullLogger()
	ctx := context.Background()

	logger.Debug(ctx, "debug", nil)
	logger.Info(ctx, "info", nil)
	logger.Warn(ctx, "warn", nil)
	logger.Error(ctx, "error", nil, nil)

	if logger.WithFields(Fields{"key": "value"}) == nil {
		t.Error("WithFields should return a logger")
	}
	if err := Flush(logger); err != nil {
		t.Errorf("Flush() error = %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"debug", DebugLevel},
		{"DEBUG", DebugLevel},
		{"info", InfoLevel},
		{"warn", WarnLevel},
		{"WARNING", WarnLevel},
		{"error", ErrorLevel},
		{"unknown", InfoLevel},
		{"", InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if result := ParseLevel(tt.input); result != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestLevelString(t *testing.T) {
	tests := []struct {
		level    Level
		expected string
	}{
		{DebugLevel, "DEBUG"},
		{InfoLevel, "INFO"},
		{WarnLevel, "WARN"},
		{ErrorLevel, "ERROR"},
		{Level(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if result := LevelString(tt.level); result != tt.expected {
				t.Errorf("LevelString(%v) = %q, want %q", tt.level, result, tt.expected)
			}
		})
	}
}
