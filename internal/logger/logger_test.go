// internal/logger/logger_test.go
package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLogLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(DEBUG)
	logger.AddOutput(DEBUG, &buf)
	logger.AddOutput(INFO, &buf)
	logger.AddOutput(WARN, &buf)
	logger.AddOutput(ERROR, &buf)

	tests := []struct {
		level   LogLevel
		message string
	}{
		{DEBUG, "debug message"},
		{INFO, "info message"},
		{WARN, "warning message"},
		{ERROR, "error message"},
	}

	for _, tt := range tests {
		buf.Reset()

		switch tt.level {
		case DEBUG:
			logger.Debug(tt.message)
		case INFO:
			logger.Info(tt.message)
		case WARN:
			logger.Warn(tt.message)
		case ERROR:
			logger.Error(tt.message)
		}

		output := buf.String()
		if !strings.Contains(output, tt.message) {
			t.Errorf("Expected log to contain %q, got %q", tt.message, output)
		}
		if !strings.Contains(output, levelNames[tt.level]) {
			t.Errorf("Expected log to contain level %q, got %q", levelNames[tt.level], output)
		}
	}
}

func TestLogLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(INFO)
	logger.AddOutput(DEBUG, &buf)
	logger.AddOutput(INFO, &buf)

	// Debug shouldn't log when level is INFO
	logger.Debug("debug message")
	if buf.String() != "" {
		t.Error("Expected no debug output when level is INFO")
	}

	// Info should log
	buf.Reset()
	logger.Info("info message")
	if buf.String() == "" {
		t.Error("Expected info output")
	}
}

func TestFormatting(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(INFO)
	logger.AddOutput(INFO, &buf)

	// Test with format string
	logger.Info("Count: %d", 42)
	output := buf.String()
	if !strings.Contains(output, "Count: 42") {
		t.Errorf("Expected formatted message, got %q", output)
	}
}

func TestMultipleOutputs(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	logger := NewLogger(INFO)
	logger.AddOutput(INFO, &buf1)
	logger.AddOutput(INFO, &buf2)

	message := "test message"
	logger.Info(message)

	if !strings.Contains(buf1.String(), message) {
		t.Error("Expected message in first buffer")
	}
	if !strings.Contains(buf2.String(), message) {
		t.Error("Expected message in second buffer")
	}
}

func TestShowFile(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(INFO)
	logger.AddOutput(INFO, &buf)

	// Test with file info
	logger.SetShowFile(true)
	logger.Info("test message")
	if !strings.Contains(buf.String(), "logger_test.go:") {
		t.Error("Expected file information in log")
	}

	// Test without file info
	buf.Reset()
	logger.SetShowFile(false)
	logger.Info("test message")
	if strings.Contains(buf.String(), "logger_test.go:") {
		t.Error("Expected no file information in log")
	}
}

func TestOutputThreshold(t *testing.T) {
	var all, errs bytes.Buffer
	logger := NewLogger(DEBUG)
	logger.AddOutput(DEBUG, &all)
	logger.AddOutput(ERROR, &errs)

	logger.Warn("warned")
	logger.Error("failed")

	if !strings.Contains(all.String(), "warned") || !strings.Contains(all.String(), "failed") {
		t.Errorf("Expected both messages in debug output, got %q", all.String())
	}
	if strings.Contains(errs.String(), "warned") {
		t.Error("Expected warning to stay out of the error output")
	}
	if !strings.Contains(errs.String(), "failed") {
		t.Error("Expected error in the error output")
	}
}

func TestNamedAndWith(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(INFO)
	logger.SetShowFile(false)
	logger.SetJSON(true)
	logger.AddOutput(INFO, &buf)

	logger.Named("codec").With("entity", "brand", "id", 42).Info("converted")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Expected a JSON line, got %q: %v", buf.String(), err)
	}
	if entry["logger"] != "codec" {
		t.Errorf("Expected logger name codec, got %v", entry["logger"])
	}
	if entry["entity"] != "brand" || entry["id"] != float64(42) {
		t.Errorf("Expected structured fields, got %v", entry)
	}
	if entry["msg"] != "converted" {
		t.Errorf("Expected message, got %v", entry["msg"])
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name    string
		want    LogLevel
		wantErr bool
	}{
		{"debug", DEBUG, false},
		{"INFO", INFO, false},
		{"warning", WARN, false},
		{"error", ERROR, false},
		{"loud", INFO, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLevel(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTimeFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(INFO)
	logger.SetShowFile(false)
	logger.SetTimeFormat("[stamp]")
	logger.AddOutput(INFO, &buf)

	logger.Info("hello")
	if !strings.HasPrefix(buf.String(), "[stamp]") {
		t.Errorf("Expected custom time layout, got %q", buf.String())
	}
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "invadmin.log")
	logger := NewLogger(DEBUG)
	if err := logger.AddFileOutput(DEBUG, path); err != nil {
		t.Fatalf("AddFileOutput() error = %v", err)
	}

	logger.Debug("written to %s", "file")
	if err := logger.Sync(); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "written to file") {
		t.Errorf("Expected message in log file, got %q", data)
	}
}
