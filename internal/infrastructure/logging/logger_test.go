package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nerrad567/sws-bridge/internal/infrastructure/config"
)

func TestNewHandler_Formats(t *testing.T) {
	tests := []struct {
		format string
		want   []string
	}{
		{format: "json", want: []string{`"msg":"batch relayed"`, `"service":"swsbridge"`, `"version":"1.2.3"`, `"commands":3`}},
		{format: "", want: []string{`"msg":"batch relayed"`}},
		{format: "text", want: []string{"msg=\"batch relayed\"", "service=swsbridge", "version=1.2.3", "commands=3"}},
		{format: "console", want: []string{"batch relayed", "swsbridge", "commands"}},
	}

	for _, tt := range tests {
		t.Run("format="+tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(newHandler(&buf, config.LoggingConfig{Level: "info", Format: tt.format}, "1.2.3"))

			logger.Info("batch relayed", "commands", 3)

			for _, want := range tt.want {
				if !strings.Contains(buf.String(), want) {
					t.Errorf("output %q missing %q", buf.String(), want)
				}
			}
		})
	}
}

func TestNewHandler_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	h := newHandler(&buf, config.LoggingConfig{Level: "warn", Format: "json"}, "test")

	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info should be filtered at warn level")
	}
	if !h.Enabled(context.Background(), slog.LevelWarn) {
		t.Error("warn should pass at warn level")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{input: "debug", expected: slog.LevelDebug},
		{input: "DEBUG", expected: slog.LevelDebug},
		{input: "info", expected: slog.LevelInfo},
		{input: "warn", expected: slog.LevelWarn},
		{input: "warning", expected: slog.LevelWarn},
		{input: "error", expected: slog.LevelError},
		{input: "verbose", expected: slog.LevelInfo},
		{input: "", expected: slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.expected {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

func TestOpenOutput(t *testing.T) {
	if w := openOutput(config.LoggingConfig{Output: "stderr"}); w != os.Stderr {
		t.Errorf("stderr output = %T", w)
	}
	if w := openOutput(config.LoggingConfig{Output: "stdout"}); w != os.Stdout {
		t.Errorf("stdout output = %T", w)
	}
	if w := openOutput(config.LoggingConfig{Output: "file"}); w != os.Stdout {
		t.Errorf("file output without path = %T, want stdout", w)
	}
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.log")
	logger := New(config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "file",
		File:   config.FileLoggingConfig{Path: path, MaxSize: 1},
	}, "1.0.0")

	logger.Info("relay started", "buffer_size", 40)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, data)
	}
	if entry["msg"] != "relay started" || entry["buffer_size"] != float64(40) {
		t.Errorf("entry = %v", entry)
	}
}

func TestLogger_With(t *testing.T) {
	var buf bytes.Buffer
	logger := &Logger{Logger: slog.New(newHandler(&buf, config.LoggingConfig{Format: "json"}, "test"))}

	child := logger.With("component", "relay")
	if child == logger {
		t.Fatal("With should return a new logger")
	}

	child.Info("catalog loaded")
	logger.Info("parent line")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if !strings.Contains(lines[0], `"component":"relay"`) {
		t.Errorf("child line missing component: %s", lines[0])
	}
	if strings.Contains(lines[1], "component") {
		t.Errorf("parent line gained child attrs: %s", lines[1])
	}
}

func TestDefaultAndDiscard(t *testing.T) {
	if Default() == nil {
		t.Fatal("Default() returned nil")
	}

	d := Discard()
	if d == nil {
		t.Fatal("Discard() returned nil")
	}
	d.Error("dropped")
}
