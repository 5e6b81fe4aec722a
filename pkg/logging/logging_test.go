package logging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cci_chat/pkg/config"
)

func TestInitCreatesLogFile(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "logs", "cci_chat.log")

	cfg := config.Default()
	cfg.LogFile = logPath
	cfg.LogFormat = "json"
	cfg.LogLevel = "info"

	logger, err := Init(cfg)
	if err != nil {
		t.Fatalf("Init() error: %v", err)
	}

	logger.Info("hello", slog.String("component", "test"))

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	if !strings.Contains(string(data), "hello") {
		t.Fatalf("Expected log to contain message, got: %s", string(data))
	}
}

func TestInitDefaultsToStateDir(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	cfg := config.Default()
	cfg.StateDir = t.TempDir()
	cfg.LogFile = ""

	logger, err := Init(cfg)
	if err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	logger.Warn("state_dir_log")

	if _, err := os.Stat(filepath.Join(cfg.StateDir, "logs", "cci_chat.log")); err != nil {
		t.Fatalf("Expected log file under state dir: %v", err)
	}
}

func TestTraceLevel(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	logPath := filepath.Join(t.TempDir(), "trace.log")
	cfg := config.Default()
	cfg.LogFile = logPath
	cfg.LogFormat = "text"
	cfg.LogLevel = "trace"

	logger, err := Init(cfg)
	if err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	if !logger.Enabled(context.Background(), LevelTrace) {
		t.Fatal("Expected trace level to be enabled")
	}
	logger.Log(context.Background(), LevelTrace, "body_dump")

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	if !strings.Contains(string(data), "level=TRACE") {
		t.Errorf("Expected TRACE level name, got: %s", string(data))
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"trace":   LevelTrace,
		"debug":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		"ERROR":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for input, want := range tests {
		if got := parseLogLevel(input); got != want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", input, got, want)
		}
	}
}
