package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type testLogConfig struct {
	level, output, file string
}

func (c testLogConfig) GetLevel() string  { return c.level }
func (c testLogConfig) GetOutput() string { return c.output }
func (c testLogConfig) GetFile() string   { return c.file }

func TestParseLogLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   DEBUG,
		"INFO":    INFO,
		"warning": WARN,
		"warn":    WARN,
		"error":   ERROR,
		"fatal":   FATAL,
		"":        INFO,
		"verbose": INFO,
	}
	for in, want := range tests {
		if got := ParseLogLevel(in); got != want {
			t.Errorf("ParseLogLevel(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestInitWritesRotatedFile(t *testing.T) {
	previous := defaultLogger
	defer SetDefaultLogger(previous)

	path := filepath.Join(t.TempDir(), "ledger.log")
	if err := Init(testLogConfig{level: "info", output: "file", file: path}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	Info("campaign %d created", 1)
	Debug("suppressed at info level")
	Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "campaign 1 created") {
		t.Fatalf("log file missing entry: %s", data)
	}
	if strings.Contains(string(data), "suppressed") {
		t.Fatalf("debug entry written at info level")
	}
}

func TestInitRequiresFilePath(t *testing.T) {
	if err := Init(testLogConfig{output: "file"}); err == nil {
		t.Fatalf("expected error without file path")
	}
}
