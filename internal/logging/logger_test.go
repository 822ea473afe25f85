package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestLoggerKeyValues(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, LevelInfo)

	logger.Info("Scan completed", "url", "https://example.com", "score", 30)

	out := buf.String()
	if !strings.Contains(out, "[INFO] Scan completed url=https://example.com score=30") {
		t.Errorf("unexpected log line: %q", out)
	}
}

func TestLoggerLevelThreshold(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, LevelWarn)

	logger.Debug("debug")
	logger.Info("info")
	if buf.Len() != 0 {
		t.Fatalf("expected messages below WARN to be dropped, got %q", buf.String())
	}

	logger.Warn("persist failed", "error", "disk full")
	if !strings.Contains(buf.String(), "[WARN] persist failed error=disk full") {
		t.Errorf("unexpected log line: %q", buf.String())
	}
}

func TestLoggerOddKeyValues(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, LevelDebug)

	logger.Error("dangling", "key")
	if strings.Contains(buf.String(), "key=") {
		t.Errorf("dangling key should be ignored: %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"warning": LevelWarn,
		"Error":   LevelError,
		"":        LevelInfo,
		"bogus":   LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
