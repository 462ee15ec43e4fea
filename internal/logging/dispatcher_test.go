package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var logEntry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}
	return logEntry
}

func TestDispatcherLogger_Debug(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(zerolog.New(&buf).Level(zerolog.DebugLevel))

	dl.Debug("frame queued", "command", "frame", "frame", 42)

	logEntry := decodeEntry(t, &buf)
	if logEntry["level"] != "debug" {
		t.Errorf("expected level 'debug', got %v", logEntry["level"])
	}
	if logEntry["message"] != "frame queued" {
		t.Errorf("expected message 'frame queued', got %v", logEntry["message"])
	}
	if logEntry["command"] != "frame" {
		t.Errorf("expected command='frame', got %v", logEntry["command"])
	}
	if logEntry["frame"] != float64(42) { // JSON numbers are float64
		t.Errorf("expected frame=42, got %v", logEntry["frame"])
	}
	if logEntry["component"] != "dispatcher" {
		t.Errorf("expected component='dispatcher', got %v", logEntry["component"])
	}
}

func TestDispatcherLogger_Info(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(zerolog.New(&buf))

	dl.Info("sink registered", "status", "ok")

	logEntry := decodeEntry(t, &buf)
	if logEntry["level"] != "info" {
		t.Errorf("expected level 'info', got %v", logEntry["level"])
	}
	if logEntry["status"] != "ok" {
		t.Errorf("expected status='ok', got %v", logEntry["status"])
	}
}

func TestDispatcherLogger_Error(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(zerolog.New(&buf).Level(zerolog.ErrorLevel))

	dl.Info("filtered")
	if buf.Len() != 0 {
		t.Fatalf("info should be filtered at error level, got %q", buf.String())
	}

	dl.Error("sink failed", "code", 500, "reason", "internal", "error", errors.New("disk full"))

	logEntry := decodeEntry(t, &buf)
	if logEntry["level"] != "error" {
		t.Errorf("expected level 'error', got %v", logEntry["level"])
	}
	if logEntry["code"] != float64(500) {
		t.Errorf("expected code=500, got %v", logEntry["code"])
	}
	if logEntry["reason"] != "internal" {
		t.Errorf("expected reason='internal', got %v", logEntry["reason"])
	}
	if logEntry["error"] != "disk full" {
		t.Errorf("expected error='disk full', got %v", logEntry["error"])
	}
}

func TestDispatcherLogger_OddKeyValues(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(zerolog.New(&buf).Level(zerolog.DebugLevel))

	dl.Debug("simple message", 3, "skipped", "dangling", 7, "key")

	logEntry := decodeEntry(t, &buf)
	if logEntry["message"] != "simple message" {
		t.Errorf("expected message 'simple message', got %v", logEntry["message"])
	}
	if _, ok := logEntry["key"]; ok {
		t.Errorf("a key without a value should be dropped")
	}
	if logEntry["dangling"] != float64(7) {
		t.Errorf("expected dangling=7, got %v", logEntry["dangling"])
	}
}

func TestNewZerolog(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerolog(&buf, "WARN")

	logger.Info().Msg("hidden")
	if buf.Len() != 0 {
		t.Fatalf("info should be filtered at warn level")
	}

	logger.Warn().Str("course", "flat").Msg("shown")
	logEntry := decodeEntry(t, &buf)
	if logEntry["course"] != "flat" {
		t.Errorf("expected course='flat', got %v", logEntry["course"])
	}
	if _, ok := logEntry["time"]; !ok {
		t.Errorf("expected a time field")
	}

	buf.Reset()
	fallback := NewZerolog(&buf, "nonsense")
	fallback.Info().Msg("default level")
	if buf.Len() == 0 {
		t.Errorf("unknown level should fall back to info")
	}
}
