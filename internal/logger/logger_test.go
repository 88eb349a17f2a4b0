package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestLoggerWritesJSONAtLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, LevelInfo, "cryptofeed", nil)

	log.Debug(context.Background(), "should not appear")
	if buf.Len() != 0 {
		t.Fatalf("expected debug line to be suppressed at LevelInfo, got %q", buf.String())
	}

	log.Info(context.Background(), "venue connected", "venue", "binance")

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("expected valid JSON line, got %q: %v", buf.String(), err)
	}
	if line["msg"] != "venue connected" {
		t.Errorf("msg = %v, want %q", line["msg"], "venue connected")
	}
	if line["venue"] != "binance" {
		t.Errorf("venue = %v, want %q", line["venue"], "binance")
	}
	if line["service"] != "cryptofeed" {
		t.Errorf("service = %v, want %q", line["service"], "cryptofeed")
	}
}

func TestLoggerErrorAlwaysEnabled(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, LevelError, "cryptofeed", nil)

	log.Warn(context.Background(), "should be suppressed")
	if buf.Len() != 0 {
		t.Fatalf("expected warn to be suppressed at LevelError")
	}

	log.Error(context.Background(), "venue disconnected")
	if !strings.Contains(buf.String(), "venue disconnected") {
		t.Fatalf("expected error line to be written, got %q", buf.String())
	}
}
