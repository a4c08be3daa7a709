package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"
)

func TestLogWritesJSONLine(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stdout)

	Info("cache_fill", map[string]any{"key": "?url=x"})
	line := strings.TrimSpace(buf.String())
	var got struct {
		Level   string         `json:"level"`
		Message string         `json:"message"`
		Fields  map[string]any `json:"fields"`
	}
	if err := json.Unmarshal([]byte(line), &got); err != nil {
		t.Fatalf("not json: %v (%q)", err, line)
	}
	if got.Level != "info" || got.Message != "cache_fill" || got.Fields["key"] != "?url=x" {
		t.Fatalf("unexpected entry: %+v", got)
	}
}

func TestDebugGated(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stdout)

	SetDebug(false)
	Debug("hidden", nil)
	if buf.Len() != 0 {
		t.Fatalf("debug line written while disabled: %s", buf.String())
	}
	SetDebug(true)
	defer SetDebug(false)
	Debug("shown", nil)
	if !strings.Contains(buf.String(), `"shown"`) {
		t.Fatalf("expected debug line, got %q", buf.String())
	}
}
