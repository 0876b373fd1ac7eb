package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestLogger_WritesJSONWithServiceAndTrace(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, LevelInfo, "fxdesk", func(context.Context) string { return "abc123" })

	log.Info(context.Background(), "deal created", "dealId", "d-1")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v (%s)", err, buf.String())
	}

	if rec["msg"] != "deal created" {
		t.Errorf("msg = %v, want deal created", rec["msg"])
	}
	if rec["service"] != "fxdesk" {
		t.Errorf("service = %v, want fxdesk", rec["service"])
	}
	if rec["trace_id"] != "abc123" {
		t.Errorf("trace_id = %v, want abc123", rec["trace_id"])
	}
	if rec["dealId"] != "d-1" {
		t.Errorf("dealId = %v, want d-1", rec["dealId"])
	}
	file, _ := rec["file"].(string)
	if !strings.HasPrefix(file, "logger_test.go:") {
		t.Errorf("file = %q, want caller file logger_test.go", file)
	}
}

func TestLogger_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, LevelWarn, "fxdesk", nil)

	log.Debug(context.Background(), "hidden")
	log.Info(context.Background(), "hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected no output below warn, got %s", buf.String())
	}

	log.Warn(context.Background(), "shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("expected warn record, got %s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"error", LevelError},
		{"", LevelInfo},
		{"verbose", LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
