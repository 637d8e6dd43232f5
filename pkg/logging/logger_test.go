package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", DebugLevel},
		{"DEBUG", DebugLevel},
		{" warn ", WarnLevel},
		{"warning", WarnLevel},
		{"error", ErrorLevel},
		{"fatal", FatalLevel},
		{"info", InfoLevel},
		{"", InfoLevel},
		{"verbose", InfoLevel},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestStructuredLogger_WritesJSONWithContextIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger("test-service", "1.2.3", DebugLevel)
	logger.SetOutput(&buf)

	ctx := WithRunID(WithRequestID(context.Background(), "req-1"), "run-1")
	logger.Error(ctx, "[TEST_EVENT] something failed", Fields{"city": "Chicago"}, errors.New("boom"))

	var entry LogEntry
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("log line is not valid JSON: %v (%s)", err, buf.String())
	}

	if entry.Level != "ERROR" {
		t.Errorf("Level = %q, want ERROR", entry.Level)
	}
	if entry.Service != "test-service" || entry.Version != "1.2.3" {
		t.Errorf("service/version = %q/%q", entry.Service, entry.Version)
	}
	if entry.RequestID != "req-1" || entry.RunID != "run-1" {
		t.Errorf("ids = %q/%q, want req-1/run-1", entry.RequestID, entry.RunID)
	}
	if entry.Error != "boom" {
		t.Errorf("Error = %q, want boom", entry.Error)
	}
	if entry.Fields["city"] != "Chicago" {
		t.Errorf("Fields[city] = %v, want Chicago", entry.Fields["city"])
	}
	if entry.File == "" || entry.Line == 0 {
		t.Error("caller information should be populated for error level")
	}
}

func TestStructuredLogger_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger("svc", "1", WarnLevel)
	logger.SetOutput(&buf)

	logger.Info(context.Background(), "hidden", Fields{})
	logger.Debug(context.Background(), "hidden", Fields{})
	if buf.Len() != 0 {
		t.Fatalf("expected no output below warn level, got %q", buf.String())
	}

	logger.Warn(context.Background(), "shown", Fields{})
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("expected warn entry, got %q", buf.String())
	}
}

func TestContextLogger_MergesFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger("svc", "1", DebugLevel)
	logger.SetOutput(&buf)

	cl := logger.WithFields(Fields{"provider": "openaq", "stage": "FETCH"})
	cl.Info(context.Background(), "msg", Fields{"stage": "STORE"})

	var entry LogEntry
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if entry.Fields["provider"] != "openaq" {
		t.Errorf("provider field missing: %v", entry.Fields)
	}
	if entry.Fields["stage"] != "STORE" {
		t.Errorf("call fields should override context fields, got %v", entry.Fields["stage"])
	}
}
