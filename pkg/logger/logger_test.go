package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"pagelens/pkg/config"
)

func TestJSONFormatPromotesComponent(t *testing.T) {
	t.Setenv("PAGELENS_LOG_FORMAT", "")
	t.Setenv("PAGELENS_LOG_LEVEL", "")

	var buf bytes.Buffer
	log, err := NewWithWriter(config.LoggingConfig{Format: "json", Level: "debug"}, &buf)
	if err != nil {
		t.Fatalf("NewWithWriter error: %v", err)
	}

	log.With("component", "bus").Info("Request settled", "request_id", "r1")

	var entry Entry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode entry: %v (%s)", err, buf.String())
	}
	if entry.Component != "bus" {
		t.Fatalf("component = %q, want %q", entry.Component, "bus")
	}
	if entry.Message != "Request settled" {
		t.Fatalf("message = %q", entry.Message)
	}
	if entry.Fields["request_id"] != "r1" {
		t.Fatalf("fields = %v, want request_id", entry.Fields)
	}
}

func TestLevelFiltering(t *testing.T) {
	t.Setenv("PAGELENS_LOG_FORMAT", "")
	t.Setenv("PAGELENS_LOG_LEVEL", "")

	var buf bytes.Buffer
	log, err := NewWithWriter(config.LoggingConfig{Format: "json", Level: "warn"}, &buf)
	if err != nil {
		t.Fatalf("NewWithWriter error: %v", err)
	}

	log.Info("dropped")
	log.Warn("kept")

	if strings.Contains(buf.String(), "dropped") {
		t.Fatal("info record should be filtered at warn level")
	}
	if !strings.Contains(buf.String(), "kept") {
		t.Fatal("warn record should pass at warn level")
	}
}

func TestUnsupportedSettingsRejected(t *testing.T) {
	t.Setenv("PAGELENS_LOG_FORMAT", "")
	t.Setenv("PAGELENS_LOG_LEVEL", "")

	if _, err := NewWithWriter(config.LoggingConfig{Format: "xml"}, &bytes.Buffer{}); err == nil {
		t.Fatal("expected unsupported format to be rejected")
	}
	if _, err := NewWithWriter(config.LoggingConfig{Level: "loud"}, &bytes.Buffer{}); err == nil {
		t.Fatal("expected unsupported level to be rejected")
	}
}
