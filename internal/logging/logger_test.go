package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"tracksmith/internal/logging"
)

func TestWithContextAddsIdentifiers(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Level: "info", Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx := logging.WithProject(context.Background(), "20260101_120000_focus")
	ctx = logging.WithStep(ctx, "generate")
	ctx = logging.WithRequestID(ctx, "req-1")

	logging.WithContext(ctx, logger).Info("hello")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode log record: %v", err)
	}
	if record[logging.FieldProjectID] != "20260101_120000_focus" {
		t.Fatalf("missing project id: %v", record)
	}
	if record[logging.FieldStep] != "generate" {
		t.Fatalf("missing step: %v", record)
	}
	if record[logging.FieldRequestID] != "req-1" {
		t.Fatalf("missing request id: %v", record)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestDebugLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Level: "warn", Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	logger.Info("suppressed")
	if buf.Len() != 0 {
		t.Fatalf("info record should have been filtered: %s", buf.String())
	}
	logger.Warn("kept")
	if buf.Len() == 0 {
		t.Fatal("warn record should have been written")
	}
}
