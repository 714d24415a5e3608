package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewLoggerFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "chatty")

	logger.Debug("hidden")
	logger.Info("shown", "transaction_id", "t-1")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line should be filtered: %s", out)
	}
	if !strings.Contains(out, `"transaction_id":"t-1"`) {
		t.Fatalf("expected structured attribute, got %s", out)
	}
}
