package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestPrettyHandlerFormatsComponentAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	levelVar.Set(slog.LevelInfo)
	logger := slog.New(newPrettyHandler(&buf, levelVar))

	logger = NewComponentLogger(logger, "coordinator")
	logger.Info("phase completed", Int64(FieldQueueID, 7), String(FieldStatus, "completed"))

	line := buf.String()
	if !strings.Contains(line, "INFO coordinator: phase completed") {
		t.Fatalf("unexpected line: %q", line)
	}
	if !strings.Contains(line, "queue_id=7") || !strings.Contains(line, "status=completed") {
		t.Fatalf("expected attrs in line: %q", line)
	}
}

func TestPrettyHandlerHonorsLevel(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	levelVar.Set(slog.LevelWarn)
	logger := slog.New(newPrettyHandler(&buf, levelVar))

	logger.Info("suppressed")
	logger.Warn("emitted")

	out := buf.String()
	if strings.Contains(out, "suppressed") {
		t.Fatalf("info line should be suppressed: %q", out)
	}
	if !strings.Contains(out, "emitted") {
		t.Fatalf("warn line missing: %q", out)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "yaml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestQuotingRules(t *testing.T) {
	if got := maybeQuote("plain"); got != "plain" {
		t.Fatalf("expected unquoted value, got %q", got)
	}
	if got := maybeQuote("has space"); got != `"has space"` {
		t.Fatalf("expected quoted value, got %q", got)
	}
}
