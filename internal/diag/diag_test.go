package diag

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestWarnAccumulatesAndFlushPrintsThenClears(t *testing.T) {
	var buf bytes.Buffer
	s := NewSession(&buf)

	s.Warn("coercion dropped %d bits", 3)
	s.Warn("second warning")

	if len(s.Warnings) != 2 {
		t.Fatalf("want 2 accumulated warnings, got %d", len(s.Warnings))
	}
	if buf.Len() != 0 {
		t.Fatal("want nothing printed before Flush (lazy printing, §7)")
	}

	s.Flush()

	out := buf.String()
	if !strings.Contains(out, "coercion dropped 3 bits") {
		t.Errorf("want the formatted first warning in output, got %q", out)
	}
	if !strings.Contains(out, "second warning") {
		t.Errorf("want the second warning in output, got %q", out)
	}
	if len(s.Warnings) != 0 {
		t.Error("want the warning vector cleared after Flush")
	}
}

func TestNilSessionDiscardsSilently(t *testing.T) {
	var s *Session
	s.Warn("should not panic")
	s.Flush()
	s.TraceEvent("record", "abc", 4, 0)
}

func TestTraceEventRendersHumanizedCounts(t *testing.T) {
	var buf bytes.Buffer
	s := NewSession(&buf)
	s.TraceEvent("codegen", "trace-1", 1500, 4096)

	out := buf.String()
	if !strings.Contains(out, "1,500 nodes") {
		t.Errorf("want the node count rendered with thousands separators, got %q", out)
	}
	if !strings.Contains(out, "trace-1") {
		t.Errorf("want the trace ID in the log line, got %q", out)
	}
}

func TestStderrSessionDisablesColorWhenNotATerminal(t *testing.T) {
	s := Stderr()
	if s.color {
		t.Skip("stderr happens to be a terminal in this environment")
	}
}

func TestLogLineFormatsATimestampPrefix(t *testing.T) {
	var buf bytes.Buffer
	s := NewSession(&buf)
	when := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.logLine("warning", when, "hello")

	if !strings.Contains(buf.String(), "2026-01-02 03:04:05") {
		t.Errorf("want a formatted timestamp, got %q", buf.String())
	}
}
