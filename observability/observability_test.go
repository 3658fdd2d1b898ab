package observability

import (
	"bytes"
	"strings"
	"testing"
)

func TestTextLoggerFieldsSorted(t *testing.T) {
	var buf bytes.Buffer
	log := NewTextLogger(&buf, false)
	log.Info("grouping complete", Int("pages", 3), String("doc_id", "sha-abc"))
	line := buf.String()
	if !strings.HasPrefix(line, "INFO grouping complete ") {
		t.Fatalf("unexpected line: %q", line)
	}
	if strings.Index(line, "doc_id=sha-abc") > strings.Index(line, "pages=3") {
		t.Fatalf("fields not sorted: %q", line)
	}
}

func TestTextLoggerDebugSuppressed(t *testing.T) {
	var buf bytes.Buffer
	log := NewTextLogger(&buf, false)
	log.Debug("noisy")
	if buf.Len() != 0 {
		t.Fatalf("debug emitted without verbose: %q", buf.String())
	}
	NewTextLogger(&buf, true).Debug("noisy")
	if !strings.Contains(buf.String(), "DEBUG noisy") {
		t.Fatalf("verbose debug missing: %q", buf.String())
	}
}

func TestWithPropagatesFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewTextLogger(&buf, false).With(String("stage", "group"))
	log.Info("start")
	if !strings.Contains(buf.String(), "stage=group") {
		t.Fatalf("bound field missing: %q", buf.String())
	}
}

func TestNopLogger(t *testing.T) {
	var log Logger = NopLogger{}
	log.Info("ignored", Error("err", nil), Int64("n", 1), Float64("f", 0.5))
	if child := log.With(String("k", "v")); child == nil {
		t.Fatalf("With returned nil")
	}
}
