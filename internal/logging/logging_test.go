package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestSlogJSONRespectsLevelAndFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Format: "json", Output: &buf})

	log.Info(context.Background(), "dropped")
	log.With(String("component", "kb")).Warn(context.Background(), "kept", Int("unlinked", 3))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d log lines, want 1: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	if rec["msg"] != "kept" || rec["component"] != "kb" || rec["unlinked"] != float64(3) {
		t.Fatalf("unexpected record: %#v", rec)
	}
}

func TestZapBackend(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug", Format: "json", Backend: BackendZap, Output: &buf})
	log.With(String("request_id", "abc")).Debug(context.Background(), "hello", Err(nil), Float("per_second", 2.5))

	var rec map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec); err != nil {
		t.Fatalf("unmarshal zap line %q: %v", buf.String(), err)
	}
	if rec["msg"] != "hello" || rec["request_id"] != "abc" || rec["per_second"] != 2.5 {
		t.Fatalf("unexpected zap record: %#v", rec)
	}
}

func TestEnsureRequestIDKeepsExisting(t *testing.T) {
	ctx := ContextWithRequestID(context.Background(), "fixed")
	ctx, id := EnsureRequestID(ctx)
	if id != "fixed" || RequestIDFromContext(ctx) != "fixed" {
		t.Fatalf("EnsureRequestID replaced existing id: %q", id)
	}

	_, fresh := EnsureRequestID(context.Background())
	if len(fresh) != 36 {
		t.Fatalf("generated request id %q is not a uuid", fresh)
	}
}

func TestFromContextFallback(t *testing.T) {
	if FromContext(context.Background(), nil) == nil {
		t.Fatalf("FromContext returned nil logger")
	}
	l := Noop()
	ctx := ContextWithLogger(context.Background(), l)
	if LoggerFromContext(ctx) == nil {
		t.Fatalf("logger missing from context")
	}
}
