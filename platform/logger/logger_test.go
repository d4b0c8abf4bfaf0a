package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
)

func TestWithContextAddsRunAndRequestIDs(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("production", &buf)

	ctx := ContextWithRunID(context.Background(), "run-1")
	ctx = ContextWithRequestID(ctx, "req-1")
	log.WithContext(ctx).Info("automation tick")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if line["run_id"] != "run-1" || line["request_id"] != "req-1" {
		t.Fatalf("missing context ids: %v", line)
	}
}

func TestWithContextLeavesPlainContextAlone(t *testing.T) {
	log := Nop()
	if log.WithContext(context.Background()) != log {
		t.Fatal("a context without ids should return the same logger")
	}
	if RunIDFromContext(context.Background()) != "" {
		t.Fatal("expected no run id")
	}
}

func TestJobRunCarriesRunID(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("production", &buf)

	log.WithContext(ContextWithRunID(context.Background(), "run-7")).JobRun("lab-result-notifications", "untenanted", 3, 2, 1, 0, 0)

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if line["run_id"] != "run-7" || line["processed"] != float64(3) {
		t.Fatalf("unexpected line: %v", line)
	}
}
