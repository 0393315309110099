package errlog

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestRecord(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf)
	l.Record(context.Background(), "transcribe", errors.New("service unavailable"), map[string]string{
		"user_id": "u1",
		"word":    "cat",
	})

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("entry is not JSON: %v (%s)", err, buf.String())
	}
	if entry["stage"] != "transcribe" {
		t.Errorf("stage = %v, want transcribe", entry["stage"])
	}
	if entry["error"] != "service unavailable" {
		t.Errorf("error = %v, want service unavailable", entry["error"])
	}
	if entry["level"] != "error" {
		t.Errorf("level = %v, want error", entry["level"])
	}
	if _, ok := entry["time"]; !ok {
		t.Error("entry has no timestamp")
	}
	ctx, ok := entry["context"].(map[string]any)
	if !ok || ctx["user_id"] != "u1" || ctx["word"] != "cat" {
		t.Errorf("context = %v", entry["context"])
	}
}

func TestOpen_Appends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "errors.log")

	for i := 0; i < 2; i++ {
		l, err := Open(path)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		l.Record(context.Background(), "ingest", errors.New("404"), nil)
		if err := l.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	lines := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines++
	}
	if lines != 2 {
		t.Errorf("lines = %d, want 2", lines)
	}
}

func TestNilAndNop(t *testing.T) {
	var l *Log
	l.Record(context.Background(), "x", errors.New("y"), nil)
	if err := l.Close(); err != nil {
		t.Errorf("Close on nil = %v", err)
	}
	Nop().Record(context.Background(), "x", errors.New("y"), nil)
}

func TestRecord_RequestID(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf)
	fields := map[string]string{"user_id": "u1"}
	l.Record(WithRequestID(context.Background(), "req-7"), "persist", errors.New("db down"), fields)

	var entry struct {
		Context map[string]string `json:"context"`
	}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("entry is not JSON: %v (%s)", err, buf.String())
	}
	if entry.Context["request_id"] != "req-7" || entry.Context["user_id"] != "u1" {
		t.Errorf("context = %v, want request_id and user_id", entry.Context)
	}
	if _, ok := fields["request_id"]; ok {
		t.Error("Record modified the caller's map")
	}
}

func TestRequestID(t *testing.T) {
	if id := RequestID(context.Background()); id != "" {
		t.Errorf("RequestID(empty) = %q, want empty", id)
	}
	ctx := WithRequestID(context.Background(), "req-42")
	if id := RequestID(ctx); id != "req-42" {
		t.Errorf("RequestID = %q, want req-42", id)
	}
}
