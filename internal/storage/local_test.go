package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestLocalStore_Open(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "lessons"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "lessons", "cat.webm"), []byte("audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := NewLocalStore(dir)

	rc, err := s.Open(context.Background(), "lessons/cat.webm")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "audio" {
		t.Errorf("data = %q, want audio", data)
	}

	if !s.Exists(context.Background(), "/lessons/cat.webm") {
		t.Error("Exists with leading slash = false, want true")
	}
	if s.Exists(context.Background(), "lessons/dog.webm") {
		t.Error("Exists for missing file = true, want false")
	}
	if s.Type() != "local" {
		t.Errorf("Type = %q, want local", s.Type())
	}
}

func TestLocalStore_RejectsEscape(t *testing.T) {
	s := NewLocalStore(t.TempDir())
	if _, err := s.Open(context.Background(), "../../etc/passwd"); err == nil {
		t.Error("expected error for key escaping audio dir")
	}
	if s.Exists(context.Background(), "../outside") {
		t.Error("Exists should be false for escaping key")
	}
}

func TestS3Store_Split(t *testing.T) {
	tests := []struct {
		name       string
		prefix     string
		key        string
		wantBucket string
		wantKey    string
		wantErr    bool
	}{
		{"plain", "", "recordings/u1/cat.webm", "recordings", "u1/cat.webm", false},
		{"prefixed", "prod", "recordings/cat.webm", "recordings", "prod/cat.webm", false},
		{"leading_slash", "", "/recordings/cat.webm", "recordings", "cat.webm", false},
		{"bucket_only", "", "recordings", "", "", true},
		{"empty_key", "", "recordings/", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &S3Store{prefix: tt.prefix}
			bucket, key, err := s.split(tt.key)
			if (err != nil) != tt.wantErr {
				t.Fatalf("split(%q) err = %v, wantErr %v", tt.key, err, tt.wantErr)
			}
			if bucket != tt.wantBucket || key != tt.wantKey {
				t.Errorf("split(%q) = (%q, %q), want (%q, %q)", tt.key, bucket, key, tt.wantBucket, tt.wantKey)
			}
		})
	}
}
