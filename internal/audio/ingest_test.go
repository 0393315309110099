package audio

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/speakscore/internal/storage"
)

func newTestIngestor(t *testing.T, tr Transcoder, maxBytes int64) (*Ingestor, string) {
	t.Helper()
	dir := t.TempDir()
	return NewIngestor(IngestorOptions{
		TempDir:    dir,
		MaxBytes:   maxBytes,
		Transcoder: tr,
		Log:        zerolog.Nop(),
	}), dir
}

func audioServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetch_Success(t *testing.T) {
	srv := audioServer(t, http.StatusOK, "fake-webm-bytes")
	tr := &fakeTranscoder{}
	in, dir := newTestIngestor(t, tr, 0)

	clip, err := in.Fetch(context.Background(), srv.URL+"/rec.webm")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if clip.Bytes != int64(len("fake-webm-bytes")) {
		t.Errorf("Bytes = %d, want %d", clip.Bytes, len("fake-webm-bytes"))
	}
	if filepath.Dir(clip.WAVPath) != dir || !strings.HasPrefix(filepath.Base(clip.WAVPath), "speakscore-") {
		t.Errorf("WAVPath = %q, want speakscore-* under %q", clip.WAVPath, dir)
	}
	if tr.lastInput != clip.SourcePath {
		t.Errorf("transcoder input = %q, want %q", tr.lastInput, clip.SourcePath)
	}

	pcm, err := clip.Decode()
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if pcm.SampleRate != 16000 {
		t.Errorf("SampleRate = %d, want 16000", pcm.SampleRate)
	}

	clip.Release()
	clip.Release() // idempotent
	if left := tempEntries(t, dir); len(left) != 0 {
		t.Errorf("temp files after Release = %v, want none", left)
	}
}

func TestFetch_UniqueNames(t *testing.T) {
	srv := audioServer(t, http.StatusOK, "x")
	in, _ := newTestIngestor(t, &fakeTranscoder{}, 0)

	a, err := in.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Release()
	b, err := in.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Release()

	if a.SourcePath == b.SourcePath || a.WAVPath == b.WAVPath {
		t.Error("two fetches produced the same temp paths")
	}
}

func TestFetch_FailuresLeaveNoFiles(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		tr       *fakeTranscoder
		maxBytes int64
		step     string
	}{
		{"not_found", http.StatusNotFound, "nope", &fakeTranscoder{}, 0, "fetch"},
		{"server_error", http.StatusInternalServerError, "", &fakeTranscoder{}, 0, "fetch"},
		{"empty_body", http.StatusOK, "", &fakeTranscoder{}, 0, "fetch"},
		{"too_large", http.StatusOK, "0123456789", &fakeTranscoder{}, 5, "fetch"},
		{"transcode_error", http.StatusOK, "data", &fakeTranscoder{err: errTranscode}, 0, "transcode"},
		{"transcode_partial", http.StatusOK, "data", &fakeTranscoder{err: errTranscode, partial: true}, 0, "transcode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := audioServer(t, tt.status, tt.body)
			in, dir := newTestIngestor(t, tt.tr, tt.maxBytes)

			clip, err := in.Fetch(context.Background(), srv.URL)
			if err == nil {
				clip.Release()
				t.Fatal("expected error")
			}
			if !errors.Is(err, ErrIngestion) {
				t.Errorf("error %v does not match ErrIngestion", err)
			}
			var ie *IngestError
			if !errors.As(err, &ie) || ie.Step != tt.step {
				t.Errorf("IngestError step = %v, want %q", ie, tt.step)
			}
			if left := tempEntries(t, dir); len(left) != 0 {
				t.Errorf("temp files left = %v, want none", left)
			}
		})
	}
}

func TestFetch_NetworkError(t *testing.T) {
	srv := audioServer(t, http.StatusOK, "x")
	addr := srv.URL
	srv.Close()

	in, dir := newTestIngestor(t, &fakeTranscoder{}, 0)
	_, err := in.Fetch(context.Background(), addr)
	if !errors.Is(err, ErrIngestion) {
		t.Fatalf("err = %v, want ErrIngestion", err)
	}
	if left := tempEntries(t, dir); len(left) != 0 {
		t.Errorf("temp files left = %v, want none", left)
	}
}

func TestFetch_LocalSource(t *testing.T) {
	audioDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(audioDir, "cat.webm"), []byte("local-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	in := NewIngestor(IngestorOptions{
		TempDir:    dir,
		Transcoder: &fakeTranscoder{},
		Sources:    storage.Sources{"file": storage.NewLocalStore(audioDir)},
		Log:        zerolog.Nop(),
	})

	clip, err := in.Fetch(context.Background(), "file:///cat.webm")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	defer clip.Release()
	if clip.Bytes != int64(len("local-bytes")) {
		t.Errorf("Bytes = %d, want %d", clip.Bytes, len("local-bytes"))
	}
}

func TestFetch_LocalSourceMissing(t *testing.T) {
	dir := t.TempDir()
	tr := &fakeTranscoder{}
	in := NewIngestor(IngestorOptions{
		TempDir:    dir,
		Transcoder: tr,
		Sources:    storage.Sources{"file": storage.NewLocalStore(t.TempDir())},
		Log:        zerolog.Nop(),
	})

	_, err := in.Fetch(context.Background(), "file:///missing.webm")
	if !errors.Is(err, ErrIngestion) || !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrIngestion wrapping ErrNotFound", err)
	}
	if tr.lastInput != "" {
		t.Errorf("transcoder ran on %q for a missing recording", tr.lastInput)
	}
	if left := tempEntries(t, dir); len(left) != 0 {
		t.Errorf("temp files left = %v, want none", left)
	}
}

func TestFetch_UnsupportedScheme(t *testing.T) {
	in, _ := newTestIngestor(t, &fakeTranscoder{}, 0)
	_, err := in.Fetch(context.Background(), "ftp://example.com/a.mp3")
	if !errors.Is(err, ErrIngestion) {
		t.Errorf("err = %v, want ErrIngestion", err)
	}
}

func TestSupports(t *testing.T) {
	in := NewIngestor(IngestorOptions{
		Transcoder: &fakeTranscoder{},
		Sources:    storage.Sources{"s3": nil},
		Log:        zerolog.Nop(),
	})
	tests := []struct {
		raw  string
		want bool
	}{
		{"https://res.cloudinary.com/a/rec.webm", true},
		{"http://localhost:9000/a.webm", true},
		{"s3://bucket/key.webm", true},
		{"file:///a.webm", false},
		{"https:///no-host", false},
	}
	for _, tt := range tests {
		u, err := url.Parse(tt.raw)
		if err != nil {
			t.Fatal(err)
		}
		if got := in.Supports(u); got != tt.want {
			t.Errorf("Supports(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

type fakePresigner struct {
	storage.Source
	key string
}

func (f *fakePresigner) Presign(ctx context.Context, key string, ttl time.Duration) (string, error) {
	f.key = key
	return "https://bucket.example/" + key + "?sig=1", nil
}

func TestPublicURL(t *testing.T) {
	presigner := &fakePresigner{Source: storage.NewLocalStore(t.TempDir())}
	in := NewIngestor(IngestorOptions{
		Transcoder: &fakeTranscoder{},
		Sources: storage.Sources{
			"s3":   presigner,
			"file": storage.NewLocalStore(t.TempDir()),
		},
		Log: zerolog.Nop(),
	})

	got, err := in.PublicURL(context.Background(), "https://cdn.example/a.webm")
	if err != nil || got != "https://cdn.example/a.webm" {
		t.Errorf("https: got %q, %v", got, err)
	}

	got, err = in.PublicURL(context.Background(), "s3://recordings/u1/a.webm")
	if err != nil {
		t.Fatalf("s3: %v", err)
	}
	if presigner.key != "recordings/u1/a.webm" || !strings.HasPrefix(got, "https://bucket.example/") {
		t.Errorf("s3: got %q (key %q)", got, presigner.key)
	}

	if _, err := in.PublicURL(context.Background(), "file:///a.webm"); err == nil {
		t.Error("file: expected error for a source without presigning")
	}
	if _, err := in.PublicURL(context.Background(), "ftp://x/a.webm"); err == nil {
		t.Error("ftp: expected error")
	}
}
