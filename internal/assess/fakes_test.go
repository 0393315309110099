package assess

import (
	"context"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/snarg/speakscore/internal/acoustic"
	"github.com/snarg/speakscore/internal/audio"
	"github.com/snarg/speakscore/internal/database"
)

type fakeIngestor struct {
	dir      string
	fetchErr error
	fetched  int

	mu    sync.Mutex
	clips []*audio.Clip
}

func newFakeIngestor(t *testing.T) *fakeIngestor {
	t.Helper()
	return &fakeIngestor{dir: t.TempDir()}
}

func (f *fakeIngestor) Supports(u *url.URL) bool {
	switch u.Scheme {
	case "http", "https", "s3", "file":
		return true
	}
	return false
}

func (f *fakeIngestor) Fetch(ctx context.Context, rawURL string) (*audio.Clip, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	n := len(f.clips)
	clip := &audio.Clip{
		URL:        rawURL,
		SourcePath: filepath.Join(f.dir, "clip"+string(rune('a'+n))+".src"),
		WAVPath:    filepath.Join(f.dir, "clip"+string(rune('a'+n))+".wav"),
	}
	for _, p := range []string{clip.SourcePath, clip.WAVPath} {
		if err := os.WriteFile(p, []byte("x"), 0o600); err != nil {
			return nil, err
		}
	}
	f.clips = append(f.clips, clip)
	return clip, nil
}

func (f *fakeIngestor) PublicURL(ctx context.Context, rawURL string) (string, error) {
	return rawURL, nil
}

// leftovers returns temp files still on disk.
func (f *fakeIngestor) leftovers(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

type fakePolicy struct {
	name  string
	marks float64
	res   acoustic.Result
	err   error
	calls int
	mu    sync.Mutex
}

func (p *fakePolicy) Name() string {
	if p.name == "" {
		return acoustic.PolicyVolume
	}
	return p.name
}

func (p *fakePolicy) Score(ctx context.Context, clip *audio.Clip, language string) (acoustic.Result, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	if p.err != nil {
		return acoustic.Result{}, p.err
	}
	if _, err := os.Stat(clip.WAVPath); err != nil {
		return acoustic.Result{}, err
	}
	res := p.res
	res.Policy = p.Name()
	if res.Marks == 0 {
		res.Marks = p.marks
	}
	return res, nil
}

type fakeTranscriber struct {
	text  string
	err   error
	calls int
}

func (f *fakeTranscriber) Name() string { return "fake" }

func (f *fakeTranscriber) Transcribe(ctx context.Context, audioURL, language string) (string, error) {
	f.calls++
	return f.text, f.err
}

type fakeStore struct {
	insertErr error
	listErr   error
	rows      []database.AssessmentRow
	total     int

	mu       sync.Mutex
	inserted []*database.AssessmentRow
}

func (s *fakeStore) InsertAssessment(ctx context.Context, row *database.AssessmentRow) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.mu.Lock()
	s.inserted = append(s.inserted, row)
	s.mu.Unlock()
	return nil
}

func (s *fakeStore) ListAssessmentsByUser(ctx context.Context, userID string, limit, offset int) ([]database.AssessmentRow, int, error) {
	if s.listErr != nil {
		return nil, 0, s.listErr
	}
	return s.rows, s.total, nil
}

type fakeNotifier struct {
	err    error
	topics []string
}

func (n *fakeNotifier) Publish(topic string, payload any) error {
	n.topics = append(n.topics, topic)
	return n.err
}

var errBoom = errors.New("boom")
