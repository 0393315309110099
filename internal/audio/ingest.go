package audio

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/snarg/speakscore/internal/metrics"
	"github.com/snarg/speakscore/internal/storage"
)

const tempPrefix = "speakscore-"

// IngestorOptions configures an Ingestor.
type IngestorOptions struct {
	TempDir      string
	FetchTimeout time.Duration
	MaxBytes     int64
	Transcoder   Transcoder
	Sources      storage.Sources // optional backends for s3:// and file:// URLs
	HTTPClient   *http.Client
	Log          zerolog.Logger
}

// Ingestor downloads recordings and turns them into decodable WAV files.
type Ingestor struct {
	opts   IngestorOptions
	client *http.Client
	log    zerolog.Logger
}

// NewIngestor creates an Ingestor. A nil HTTPClient gets one with FetchTimeout.
func NewIngestor(opts IngestorOptions) *Ingestor {
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.FetchTimeout}
	}
	return &Ingestor{
		opts:   opts,
		client: client,
		log:    opts.Log.With().Str("component", "ingest").Logger(),
	}
}

// Clip is a per-request handle on the downloaded source and its WAV rendition.
// Release must be called once the waveform is no longer needed; it is safe to
// call more than once.
type Clip struct {
	ID         string
	URL        string
	SourcePath string
	WAVPath    string
	Bytes      int64

	once sync.Once
}

// Release deletes both temporary files.
func (c *Clip) Release() {
	if c == nil {
		return
	}
	c.once.Do(func() {
		removeTemp(c.SourcePath)
		removeTemp(c.WAVPath)
	})
}

// Decode reads the WAV rendition.
func (c *Clip) Decode() (*PCM, error) {
	return DecodeFile(c.WAVPath)
}

// Fetch downloads rawURL to a uniquely named temp file and transcodes it to WAV.
// On any error both temp files are already gone when Fetch returns.
func (in *Ingestor) Fetch(ctx context.Context, rawURL string) (*Clip, error) {
	id := uuid.NewString()
	clip := &Clip{
		ID:         id,
		URL:        rawURL,
		SourcePath: filepath.Join(in.opts.TempDir, tempPrefix+id+".src"),
		WAVPath:    filepath.Join(in.opts.TempDir, tempPrefix+id+".wav"),
	}

	n, err := in.download(ctx, rawURL, clip.SourcePath)
	if err != nil {
		clip.Release()
		return nil, err
	}
	clip.Bytes = n
	metrics.IngestBytesTotal.Add(float64(n))

	err = in.opts.Transcoder.Transcode(ctx, clip.SourcePath, clip.WAVPath)
	if _, statErr := os.Stat(clip.WAVPath); statErr == nil {
		metrics.TempFilesActive.Inc()
	}
	if err != nil {
		clip.Release()
		return nil, &IngestError{Step: "transcode", URL: rawURL, Err: err}
	}

	in.log.Debug().
		Str("clip_id", id).
		Int64("bytes", n).
		Msg("recording ingested")
	return clip, nil
}

func (in *Ingestor) download(ctx context.Context, rawURL, dest string) (int64, error) {
	body, err := in.open(ctx, rawURL)
	if err != nil {
		return 0, &IngestError{Step: "fetch", URL: rawURL, Err: err}
	}
	defer body.Close()

	f, err := os.OpenFile(dest, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return 0, &IngestError{Step: "store", URL: rawURL, Err: err}
	}
	metrics.TempFilesActive.Inc()

	src := io.Reader(body)
	if in.opts.MaxBytes > 0 {
		src = io.LimitReader(body, in.opts.MaxBytes+1)
	}
	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, &IngestError{Step: "fetch", URL: rawURL, Err: err}
	}
	if in.opts.MaxBytes > 0 && n > in.opts.MaxBytes {
		return n, &IngestError{Step: "fetch", URL: rawURL, Err: fmt.Errorf("recording exceeds %d bytes", in.opts.MaxBytes)}
	}
	if n == 0 {
		return 0, &IngestError{Step: "fetch", URL: rawURL, Err: fmt.Errorf("empty response body")}
	}
	return n, nil
}

func (in *Ingestor) open(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		resp, err := in.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("download: %w", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			resp.Body.Close()
			return nil, fmt.Errorf("download: unexpected status %d", resp.StatusCode)
		}
		return resp.Body, nil
	default:
		src, ok := in.opts.Sources[strings.ToLower(u.Scheme)]
		if !ok {
			return nil, fmt.Errorf("unsupported url scheme %q", u.Scheme)
		}
		key := u.Host + u.Path
		if !src.Exists(ctx, key) {
			return nil, fmt.Errorf("%s %q: %w", src.Type(), key, ErrNotFound)
		}
		return src.Open(ctx, key)
	}
}

// presignTTL bounds how long a presigned URL handed to an external service stays valid.
const presignTTL = 15 * time.Minute

// PublicURL returns a URL an external service can fetch the recording from.
// HTTP(S) URLs are returned unchanged; object-store URLs are presigned when the
// backing source supports it.
func (in *Ingestor) PublicURL(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme == "http" || scheme == "https" {
		return rawURL, nil
	}
	src, ok := in.opts.Sources[scheme]
	if !ok {
		return "", fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}
	p, ok := src.(storage.Presigner)
	if !ok {
		return "", fmt.Errorf("%s recordings are not reachable by external services", src.Type())
	}
	return p.Presign(ctx, u.Host+u.Path, presignTTL)
}

// Supports reports whether Fetch can handle the URL's scheme.
func (in *Ingestor) Supports(u *url.URL) bool {
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return u.Host != ""
	}
	_, ok := in.opts.Sources[strings.ToLower(u.Scheme)]
	return ok
}

func removeTemp(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err == nil {
		metrics.TempFilesActive.Dec()
	}
}
