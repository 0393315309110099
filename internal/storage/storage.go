package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/speakscore/internal/config"
)

// Source abstracts the places a recording can be read from besides plain HTTP.
type Source interface {
	// Open returns a reader for the object. key format is backend specific:
	// "{bucket}/{object key}" for S3, a path relative to the audio dir for local.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists checks if the object can be opened.
	Exists(ctx context.Context, key string) bool

	// Type returns "local" or "s3".
	Type() string
}

// Presigner is implemented by sources that can hand out a temporary public URL
// for an object, so external services can fetch it directly.
type Presigner interface {
	Presign(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Sources holds the optional backends keyed by URL scheme.
type Sources map[string]Source

// New builds the configured sources. The local store is only registered when
// audioDir is set; S3 only when credentials are present. Returns an error if S3
// is configured but unreachable.
func New(cfg config.S3Config, audioDir string, log zerolog.Logger) (Sources, error) {
	sources := Sources{}
	if audioDir != "" {
		sources["file"] = NewLocalStore(audioDir)
	}
	if !cfg.Enabled() {
		return sources, nil
	}

	s3store, err := NewS3Store(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("S3 init failed: %w", err)
	}

	// Startup validation: verify credentials
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s3store.Ping(ctx); err != nil {
		return nil, fmt.Errorf("S3 startup check failed (endpoint=%q): %w", cfg.Endpoint, err)
	}
	log.Info().Str("endpoint", cfg.Endpoint).Msg("S3 connection verified")

	sources["s3"] = s3store
	return sources, nil
}
