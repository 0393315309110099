package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
	"github.com/snarg/speakscore/internal/config"
)

// S3Store reads recordings from an S3-compatible object store.
type S3Store struct {
	client *s3.Client
	prefix string
	log    zerolog.Logger
}

// NewS3Store creates an S3 audio source from config.
func NewS3Store(cfg config.S3Config, log zerolog.Logger) (*S3Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	return &S3Store{
		client: s3.NewFromConfig(awsCfg, s3Opts...),
		prefix: strings.Trim(cfg.Prefix, "/"),
		log:    log.With().Str("component", "s3-source").Logger(),
	}, nil
}

// Ping checks that the credentials are accepted by the endpoint.
func (s *S3Store) Ping(ctx context.Context) error {
	_, err := s.client.ListBuckets(ctx, &s3.ListBucketsInput{})
	return err
}

func (s *S3Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	bucket, objKey, err := s.split(key)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &objKey,
	})
	if err != nil {
		return nil, err
	}
	return out.Body, nil
}

func (s *S3Store) Exists(ctx context.Context, key string) bool {
	bucket, objKey, err := s.split(key)
	if err != nil {
		return false
	}
	_, err = s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: &bucket,
		Key:    &objKey,
	})
	return err == nil
}

func (s *S3Store) Type() string { return "s3" }

// Presign returns a time-limited GET URL for the object.
func (s *S3Store) Presign(ctx context.Context, key string, ttl time.Duration) (string, error) {
	bucket, objKey, err := s.split(key)
	if err != nil {
		return "", err
	}
	req, err := s3.NewPresignClient(s.client).PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &objKey,
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return req.URL, nil
}

// split turns "{bucket}/{key}" into bucket and prefixed object key.
func (s *S3Store) split(key string) (string, string, error) {
	bucket, objKey, ok := strings.Cut(strings.TrimPrefix(key, "/"), "/")
	if !ok || bucket == "" || objKey == "" {
		return "", "", fmt.Errorf("invalid s3 key %q: want bucket/key", key)
	}
	if s.prefix != "" {
		objKey = s.prefix + "/" + objKey
	}
	return bucket, objKey, nil
}
