package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/speakscore/internal/metrics"
)

// Job statuses reported by the service.
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	statusError      = "error"
)

// ClientOptions configures a Client.
type ClientOptions struct {
	BaseURL        string // e.g. https://api.assemblyai.com/v2
	APIKey         string
	PollInterval   time.Duration
	MaxAttempts    int
	RequestTimeout time.Duration // per HTTP request
	HTTPClient     *http.Client
	Log            zerolog.Logger
}

// Client talks to an AssemblyAI-compatible transcript API: submit a job for an
// audio URL, then poll it until it completes or fails.
type Client struct {
	opts   ClientOptions
	client *http.Client
	log    zerolog.Logger
}

// NewClient creates a transcription client. Zero PollInterval and MaxAttempts
// default to 3s and 20.
func NewClient(opts ClientOptions) *Client {
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.PollInterval <= 0 {
		opts.PollInterval = 3 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 20
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.RequestTimeout}
	}
	return &Client{
		opts:   opts,
		client: client,
		log:    opts.Log.With().Str("component", "transcribe").Logger(),
	}
}

func (c *Client) Name() string { return "assemblyai" }

// transcript is the subset of the job resource the client reads.
type transcript struct {
	ID     string  `json:"id"`
	Status string  `json:"status"`
	Text   *string `json:"text"`
	Error  string  `json:"error"`
}

// Transcribe submits audioURL and waits for the result. It returns the raw
// transcript text, which may be empty.
func (c *Client) Transcribe(ctx context.Context, audioURL, language string) (string, error) {
	id, err := c.submit(ctx, audioURL, language)
	if err != nil {
		return "", err
	}
	log := c.log.With().Str("job_id", id).Logger()
	log.Debug().Str("language", language).Msg("transcription submitted")

	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	var lastErr error
	for attempt := 1; attempt <= c.opts.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}

		job, err := c.get(ctx, id)
		if err != nil {
			var se *ServiceError
			if errors.As(err, &se) || ctx.Err() != nil {
				metrics.TranscriptionPollAttempts.Observe(float64(attempt))
				return "", err
			}
			lastErr = err
			log.Debug().Err(err).Int("attempt", attempt).Msg("poll failed, retrying")
			continue
		}
		lastErr = nil

		switch job.Status {
		case StatusCompleted:
			metrics.TranscriptionPollAttempts.Observe(float64(attempt))
			if job.Text == nil {
				return "", nil
			}
			return *job.Text, nil
		case StatusFailed, statusError:
			metrics.TranscriptionPollAttempts.Observe(float64(attempt))
			return "", &ServiceError{JobID: id, Status: StatusFailed, Message: job.Error}
		}
	}

	metrics.TranscriptionPollAttempts.Observe(float64(c.opts.MaxAttempts))
	if lastErr != nil {
		return "", lastErr
	}
	return "", fmt.Errorf("%w: job %s still pending after %d polls", ErrTimeout, id, c.opts.MaxAttempts)
}

func (c *Client) submit(ctx context.Context, audioURL, language string) (string, error) {
	body, err := json.Marshal(map[string]string{
		"audio_url":     audioURL,
		"language_code": LanguageCode(language),
	})
	if err != nil {
		return "", fmt.Errorf("marshal transcript request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.BaseURL+"/transcript", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var job transcript
	if err := c.do(req, "submit", &job); err != nil {
		return "", err
	}
	if job.ID == "" {
		return "", &NetworkError{Op: "submit", Err: errors.New("response has no job id")}
	}
	return job.ID, nil
}

func (c *Client) get(ctx context.Context, id string) (*transcript, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.BaseURL+"/transcript/"+id, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	var job transcript
	if err := c.do(req, "poll", &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// do sends req and decodes a JSON body into out. 4xx responses are service
// errors; transport failures, 5xx and undecodable bodies are network errors.
func (c *Client) do(req *http.Request, op string, out any) error {
	req.Header.Set("Authorization", c.opts.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Op: op, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return &ServiceError{StatusCode: resp.StatusCode, Message: errorMessage(body)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &NetworkError{Op: op, Err: fmt.Errorf("unexpected status %d: %s", resp.StatusCode, errorMessage(body))}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &NetworkError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func errorMessage(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return e.Error
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}

// regional codes the service accepts; every other code is sent as its base language.
var regionalCodes = map[string]string{
	"en-us": "en_us",
	"en-gb": "en_uk",
	"en-au": "en_au",
}

// LanguageCode maps a BCP 47 style code such as "es-MX" onto the service's codes.
func LanguageCode(language string) string {
	code := strings.ToLower(strings.TrimSpace(language))
	if mapped, ok := regionalCodes[code]; ok {
		return mapped
	}
	base, _, _ := strings.Cut(code, "-")
	return base
}
