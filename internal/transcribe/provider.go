package transcribe

import (
	"context"
	"errors"
	"fmt"
)

// Transcriber turns a publicly reachable recording into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioURL, language string) (string, error)
	Name() string // "assemblyai"
}

// ErrTimeout is returned when a job is still pending after the last poll.
var ErrTimeout = errors.New("transcription timed out")

// ServiceError is a failure reported by the transcription service itself:
// a rejected request or a job that ended in a failed state.
type ServiceError struct {
	JobID      string
	StatusCode int    // HTTP status when the request was rejected
	Status     string // job status when the job failed
	Message    string
}

func (e *ServiceError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("transcription service rejected request (status %d): %s", e.StatusCode, e.Message)
	case e.Message != "":
		return fmt.Sprintf("transcription job %s %s: %s", e.JobID, e.Status, e.Message)
	}
	return fmt.Sprintf("transcription job %s %s", e.JobID, e.Status)
}

// NetworkError means the service could not be reached or answered with
// something that could not be understood.
type NetworkError struct {
	Op  string // "submit", "poll"
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("transcription %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }
