package audio

import (
	"errors"
	"fmt"
)

var (
	// ErrIngestion is wrapped by every failure to fetch or transcode a recording.
	ErrIngestion = errors.New("ingestion failed")

	// ErrNotFound is wrapped when an s3:// or file:// recording does not exist.
	ErrNotFound = errors.New("recording not found")

	// ErrDecode is returned when a waveform file is empty or malformed.
	ErrDecode = errors.New("decode failed")
)

// IngestError carries the ingestion step that failed. It matches ErrIngestion
// with errors.Is.
type IngestError struct {
	Step string // "fetch", "store", "transcode"
	URL  string
	Err  error
}

func (e *IngestError) Error() string {
	return fmt.Sprintf("ingestion failed at %s (%s): %v", e.Step, e.URL, e.Err)
}

func (e *IngestError) Unwrap() error { return e.Err }

func (e *IngestError) Is(target error) bool { return target == ErrIngestion }
