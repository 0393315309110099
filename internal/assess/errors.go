package assess

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind classifies why an evaluation did not produce an assessment.
type Kind string

const (
	KindRejectedInput       Kind = "rejected_input"
	KindTranscriptionFailed Kind = "transcription_failed"
	KindEvaluationFailed    Kind = "evaluation_failed"
)

// Sentinels matched by errors.Is against an *Error of the same kind.
var (
	ErrRejectedInput       = errors.New("rejected input")
	ErrTranscriptionFailed = errors.New("transcription failed")
	ErrEvaluationFailed    = errors.New("evaluation failed")
)

// Pipeline stages, used in errors, logs and metrics.
const (
	StageValidate   = "validate"
	StageIngest     = "ingest"
	StageAcoustic   = "acoustic"
	StageTranscribe = "transcribe"
	StageLexical    = "lexical"
	StagePersist    = "persist"
	StageHistory    = "history"
	StageEvaluate   = "evaluate"
)

// Error is the single error type surfaced by Service and Analyzer.
type Error struct {
	Kind   Kind
	Stage  string
	Fields map[string]string // offending request fields for KindRejectedInput
	Err    error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindRejectedInput:
		if len(e.Fields) == 0 {
			return "rejected input"
		}
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + " " + e.Fields[k]
		}
		return "rejected input: " + strings.Join(parts, "; ")
	case KindTranscriptionFailed:
		return fmt.Sprintf("transcription failed: %v", e.Err)
	}
	return fmt.Sprintf("evaluation failed at %s: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	switch target {
	case ErrRejectedInput:
		return e.Kind == KindRejectedInput
	case ErrTranscriptionFailed:
		return e.Kind == KindTranscriptionFailed
	case ErrEvaluationFailed:
		return e.Kind == KindEvaluationFailed
	}
	return false
}

func rejected(fields map[string]string) *Error {
	return &Error{Kind: KindRejectedInput, Stage: StageValidate, Fields: fields}
}

func evaluationFailed(stage string, err error) *Error {
	return &Error{Kind: KindEvaluationFailed, Stage: stage, Err: err}
}
