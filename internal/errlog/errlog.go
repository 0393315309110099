// Package errlog keeps an append-only JSON-lines record of failed external
// calls and failed assessments, separate from the process log.
package errlog

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"
)

// Log appends one JSON object per failure. It is safe for concurrent use.
type Log struct {
	closer io.Closer
	log    zerolog.Logger
}

// Open creates path and its parent directories if needed and opens it for appending.
func Open(path string) (*Log, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create error log dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open error log: %w", err)
	}
	l := New(f)
	l.closer = f
	return l, nil
}

// New writes entries to w.
func New(w io.Writer) *Log {
	return &Log{log: zerolog.New(zerolog.SyncWriter(w)).With().Timestamp().Logger()}
}

// Nop discards every entry.
func Nop() *Log {
	return &Log{log: zerolog.Nop()}
}

// Record appends an entry for err raised at stage, with optional request
// context. The request id stored in ctx, if any, is added to that context.
func (l *Log) Record(ctx context.Context, stage string, err error, fields map[string]string) {
	if l == nil {
		return
	}
	ev := l.log.Error().Str("stage", stage).Err(err)
	if id := RequestID(ctx); id != "" {
		merged := make(map[string]string, len(fields)+1)
		for k, v := range fields {
			merged[k] = v
		}
		merged["request_id"] = id
		fields = merged
	}
	if len(fields) > 0 {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		dict := zerolog.Dict()
		for _, k := range keys {
			dict = dict.Str(k, fields[k])
		}
		ev = ev.Dict("context", dict)
	}
	ev.Msg(stage + " failed")
}

// Close closes the underlying file, if any.
func (l *Log) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

type requestIDKey struct{}

// WithRequestID returns a copy of ctx carrying the request id that failures
// recorded on its behalf are tagged with.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the id stored by WithRequestID, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
