// Package logging provides leveled logging and step tracing for cleaner runs.
//
// Operational output goes through a leveled *slog.Logger. At debug or trace
// level a TraceLogger additionally records every simulation event as one
// JSON object per line in <dir>/steps.jsonl.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// LevelTrace logs every percept the agent reads.
const LevelTrace = slog.LevelDebug - 4

const TraceFile = "steps.jsonl"

var levels = map[string]slog.Level{
	"info":  slog.LevelInfo,
	"debug": slog.LevelDebug,
	"trace": LevelTrace,
}

// ParseLevel falls back to info for names it does not know.
func ParseLevel(s string) slog.Level {
	if lvl, ok := levels[strings.ToLower(s)]; ok {
		return lvl
	}
	return slog.LevelInfo
}

func ValidLevel(s string) bool {
	_, ok := levels[strings.ToLower(s)]
	return ok
}

// NewLogger returns a text logger writing to w at the named level.
func NewLogger(level string, w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       ParseLevel(level),
		ReplaceAttr: labelTrace,
	}))
}

func labelTrace(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey {
		return a
	}
	if lvl, _ := a.Value.Any().(slog.Level); lvl == LevelTrace {
		return slog.String(slog.LevelKey, "TRACE")
	}
	return a
}

// Discard drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// TraceLogger appends one JSON line per value. A nil *TraceLogger is usable.
type TraceLogger struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewTraceLogger opens dir/steps.jsonl for append. At info level no file is
// created and the returned logger is nil.
func NewTraceLogger(dir string, level string) (*TraceLogger, error) {
	if ParseLevel(level) >= slog.LevelInfo {
		return nil, nil
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating trace directory: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(dir, TraceFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("opening trace file: %w", err)
	}

	return &TraceLogger{file: f, enc: json.NewEncoder(f)}, nil
}

func (tl *TraceLogger) Log(v any) error {
	if tl == nil {
		return nil
	}

	tl.mu.Lock()
	defer tl.mu.Unlock()

	if tl.file == nil {
		return nil
	}
	return tl.enc.Encode(v)
}

func (tl *TraceLogger) Close() error {
	if tl == nil {
		return nil
	}

	tl.mu.Lock()
	defer tl.mu.Unlock()

	if tl.file == nil {
		return nil
	}
	err := tl.file.Close()
	tl.file = nil
	tl.enc = nil
	return err
}
