// Package logging provides leveled logging and election tracing for electsim.
// It offers two complementary outputs:
//   - A leveled slog.Logger for stderr (operational output)
//   - A DecisionLogger for structured JSONL round traces (~/.electsim/decisions.jsonl)
package logging

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LevelTrace is a custom slog level below Debug. At this level every round
// of every election is traced, including per-round vote counts.
const LevelTrace = slog.LevelDebug - 4

// DirName is the per-user directory holding config, traces and the run database.
const DirName = ".electsim"

// ParseLevel maps a string level name to a slog.Level.
// Supported values: "error", "warn", "info", "debug", "trace" (case-insensitive).
// Unknown values default to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error":
		return slog.LevelError
	case "warn", "warning":
		return slog.LevelWarn
	case "debug":
		return slog.LevelDebug
	case "trace":
		return LevelTrace
	default:
		return slog.LevelInfo
	}
}

// ValidLevel reports whether s names a level ParseLevel understands.
func ValidLevel(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error", "warn", "warning", "info", "debug", "trace":
		return true
	}
	return false
}

// NewLogger creates a leveled slog.Logger writing to w.
func NewLogger(level string, w io.Writer) *slog.Logger {
	lvl := ParseLevel(level)
	opts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// DefaultDir returns ~/.electsim, or .electsim in the working directory when
// the home directory cannot be determined.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DirName
	}
	return filepath.Join(home, DirName)
}

type decisionFile struct {
	mu   sync.Mutex
	file *os.File
}

// DecisionLogger writes structured election events to a JSONL file.
// It is safe for concurrent use. A nil DecisionLogger is safe to use;
// all methods are no-ops on nil receiver.
type DecisionLogger struct {
	out    *decisionFile
	fields map[string]any
}

// NewDecisionLogger creates a decision logger writing to dir/decisions.jsonl.
// Below debug level it returns nil and no file is created.
// At "debug" or "trace" level, the file is opened for append.
// Returns nil if the file cannot be opened. All methods are nil-safe.
func NewDecisionLogger(dir string, level string) *DecisionLogger {
	if ParseLevel(level) > slog.LevelDebug {
		return nil
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil
	}

	path := filepath.Join(dir, "decisions.jsonl")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil
	}

	return &DecisionLogger{out: &decisionFile{file: f}}
}

// With returns a logger that adds fields to every event. The child shares the
// parent's file. Safe to call on nil receiver.
func (dl *DecisionLogger) With(fields map[string]any) *DecisionLogger {
	if dl == nil {
		return nil
	}
	merged := make(map[string]any, len(dl.fields)+len(fields))
	for k, v := range dl.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &DecisionLogger{out: dl.out, fields: merged}
}

// Log writes an event as a single JSONL line. Event keys override fields
// attached with With, and a "time" field is added. The caller's map is not
// mutated. Safe to call on nil receiver.
func (dl *DecisionLogger) Log(event map[string]any) {
	if dl == nil || dl.out == nil {
		return
	}

	entry := make(map[string]any, len(dl.fields)+len(event)+1)
	for k, v := range dl.fields {
		entry[k] = v
	}
	for k, v := range event {
		entry[k] = v
	}
	entry["time"] = time.Now().UTC().Format(time.RFC3339Nano)

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	data = append(data, '\n')

	dl.out.mu.Lock()
	defer dl.out.mu.Unlock()
	if dl.out.file == nil {
		return
	}
	_, _ = dl.out.file.Write(data)
}

// Close closes the underlying file, shared with every logger derived through
// With. Safe to call on nil receiver.
func (dl *DecisionLogger) Close() {
	if dl == nil || dl.out == nil {
		return
	}

	dl.out.mu.Lock()
	defer dl.out.mu.Unlock()
	if dl.out.file != nil {
		dl.out.file.Close()
		dl.out.file = nil
	}
}
