package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  slog.Level
	}{
		{"info", "info", slog.LevelInfo},
		{"debug", "debug", slog.LevelDebug},
		{"trace", "trace", LevelTrace},
		{"warn", "warn", slog.LevelWarn},
		{"warning alias", "warning", slog.LevelWarn},
		{"error", "error", slog.LevelError},
		{"uppercase DEBUG", "DEBUG", slog.LevelDebug},
		{"padded trace", " trace ", LevelTrace},
		{"unknown defaults to info", "verbose", slog.LevelInfo},
		{"empty defaults to info", "", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestValidLevel(t *testing.T) {
	for _, s := range []string{"info", "DEBUG", "trace", "warn", "error"} {
		if !ValidLevel(s) {
			t.Errorf("ValidLevel(%q) = false", s)
		}
	}
	for _, s := range []string{"", "verbose", "fatal"} {
		if ValidLevel(s) {
			t.Errorf("ValidLevel(%q) = true", s)
		}
	}
}

func TestNewLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		name       string
		level      string
		logAtDebug bool
		logAtInfo  bool
	}{
		{"info filters debug", "info", false, true},
		{"debug passes debug", "debug", true, true},
		{"trace passes debug", "trace", true, true},
		{"error filters info", "error", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(tt.level, &buf)

			logger.Debug("debug message")
			if got := strings.Contains(buf.String(), "debug message"); got != tt.logAtDebug {
				t.Errorf("debug message visible = %v, want %v (buf: %q)", got, tt.logAtDebug, buf.String())
			}

			buf.Reset()
			logger.Info("info message")
			if got := strings.Contains(buf.String(), "info message"); got != tt.logAtInfo {
				t.Errorf("info message visible = %v, want %v (buf: %q)", got, tt.logAtInfo, buf.String())
			}
		})
	}
}

func TestNewLogger_TraceLabel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("trace", &buf)
	logger.Log(context.Background(), LevelTrace, "round traced")

	if !strings.Contains(buf.String(), "level=TRACE") {
		t.Errorf("trace entry not labelled TRACE: %q", buf.String())
	}
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Error("Discard logger should not be enabled at any level")
	}
}

func TestDefaultDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	if got, want := DefaultDir(), filepath.Join(home, DirName); got != want {
		t.Errorf("DefaultDir() = %q, want %q", got, want)
	}
}

func TestNewDecisionLogger_InfoLevel(t *testing.T) {
	dir := t.TempDir()
	dl := NewDecisionLogger(dir, "info")
	if dl != nil {
		t.Error("expected nil DecisionLogger at info level")
	}

	dl.Log(map[string]any{"event": "round"})

	if _, err := os.Stat(filepath.Join(dir, "decisions.jsonl")); err == nil {
		t.Error("decisions.jsonl should not exist at info level")
	}
}

func TestNewDecisionLogger_DebugLevel(t *testing.T) {
	dir := t.TempDir()
	dl := NewDecisionLogger(dir, "debug")
	defer dl.Close()

	dl.Log(map[string]any{"event": "round", "stage": 2})

	data, err := os.ReadFile(filepath.Join(dir, "decisions.jsonl"))
	if err != nil {
		t.Fatalf("failed to read decisions.jsonl: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatalf("failed to parse JSONL entry: %v", err)
	}
	if entry["event"] != "round" {
		t.Errorf("event = %v, want round", entry["event"])
	}
	if entry["stage"] != float64(2) {
		t.Errorf("stage = %v, want 2", entry["stage"])
	}
	if _, ok := entry["time"]; !ok {
		t.Error("expected 'time' field in decision log entry")
	}
}

func TestDecisionLogger_With(t *testing.T) {
	dir := t.TempDir()
	root := NewDecisionLogger(dir, "trace")
	defer root.Close()

	run := root.With(map[string]any{"run_id": "abc", "stage": 0})
	run.Log(map[string]any{"event": "round", "stage": 1})
	root.Log(map[string]any{"event": "run_start"})

	data, err := os.ReadFile(filepath.Join(dir, "decisions.jsonl"))
	if err != nil {
		t.Fatalf("failed to read decisions.jsonl: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), string(data))
	}

	var first, second map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("parse first line: %v", err)
	}
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("parse second line: %v", err)
	}

	if first["run_id"] != "abc" {
		t.Errorf("run_id = %v, want abc", first["run_id"])
	}
	if first["stage"] != float64(1) {
		t.Errorf("stage = %v, want event value 1 to override field", first["stage"])
	}
	if _, ok := second["run_id"]; ok {
		t.Error("fields attached with With leaked into the parent logger")
	}
}

func TestDecisionLogger_NilSafety(t *testing.T) {
	var dl *DecisionLogger
	dl.Log(map[string]any{"event": "should_not_panic"})
	if child := dl.With(map[string]any{"run_id": "x"}); child != nil {
		t.Error("With on nil logger should return nil")
	}
	dl.Close()
}

func TestDecisionLogger_DoesNotMutateCallerMap(t *testing.T) {
	dl := NewDecisionLogger(t.TempDir(), "debug")
	defer dl.Close()

	event := map[string]any{"event": "round"}
	dl.Log(event)

	if _, hasTime := event["time"]; hasTime {
		t.Error("Log() should not mutate caller's map, but 'time' was injected")
	}
}

func TestDecisionLogger_CloseIsShared(t *testing.T) {
	dir := t.TempDir()
	root := NewDecisionLogger(dir, "debug")
	child := root.With(map[string]any{"run_id": "abc"})

	child.Log(map[string]any{"event": "before_close"})
	root.Close()
	child.Log(map[string]any{"event": "after_close"})
	child.Close()

	data, err := os.ReadFile(filepath.Join(dir, "decisions.jsonl"))
	if err != nil {
		t.Fatalf("failed to read decisions.jsonl: %v", err)
	}
	if strings.Contains(string(data), "after_close") {
		t.Error("child logger wrote after the shared file was closed")
	}
}

func TestNewDecisionLogger_CreatesDir(t *testing.T) {
	nested := filepath.Join(t.TempDir(), "sub", "dir")

	dl := NewDecisionLogger(nested, "debug")
	if dl == nil {
		t.Fatal("expected non-nil DecisionLogger when dir needs creation")
	}
	defer dl.Close()

	dl.Log(map[string]any{"event": "dir_create_test"})

	info, err := os.Stat(filepath.Join(nested, "decisions.jsonl"))
	if err != nil {
		t.Fatalf("decisions.jsonl should exist after dir creation: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file permissions = %o, want 0600", perm)
	}
}
