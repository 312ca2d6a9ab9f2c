package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestLogger(t *testing.T) *Logger {
	t.Helper()
	t.Setenv("TMPDIR", t.TempDir())
	logger, err := NewLogger()
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	t.Cleanup(func() {
		_ = logger.Close()
		_ = os.Remove(logger.Path())
	})
	return logger
}

func TestNewLoggerCreatesPidNamedFile(t *testing.T) {
	logger := newTestLogger(t)

	wantName := fmt.Sprintf("nbbatch-%d.log", os.Getpid())
	if got := filepath.Base(logger.Path()); got != wantName {
		t.Errorf("log file name = %q, want %q", got, wantName)
	}
	if _, err := os.Stat(logger.Path()); err != nil {
		t.Fatalf("log file not created: %v", err)
	}
}

func TestLoggerWritesLeveledEntries(t *testing.T) {
	logger := newTestLogger(t)

	logger.Debug("debug entry")
	logger.Info("info entry")
	logger.Warn("warn entry")
	logger.Error("error entry")
	logger.Flush()

	data, err := os.ReadFile(logger.Path())
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	for _, want := range []string{
		`"level":"debug"`,
		`"level":"info"`,
		`"level":"warn"`,
		`"level":"error"`,
		`"message":"error entry"`,
	} {
		if !strings.Contains(content, want) {
			t.Errorf("log file missing %s:\n%s", want, content)
		}
	}
}

func TestNewLoggerWithSuffix(t *testing.T) {
	t.Setenv("TMPDIR", t.TempDir())
	logger, err := NewLoggerWithSuffix("worker")
	if err != nil {
		t.Fatalf("NewLoggerWithSuffix() error = %v", err)
	}
	defer func() {
		_ = logger.Close()
		_ = os.Remove(logger.Path())
	}()

	wantName := fmt.Sprintf("nbbatch-%d-worker.log", os.Getpid())
	if got := filepath.Base(logger.Path()); got != wantName {
		t.Errorf("log file name = %q, want %q", got, wantName)
	}
}

func TestSanitizeLogSuffix(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"worker", "worker"},
		{"a/b\\c", "abc"},
		{"../../etc/passwd", "etcpasswd"},
		{"mixed-OK_123", "mixed-OK_123"},
		{"", ""},
		{strings.Repeat("x", 100), strings.Repeat("x", maxLogSuffixLen)},
	}
	for _, tt := range tests {
		if got := SanitizeLogSuffix(tt.in); got != tt.want {
			t.Errorf("SanitizeLogSuffix(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExtractRecentErrors(t *testing.T) {
	logger := newTestLogger(t)

	logger.Info("just info")
	logger.Error("first failure")
	logger.Warn("just a warning")
	logger.Error("second failure")
	logger.Error("third failure")

	entries := logger.ExtractRecentErrors(2)
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2 (limit applied): %v", len(entries), entries)
	}
	if !strings.Contains(entries[0], "[ERROR] second failure") {
		t.Errorf("entries[0] = %q, want second failure", entries[0])
	}
	if !strings.Contains(entries[1], "[ERROR] third failure") {
		t.Errorf("entries[1] = %q, want third failure", entries[1])
	}
	for _, entry := range entries {
		if strings.Contains(entry, "warning") || strings.Contains(entry, "just info") {
			t.Errorf("non-error entry leaked into %q", entry)
		}
	}
}

func TestExtractRecentErrorsEmpty(t *testing.T) {
	logger := newTestLogger(t)
	logger.Info("nothing wrong")

	if entries := logger.ExtractRecentErrors(10); len(entries) != 0 {
		t.Errorf("entries = %v, want none", entries)
	}
	if entries := logger.ExtractRecentErrors(0); entries != nil {
		t.Errorf("limit 0 should return nil, got %v", entries)
	}
}

func TestRemoveLogFile(t *testing.T) {
	logger := newTestLogger(t)
	if err := logger.Close(); err != nil {
		t.Fatal(err)
	}
	if err := logger.RemoveLogFile(); err != nil {
		t.Fatalf("RemoveLogFile() error = %v", err)
	}
	if _, err := os.Stat(logger.Path()); !os.IsNotExist(err) {
		t.Fatal("log file should be gone")
	}
	// Already removed: not an error.
	if err := logger.RemoveLogFile(); err != nil {
		t.Errorf("second RemoveLogFile() error = %v", err)
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	var logger *Logger
	logger.Debug("x")
	logger.Info("x")
	logger.Warn("x")
	logger.Error("x")
	logger.Flush()
	if err := logger.Close(); err != nil {
		t.Errorf("Close() on nil = %v", err)
	}
	if err := logger.RemoveLogFile(); err != nil {
		t.Errorf("RemoveLogFile() on nil = %v", err)
	}
	if logger.Path() != "" {
		t.Error("Path() on nil should be empty")
	}
	if entries := logger.ExtractRecentErrors(5); entries != nil {
		t.Errorf("ExtractRecentErrors() on nil = %v", entries)
	}
}

func TestActiveLoggerLifecycle(t *testing.T) {
	logger := newTestLogger(t)

	SetLogger(logger)
	defer SetLogger(nil)

	if ActiveLogger() != logger {
		t.Fatal("ActiveLogger should return the installed logger")
	}

	LogError("routed through the active logger")
	logger.Flush()

	data, err := os.ReadFile(logger.Path())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "routed through the active logger") {
		t.Error("LogError did not reach the active logger's file")
	}

	if err := CloseLogger(); err != nil {
		t.Fatalf("CloseLogger() error = %v", err)
	}
	if ActiveLogger() != nil {
		t.Error("ActiveLogger should be nil after CloseLogger")
	}
	// Idempotent once detached.
	if err := CloseLogger(); err != nil {
		t.Errorf("second CloseLogger() error = %v", err)
	}
}
