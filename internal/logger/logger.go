package logger

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// Zerolog's default time field is a unix integer; RFC3339 keeps the
// entries readable when replayed to the console.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}

const maxLogSuffixLen = 32

// Logger writes structured entries to a per-process log file. Console
// output stays on stdout/stderr; the file exists for post-mortem
// inspection and is removed after a clean run.
type Logger struct {
	mu   sync.Mutex
	file *os.File
	zl   zerolog.Logger
	path string
}

// NewLogger creates a log file named nbbatch-<pid>.log in the temp dir.
func NewLogger() (*Logger, error) {
	return NewLoggerWithSuffix("")
}

// NewLoggerWithSuffix appends a sanitized suffix to the log file name.
// Used when several loggers must coexist within one process.
func NewLoggerWithSuffix(suffix string) (*Logger, error) {
	name := fmt.Sprintf("%s-%d", PrimaryLogPrefix(), os.Getpid())
	if s := SanitizeLogSuffix(suffix); s != "" {
		name += "-" + s
	}
	path := filepath.Join(os.TempDir(), name+".log")

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600) // #nosec G304 -- path is built from the temp dir and our own pid
	if err != nil {
		return nil, fmt.Errorf("create log file %s: %w", path, err)
	}

	zl := zerolog.New(file).With().Timestamp().Logger()
	return &Logger{file: file, zl: zl, path: path}, nil
}

// SanitizeLogSuffix keeps only [a-zA-Z0-9_-] and caps the length so a
// caller-supplied suffix cannot break the log path.
func SanitizeLogSuffix(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		}
		if b.Len() >= maxLogSuffixLen {
			break
		}
	}
	return b.String()
}

func (l *Logger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

func (l *Logger) Debug(msg string) { l.log(zerolog.DebugLevel, msg) }
func (l *Logger) Info(msg string)  { l.log(zerolog.InfoLevel, msg) }
func (l *Logger) Warn(msg string)  { l.log(zerolog.WarnLevel, msg) }
func (l *Logger) Error(msg string) { l.log(zerolog.ErrorLevel, msg) }

func (l *Logger) log(level zerolog.Level, msg string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return
	}
	l.zl.WithLevel(level).Msg(msg)
}

// Flush forces buffered entries to disk.
func (l *Logger) Flush() {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		_ = l.file.Sync()
	}
}

// Close stops the logger. The log file stays on disk; callers decide
// whether to remove it via RemoveLogFile.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// RemoveLogFile deletes the log file from disk.
func (l *Logger) RemoveLogFile() error {
	if l == nil || l.path == "" {
		return nil
	}
	err := removeLogFileFn(l.path)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

type logEntry struct {
	Level   string `json:"level"`
	Time    string `json:"time"`
	Message string `json:"message"`
}

// ExtractRecentErrors returns up to limit formatted error-level entries
// from the tail of the log file, oldest first.
func (l *Logger) ExtractRecentErrors(limit int) []string {
	if l == nil || l.path == "" || limit <= 0 {
		return nil
	}
	l.Flush()

	file, err := os.Open(l.path) // #nosec G304 -- reading back our own log file
	if err != nil {
		return nil
	}
	defer file.Close()

	var entries []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var entry logEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue
		}
		if entry.Level != zerolog.LevelErrorValue {
			continue
		}
		entries = append(entries, fmt.Sprintf("%s [ERROR] %s", entry.Time, entry.Message))
		if len(entries) > limit {
			entries = entries[1:]
		}
	}
	return entries
}
