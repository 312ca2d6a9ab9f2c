package notebook

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	executedSuffix = "_executed"
	failedSuffix   = "_FAILED"
)

// Stem returns the file name of src without its extension.
func Stem(src string) string {
	base := filepath.Base(src)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func suffixedPath(outDir, src, suffix string) string {
	ext := filepath.Ext(src)
	if ext == "" {
		ext = ".ipynb"
	}
	return filepath.Join(outDir, Stem(src)+suffix+ext)
}

// ExecutedPath is where the fully executed copy of src is persisted.
func ExecutedPath(outDir, src string) string {
	return suffixedPath(outDir, src, executedSuffix)
}

// FailedPath is where the partially executed copy of src is persisted
// after a cell failure.
func FailedPath(outDir, src string) string {
	return suffixedPath(outDir, src, failedSuffix)
}

// EnsureOutputDir creates the output directory lazily. Safe to call
// from concurrent workers; creation is idempotent.
func EnsureOutputDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return fmt.Errorf("output directory is empty")
	}
	return os.MkdirAll(dir, 0o755)
}
