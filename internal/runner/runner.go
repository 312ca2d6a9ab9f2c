// Package runner orchestrates one batch: a sequential prefix of
// notebooks, then the final one or two on a small parallel pool, with
// every attempted notebook persisted to the output directory.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	config "nbbatch/internal/config"
	engine "nbbatch/internal/engine"
	ilogger "nbbatch/internal/logger"
	notebook "nbbatch/internal/notebook"
)

var nowFn = time.Now

// Outcome captures the result of one notebook execution attempt.
type Outcome struct {
	Path      string        // resolved input path
	SavedPath string        // persisted output file; empty if nothing was written
	Elapsed   time.Duration // engine wall-clock time
	Err       error
}

func (o Outcome) Failed() bool { return o.Err != nil }

// Partition splits an ordered notebook list: the last min(2, n) entries
// form the parallel subset, everything before them runs sequentially.
func Partition(paths []string) (sequential, parallel []string) {
	n := len(paths)
	k := config.WorkerCount(n)
	return paths[:n-k], paths[n-k:]
}

// Resolve makes a notebook path absolute against base.
func Resolve(base, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(base, path)
}

// ExecuteAndSave runs one notebook and persists the resulting document.
// A missing input fails before the engine is invoked and writes
// nothing. A cell failure persists the partial document under the
// _FAILED suffix before propagating; success persists under _executed.
// Exactly one output file is written per attempted notebook.
func ExecuteAndSave(ctx context.Context, eng engine.Engine, path, outDir string, opts engine.Options) Outcome {
	out := Outcome{Path: path}

	if _, err := os.Stat(path); err != nil {
		out.Err = fmt.Errorf("notebook not found: %w", err)
		return out
	}

	doc, err := notebook.Read(path)
	if err != nil {
		out.Err = err
		return out
	}

	runOpts := opts
	if runOpts.WorkDir == "" {
		// Relative paths inside the notebook resolve against its own directory.
		runOpts.WorkDir = filepath.Dir(path)
	}

	ilogger.LogInfo(fmt.Sprintf("Executing notebook %s (cells=%d, kernel=%s)", path, len(doc.Cells), runOpts.Kernel))

	start := nowFn()
	execErr := eng.Execute(ctx, doc, runOpts)
	out.Elapsed = nowFn().Sub(start)

	if execErr != nil {
		var cellErr *engine.CellError
		if errors.As(execErr, &cellErr) {
			if err := persist(doc, notebook.FailedPath(outDir, path), outDir); err != nil {
				out.Err = errors.Join(execErr, err)
				return out
			}
			out.SavedPath = notebook.FailedPath(outDir, path)
			ilogger.LogError(fmt.Sprintf("Notebook %s failed: %v; partial copy saved to %s", path, execErr, out.SavedPath))
		}
		out.Err = execErr
		return out
	}

	saved := notebook.ExecutedPath(outDir, path)
	if err := persist(doc, saved, outDir); err != nil {
		out.Err = err
		return out
	}
	out.SavedPath = saved

	ilogger.LogInfo(fmt.Sprintf("Notebook %s executed in %.1fs, saved to %s", path, out.Elapsed.Seconds(), saved))
	return out
}

func persist(doc *notebook.Notebook, path, outDir string) error {
	if err := notebook.EnsureOutputDir(outDir); err != nil {
		return err
	}
	return doc.Write(path)
}
