package app

import (
	"context"
	"fmt"
	"os"
	"time"

	config "nbbatch/internal/config"
	engine "nbbatch/internal/engine"
	runner "nbbatch/internal/runner"
)

// runBatch drives one batch: partition the list, run the sequential
// prefix, then the parallel tail, and map failures to exit codes.
func runBatch(cfg *config.Config) int {
	if len(cfg.Notebooks) == 0 {
		fmt.Fprintln(os.Stderr, "Notebook list is empty. Pass notebook paths as arguments, pipe a list via \"-\", or set notebooks in the config file.")
		logError("Empty notebook list")
		return 2
	}

	baseDir, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: cannot determine working directory: %v\n", err)
		logError(err.Error())
		return 1
	}
	outDir := runner.Resolve(baseDir, cfg.OutputDir)

	resolved := make([]string, len(cfg.Notebooks))
	for i, path := range cfg.Notebooks {
		resolved[i] = runner.Resolve(baseDir, path)
	}
	sequential, parallel := runner.Partition(resolved)

	logger := activeLogger()
	fmt.Fprintf(os.Stderr, "[%s]\n", toolName)
	fmt.Fprintf(os.Stderr, "  Notebooks: %d (%d sequential, %d parallel)\n", len(resolved), len(sequential), len(parallel))
	fmt.Fprintf(os.Stderr, "  Kernel: %s\n", cfg.Kernel)
	fmt.Fprintf(os.Stderr, "  Timeout: %ds\n", cfg.TimeoutSec)
	fmt.Fprintf(os.Stderr, "  Output: %s\n", outDir)
	fmt.Fprintf(os.Stderr, "  PID: %d\n", os.Getpid())
	if logger != nil {
		fmt.Fprintf(os.Stderr, "  Log: %s\n", logger.Path())
	}

	eng := newEngineFn()
	opts := engine.Options{
		Kernel:      cfg.Kernel,
		Timeout:     time.Duration(cfg.TimeoutSec) * time.Second,
		AllowErrors: cfg.AllowErrors,
	}
	ctx := context.Background()
	started := time.Now()

	if _, ok := runner.RunSequential(ctx, eng, sequential, outDir, opts, reportStart, reportOutcome); !ok {
		fmt.Fprintln(os.Stderr, "\nStopping: a sequential notebook failed; remaining notebooks are skipped.")
		return 1
	}

	fmt.Printf("\n=== Running final %d notebook(s) in parallel ===\n", len(parallel))
	outcomes := runner.RunParallel(ctx, eng, parallel, outDir, opts, reportStart, reportOutcome)

	failed := 0
	for _, res := range outcomes {
		if res.Failed() {
			failed++
		}
	}
	if failed > 0 {
		fmt.Fprintf(os.Stderr, "\n%d parallel notebook(s) failed.\n", failed)
		if !cfg.AllowErrors {
			return 1
		}
	}

	fmt.Printf("\nDone. Total time: %.1fs\nExecuted notebooks: %s\n", time.Since(started).Seconds(), outDir)
	return 0
}

func reportStart(path string) {
	fmt.Printf("\n=== Running: %s ===\n", path)
	logInfo(fmt.Sprintf("Starting notebook %s", path))
}

func reportOutcome(res runner.Outcome) {
	if !res.Failed() {
		fmt.Printf("ok: %s (%.1fs)\n", res.SavedPath, res.Elapsed.Seconds())
		return
	}

	fmt.Fprintf(os.Stderr, "FAILED: %s\n  %v\n", res.Path, res.Err)
	if res.SavedPath != "" {
		fmt.Fprintf(os.Stderr, "  Partially executed notebook saved: %s\n", res.SavedPath)
	}
	logError(fmt.Sprintf("Notebook %s failed: %v", res.Path, res.Err))
}
