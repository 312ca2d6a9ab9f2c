package runner

import (
	"context"
	"sync"

	config "nbbatch/internal/config"
	engine "nbbatch/internal/engine"
)

// RunSequential executes paths in list order, halting at the first
// failure. onStart fires before and report after each attempt.
func RunSequential(ctx context.Context, eng engine.Engine, paths []string, outDir string, opts engine.Options, onStart func(string), report func(Outcome)) ([]Outcome, bool) {
	outcomes := make([]Outcome, 0, len(paths))
	for _, path := range paths {
		if onStart != nil {
			onStart(path)
		}
		res := ExecuteAndSave(ctx, eng, path, outDir, opts)
		if report != nil {
			report(res)
		}
		outcomes = append(outcomes, res)
		if res.Failed() {
			return outcomes, false
		}
	}
	return outcomes, true
}

// RunParallel executes paths on a pool of min(2, len(paths)) workers.
// Outcomes are reported and returned in completion order; one task's
// failure never stops its siblings.
func RunParallel(ctx context.Context, eng engine.Engine, paths []string, outDir string, opts engine.Options, onStart func(string), report func(Outcome)) []Outcome {
	if len(paths) == 0 {
		return nil
	}

	workers := config.WorkerCount(len(paths))
	jobs := make(chan string)
	results := make(chan Outcome, len(paths))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				if onStart != nil {
					onStart(path)
				}
				results <- ExecuteAndSave(ctx, eng, path, outDir, opts)
			}
		}()
	}

	go func() {
		for _, path := range paths {
			jobs <- path
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	outcomes := make([]Outcome, 0, len(paths))
	for res := range results {
		if report != nil {
			report(res)
		}
		outcomes = append(outcomes, res)
	}
	return outcomes
}
