package app

import (
	"fmt"
	"os"
	"sync"

	config "nbbatch/internal/config"
)

var startupCleanup sync.WaitGroup

// scheduleStartupCleanup removes stale logs from dead runs without
// delaying batch start. Disable via NBBATCH_STARTUP_CLEANUP=0.
func scheduleStartupCleanup() {
	if !config.EnvFlagDefaultTrue("NBBATCH_STARTUP_CLEANUP") {
		return
	}
	startupCleanup.Add(1)
	go func() {
		defer startupCleanup.Done()
		if _, err := cleanupOldLogs(); err != nil {
			logWarn(fmt.Sprintf("Startup log cleanup: %v", err))
		}
	}()
}

func runCleanupHook() {
	startupCleanup.Wait()
}

// runCleanupMode implements the cleanup subcommand: one synchronous
// pass with a printed summary.
func runCleanupMode() int {
	stats, err := cleanupOldLogs()
	fmt.Printf("Scanned %d log file(s): deleted %d, kept %d, errors %d\n",
		stats.Scanned, stats.Deleted, stats.Kept, stats.Errors)
	for _, path := range stats.DeletedFiles {
		fmt.Printf("  deleted: %s\n", path)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		return 1
	}
	return 0
}
