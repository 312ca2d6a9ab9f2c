package logger

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Log files of finished runs are normally removed by the run itself;
// anything still matching nbbatch-*.log belongs to a live process, a
// crashed one, or a reused pid.
const staleLogMaxAge = 7 * 24 * time.Hour

var (
	processRunningCheck = isProcessRunning
	processStartTimeFn  = getProcessStartTime
	removeLogFileFn     = os.Remove
	globLogFiles        = filepath.Glob
	fileStatFn          = os.Lstat
	evalSymlinksFn      = filepath.EvalSymlinks
)

// CleanupStats summarizes one cleanup pass.
type CleanupStats struct {
	Scanned      int
	Deleted      int
	Kept         int
	Errors       int
	DeletedFiles []string
	KeptFiles    []string
}

// CleanupOldLogs removes log files left behind by dead or restarted
// processes. The current process's own file is never touched.
func CleanupOldLogs() (CleanupStats, error) {
	var stats CleanupStats
	var firstErr error

	dir := os.TempDir()
	if resolved, err := evalSymlinksFn(dir); err == nil && resolved != "" {
		dir = resolved
	}

	for _, prefix := range LogPrefixes() {
		matches, err := globLogFiles(filepath.Join(dir, prefix+"-*.log"))
		if err != nil {
			stats.Errors++
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		for _, path := range matches {
			stats.Scanned++
			if shouldKeepLog(path) {
				stats.Kept++
				stats.KeptFiles = append(stats.KeptFiles, path)
				continue
			}
			if err := removeLogFileFn(path); err != nil && !os.IsNotExist(err) {
				stats.Errors++
				if firstErr == nil {
					firstErr = err
				}
				stats.Kept++
				stats.KeptFiles = append(stats.KeptFiles, path)
				continue
			}
			stats.Deleted++
			stats.DeletedFiles = append(stats.DeletedFiles, path)
		}
	}

	return stats, firstErr
}

func shouldKeepLog(path string) bool {
	pid, ok := pidFromLogName(filepath.Base(path))
	if !ok {
		// Not one of ours; leave it alone.
		return true
	}
	if pid == os.Getpid() {
		return true
	}

	info, err := fileStatFn(path)
	if err != nil {
		return true
	}

	if !processRunningCheck(pid) {
		return false
	}

	// The pid is alive but may have been reused: a log file written
	// before the current owner of the pid started is stale.
	if start := processStartTimeFn(pid); !start.IsZero() && info.ModTime().Before(start) {
		return false
	}

	return time.Since(info.ModTime()) <= staleLogMaxAge
}

// pidFromLogName extracts the pid from names like nbbatch-1234.log or
// nbbatch-1234-worker.log.
func pidFromLogName(name string) (int, bool) {
	for _, prefix := range LogPrefixes() {
		rest, ok := strings.CutPrefix(name, prefix+"-")
		if !ok {
			continue
		}
		rest = strings.TrimSuffix(rest, ".log")
		if idx := strings.IndexByte(rest, '-'); idx >= 0 {
			rest = rest[:idx]
		}
		pid, err := strconv.Atoi(rest)
		if err != nil || pid <= 0 {
			continue
		}
		return pid, true
	}
	return 0, false
}
