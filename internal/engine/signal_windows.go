//go:build windows
// +build windows

package engine

// Windows has no SIGTERM delivery for arbitrary processes; fall back to
// a hard kill.
func sendTermSignal(proc processHandle) error {
	if proc == nil {
		return nil
	}
	return proc.Kill()
}
