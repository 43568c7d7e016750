package cmd

import (
	"fmt"
	"strings"

	"github.com/corey/autolink/internal/app"
)

// isDBLockError returns true if the error chain contains a bbolt lock timeout.
// bbolt returns the string "timeout" when it cannot acquire the file lock
// within the configured deadline.
func isDBLockError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "timeout")
}

// diagnoseDBLock returns actionable guidance when the build cache is locked.
// It distinguishes a recorded watch process from an unknown lock holder.
func diagnoseDBLock(root string) string {
	paths := app.NewPaths(root)

	if pid := paths.ReadPID(); pid > 0 {
		return fmt.Sprintf("build cache is locked by a running watch (pid %d)\n"+
			"  → stop it first:  kill %d\n"+
			"  → or skip the cache:  autolink build --no-cache\n"+
			"  → if no such process exists, remove %s", pid, pid, paths.PIDFile)
	}

	return "build cache is locked by another process\n" +
		"  → find the process:  ps aux | grep 'autolink'\n" +
		"  → kill it:           kill <PID>\n" +
		"  → or skip the cache: autolink build --no-cache"
}
