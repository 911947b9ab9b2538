//go:build !windows

package process

import (
	"os"
	"syscall"
)

// quitSelf requests graceful termination via SIGTERM so the runtime's signal
// handlers and deferred cleanup still run.
func quitSelf() {
	if err := syscall.Kill(os.Getpid(), syscall.SIGTERM); err != nil {
		os.Exit(0)
	}
}
