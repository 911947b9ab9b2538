//go:build !windows

package process

import (
	"os/exec"
	"syscall"
)

// detach puts the child in its own session so it is not signalled, or
// reaped, together with the parent's process group.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}
}
