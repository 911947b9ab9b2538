//go:build windows

package process

import (
	"os/exec"
	"syscall"
)

// detach gives the child its own process group so console control events
// aimed at the parent do not kill it.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP,
	}
}
