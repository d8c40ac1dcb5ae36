//go:build windows

package daemon

import (
	"os/exec"
	"syscall"
)

// detachProcess creates the child in its own process group so it is not
// killed alongside this process's console.
func detachProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP}
}
