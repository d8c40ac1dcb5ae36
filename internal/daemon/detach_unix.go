//go:build !windows

package daemon

import (
	"os/exec"
	"syscall"
)

// detachProcess puts the child in its own session so it survives this
// process exiting and never receives signals sent to our process group.
func detachProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
