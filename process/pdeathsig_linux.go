//go:build linux

package process

import (
	"os/exec"
	"syscall"
)

// ExitWithParent arms the kernel to send the child SIGTERM when the wrapper
// dies, covering even an uncatchable SIGKILL of the wrapper. Must be called
// before the command is started.
func ExitWithParent(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Pdeathsig = syscall.SIGTERM
}
