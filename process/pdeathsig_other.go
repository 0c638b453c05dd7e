//go:build !linux

package process

import "os/exec"

// ExitWithParent is a no-op on platforms without a parent-death signal
// primitive. The child may outlive an uncatchably killed wrapper there.
func ExitWithParent(cmd *exec.Cmd) {}
