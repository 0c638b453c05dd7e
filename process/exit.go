// Package process holds the OS-process concerns shared by the wrapper and
// its telemetry builders: classifying how a child exited, the shell exit
// code convention for signal deaths, and arming the kernel so the child
// dies with its parent.
package process

import (
	"fmt"
	"os"
	"strconv"
	"syscall"

	"golang.org/x/sys/unix"
)

// ExitStatus describes how a child process ended: with an exit code, killed
// by a signal, or (which should not happen on supported platforms) neither.
// Immutable once obtained from the wait.
type ExitStatus struct {
	Code   int
	Signal syscall.Signal

	Exited   bool
	Signaled bool
}

// StatusFromState classifies a reaped process state. A nil state (the wait
// itself failed before reaping) classifies as unknown.
func StatusFromState(state *os.ProcessState) ExitStatus {
	if state == nil {
		return ExitStatus{}
	}
	ws, ok := state.Sys().(syscall.WaitStatus)
	if !ok {
		if code := state.ExitCode(); code >= 0 {
			return ExitStatus{Exited: true, Code: code}
		}
		return ExitStatus{}
	}
	switch {
	case ws.Exited():
		return ExitStatus{Exited: true, Code: ws.ExitStatus()}
	case ws.Signaled():
		return ExitStatus{Signaled: true, Signal: ws.Signal()}
	}
	return ExitStatus{}
}

// Success reports whether the child exited normally with code zero.
func (s ExitStatus) Success() bool {
	return s.Exited && s.Code == 0
}

func (s ExitStatus) String() string {
	switch {
	case s.Exited:
		return fmt.Sprintf("exit code %d", s.Code)
	case s.Signaled:
		return "signal " + SignalName(s.Signal)
	}
	return "unknown status"
}

// SignalExitCode maps a terminating signal to the shell convention for
// processes killed by that signal: 128 plus the signal number. The wrapper
// uses it both to mirror a signal-killed child and for its own exit when a
// terminating signal arrives during the post-child drain.
func SignalExitCode(sig syscall.Signal) int {
	return 128 + int(sig)
}

// SignalName returns the conventional name for a signal ("SIGTERM"), or its
// number when the platform has no name for it.
func SignalName(sig syscall.Signal) string {
	if name := unix.SignalName(sig); name != "" {
		return name
	}
	return strconv.Itoa(int(sig))
}
