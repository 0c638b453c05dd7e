package wrap

import (
	"os"
	"syscall"
)

// forwardableSignals are the signals that are meaningful to forward to the
// child: those used to make a process terminate, plus those used to
// communicate with it. Only catchable signals are listed; SIGKILL and
// SIGSTOP cannot be caught.
var forwardableSignals = []os.Signal{
	syscall.SIGUSR1,
	syscall.SIGUSR2,
	syscall.SIGWINCH,
	syscall.SIGINT,
	syscall.SIGTERM,
	syscall.SIGHUP,
	syscall.SIGQUIT,
	syscall.SIGPIPE,
}

// hasTerminatingIntent reports whether a signal was sent with the
// expectation of causing the process to terminate. This is the subset of
// the forwardable signals whose default disposition is termination and
// whose conventional use is to request it; it excludes SIGUSR1/SIGUSR2
// (custom communication), SIGWINCH (terminal resize, ignored by default),
// SIGHUP (often a config-reload request), and SIGPIPE (broken pipe
// notification). During the post-child drain, only these signals make the
// wrapper give up and exit.
func hasTerminatingIntent(sig os.Signal) bool {
	switch sig {
	case syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT:
		return true
	}
	return false
}
