// Package wrap supervises a child process: it forwards signals, mirrors the
// child's output, and runs the background loops that ship logs, check-ins,
// and failure reports while the child runs. The wrapper behaves externally
// like the child itself, exiting with the child's exit code.
package wrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/appsignal/appsignal-wrap/checkin"
	"github.com/appsignal/appsignal-wrap/errorreport"
	"github.com/appsignal/appsignal-wrap/logs"
	"github.com/appsignal/appsignal-wrap/process"
	"github.com/appsignal/appsignal-wrap/timestamp"
	"github.com/appsignal/appsignal-wrap/transport"
)

const logFlushInterval = 10 * time.Second

// Config selects which telemetry the wrapper ships. A nil section disables
// that telemetry entirely; Command is the child's argv and must not be
// empty.
type Config struct {
	Command []string

	Logs      *logs.Config
	Cron      *checkin.CronConfig
	Heartbeat *checkin.HeartbeatConfig
	Error     *errorreport.Config
}

type Wrapper struct {
	cfg    Config
	log    *zap.SugaredLogger
	clock  timestamp.Clock
	sender transport.Sender

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	notify     func(ch chan<- os.Signal, sigs ...os.Signal)
	stopNotify func(ch chan<- os.Signal)

	heartbeatInterval time.Duration
	logFlushInterval  time.Duration
}

type Option func(w *Wrapper)

func WithLogger(log *zap.SugaredLogger) Option {
	return func(w *Wrapper) { w.log = log.Named("wrap") }
}

func WithClock(clock timestamp.Clock) Option {
	return func(w *Wrapper) { w.clock = clock }
}

func WithSender(sender transport.Sender) Option {
	return func(w *Wrapper) { w.sender = sender }
}

// WithStdio replaces the wrapper's own standard streams: where the child's
// stdin comes from and where mirrored output goes.
func WithStdio(stdin io.Reader, stdout, stderr io.Writer) Option {
	return func(w *Wrapper) {
		w.stdin = stdin
		w.stdout = stdout
		w.stderr = stderr
	}
}

// WithNotify replaces the OS signal subscription, letting tests inject
// signals without delivering them to the whole test process.
func WithNotify(notify func(ch chan<- os.Signal, sigs ...os.Signal), stop func(ch chan<- os.Signal)) Option {
	return func(w *Wrapper) {
		w.notify = notify
		w.stopNotify = stop
	}
}

func WithHeartbeatInterval(d time.Duration) Option {
	return func(w *Wrapper) { w.heartbeatInterval = d }
}

func WithLogFlushInterval(d time.Duration) Option {
	return func(w *Wrapper) { w.logFlushInterval = d }
}

func New(cfg Config, opts ...Option) *Wrapper {
	w := &Wrapper{
		cfg:               cfg,
		log:               zap.NewNop().Sugar(),
		clock:             timestamp.System,
		stdin:             os.Stdin,
		stdout:            os.Stdout,
		stderr:            os.Stderr,
		notify:            signal.Notify,
		stopNotify:        signal.Stop,
		heartbeatInterval: heartbeatInterval,
		logFlushInterval:  logFlushInterval,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.sender == nil {
		w.sender = transport.NewClient(w.log)
	}
	return w
}

// Run executes the child to completion and returns the wrapper's own exit
// code: the child's code, 128 plus the signal number for a signal-killed
// child, or 128 plus the signal number of a terminating signal received
// while draining background work after the child.
//
// Only two failures surface as errors: the child could not be spawned, or
// it exited with neither a code nor a signal. All telemetry failures are
// logged and swallowed.
func (w *Wrapper) Run() (int, error) {
	if len(w.cfg.Command) == 0 {
		return 0, errors.New("no command to run")
	}

	tasks := newTaskSet(w.log)

	cmd, stdoutLines, stderrLines, err := w.spawn(tasks)
	if err != nil {
		if w.cfg.Error != nil {
			// the wrapper is about to die; send synchronously so the
			// report is not lost
			req, buildErr := w.cfg.Error.StartRequest(w.clock, err)
			w.sender.Send(req, buildErr)
		}
		return 0, fmt.Errorf("starting command: %w", err)
	}

	logStdout, errStdout := w.splitStream(stdoutLines, w.logsWantStdout())
	logStderr, errStderr := w.splitStream(stderrLines, w.logsWantStderr())

	statusCh := make(chan process.ExitStatus, 1)
	go func() {
		err := cmd.Wait()
		if err != nil {
			if _, ok := err.(*exec.ExitError); !ok {
				w.log.Debugf("unexpected wait error: %s", err)
			}
		}
		statusCh <- process.StatusFromState(cmd.ProcessState)
	}()

	if w.cfg.Cron != nil {
		tasks.Go("cron start check-in", func() {
			req, err := w.cfg.Cron.Request(w.clock, checkin.CronKindStart)
			w.sender.Send(req, err)
		})
	}

	cancelHeartbeat := func() {}
	if w.cfg.Heartbeat != nil {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		cancelHeartbeat = cancel
		tasks.Go("heartbeat loop", func() { w.heartbeatLoop(ctx) })
	}

	if w.cfg.Logs != nil {
		tasks.Go("log batcher", func() { w.logLoop(logStdout, logStderr) })
	}

	var handoff chan []string
	if w.cfg.Error != nil {
		handoff = make(chan []string, 1)
		tasks.Go("error context window", func() { windowLoop(errStdout, errStderr, handoff) })
	}

	sigCh := make(chan os.Signal, 32)
	w.notify(sigCh, forwardableSignals...)
	defer w.stopNotify(sigCh)

	status := w.forwardSignalsAndWait(cmd, statusCh, sigCh)
	w.log.Debugf("command exited with %s", status)

	cancelHeartbeat()

	if status.Success() {
		if w.cfg.Cron != nil {
			tasks.Go("cron finish check-in", func() {
				req, err := w.cfg.Cron.Request(w.clock, checkin.CronKindFinish)
				w.sender.Send(req, err)
			})
		}
	} else if w.cfg.Error != nil {
		tasks.Go("error report", func() { w.sendErrorReport(status, handoff) })
	}

	tasks.Close()

	if n := tasks.Len(); n > 0 {
		w.log.Debugf("waiting for %d tasks to complete", n)
	}

	// The signal subscription installed above outlives the child. While
	// draining, a terminating signal must still be able to end the
	// wrapper immediately; other signals are ignored. Drain completion
	// is preferred when both are ready at once.
	for drained := false; !drained; {
		select {
		case <-tasks.Done():
			drained = true
		default:
			select {
			case <-tasks.Done():
				drained = true
			case sig := <-sigCh:
				if code, terminating := terminationCode(sig); terminating {
					w.log.Debugf("received terminating signal after child: %s", sig)
					return code, nil
				}
				w.log.Debugf("ignoring non-terminating signal after child: %s", sig)
			}
		}
	}

	switch {
	case status.Exited:
		return status.Code, nil
	case status.Signaled:
		return process.SignalExitCode(status.Signal), nil
	}
	return 0, errors.New("command exited without code or signal")
}

func (w *Wrapper) logsWantStdout() bool {
	return w.cfg.Logs != nil && w.cfg.Logs.Origin.IncludesStdout()
}

func (w *Wrapper) logsWantStderr() bool {
	return w.cfg.Logs != nil && w.cfg.Logs.Origin.IncludesStderr()
}

// A stream is piped when the log shipper wants it or when error reporting
// wants its context, re-derived from the current configuration.
func (w *Wrapper) pipesStdout() bool { return w.logsWantStdout() || w.cfg.Error != nil }
func (w *Wrapper) pipesStderr() bool { return w.logsWantStderr() || w.cfg.Error != nil }

// splitStream routes one piped line stream to its log and error-context
// branches. When both want it, the stream is teed; when only one does, it
// is handed over directly; an absent branch is a nil channel.
func (w *Wrapper) splitStream(in <-chan string, logsWant bool) (forLogs, forError <-chan string) {
	errorWants := w.cfg.Error != nil
	switch {
	case in == nil:
		return nil, nil
	case logsWant && errorWants:
		return tee(in)
	case logsWant:
		return in, nil
	default:
		return nil, in
	}
}

// spawn starts the child and, for each stream that telemetry needs, a line
// piper reading the child's side of an os.Pipe. The parent's copies of the
// pipe write ends are closed right after the start, so the pipers see EOF
// when the child (and anything that inherited its streams) is done writing,
// independently of when the child is reaped.
func (w *Wrapper) spawn(tasks *taskSet) (cmd *exec.Cmd, stdoutLines, stderrLines <-chan string, err error) {
	cmd = exec.Command(w.cfg.Command[0], w.cfg.Command[1:]...)
	cmd.Stdin = w.stdin
	process.ExitWithParent(cmd)

	var stdoutR, stdoutW, stderrR, stderrW *os.File

	closeAll := func() {
		for _, f := range []*os.File{stdoutR, stdoutW, stderrR, stderrW} {
			if f != nil {
				f.Close()
			}
		}
	}

	if w.pipesStdout() {
		if stdoutR, stdoutW, err = os.Pipe(); err != nil {
			return nil, nil, nil, err
		}
		cmd.Stdout = stdoutW
	} else {
		cmd.Stdout = w.stdout
	}

	if w.pipesStderr() {
		if stderrR, stderrW, err = os.Pipe(); err != nil {
			closeAll()
			return nil, nil, nil, err
		}
		cmd.Stderr = stderrW
	} else {
		cmd.Stderr = w.stderr
	}

	if err = cmd.Start(); err != nil {
		closeAll()
		return nil, nil, nil, err
	}

	if stdoutW != nil {
		stdoutW.Close()
	}
	if stderrW != nil {
		stderrW.Close()
	}

	if stdoutR != nil {
		in, out := unbounded[string]()
		from := stdoutR
		tasks.Go("stdout pipe", func() { pipeLines(w.log.Named("stdout"), from, w.stdout, in) })
		stdoutLines = out
	}

	if stderrR != nil {
		in, out := unbounded[string]()
		from := stderrR
		tasks.Go("stderr pipe", func() { pipeLines(w.log.Named("stderr"), from, w.stderr, in) })
		stderrLines = out
	}

	return cmd, stdoutLines, stderrLines, nil
}

// forwardSignalsAndWait delivers every subscribed signal to the child while
// waiting for it to exit. Child exit is preferred when both a signal and
// the exit are ready at once, so a signal is never forwarded to an
// already-reaped process.
func (w *Wrapper) forwardSignalsAndWait(cmd *exec.Cmd, statusCh <-chan process.ExitStatus, sigCh <-chan os.Signal) process.ExitStatus {
	for {
		select {
		case status := <-statusCh:
			return status
		default:
		}

		select {
		case status := <-statusCh:
			return status
		case sig := <-sigCh:
			if cmd.Process == nil {
				w.log.Debugf("cannot forward %s: child has no process", sig)
				continue
			}
			if err := cmd.Process.Signal(sig); err != nil {
				w.log.Debugf("error forwarding %s to child: %s", sig, err)
			} else {
				w.log.Debugf("forwarded %s to child", sig)
			}
		}
	}
}

func (w *Wrapper) sendErrorReport(status process.ExitStatus, handoff <-chan []string) {
	lines, ok := <-handoff
	if !ok {
		w.log.Debugf("error context was never delivered; reporting without it")
	}
	req, err := w.cfg.Error.Request(w.clock, status, lines)
	w.sender.Send(req, err)
}

func terminationCode(sig os.Signal) (int, bool) {
	if !hasTerminatingIntent(sig) {
		return 0, false
	}
	s, ok := sig.(syscall.Signal)
	if !ok {
		return 0, false
	}
	return process.SignalExitCode(s), true
}
