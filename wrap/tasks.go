package wrap

import (
	"sync"

	"go.uber.org/zap"
)

// taskSet tracks the wrapper's background goroutines so that shutdown can
// wait for all of them. Once closed it admits no new tasks; Done reports
// when the set is closed and empty.
type taskSet struct {
	log *zap.SugaredLogger

	mu     sync.Mutex
	n      int
	closed bool
	done   chan struct{}
}

func newTaskSet(log *zap.SugaredLogger) *taskSet {
	return &taskSet{
		log:  log.Named("tasks"),
		done: make(chan struct{}),
	}
}

// Go runs fn as a tracked task. After Close, new tasks are refused with a
// debug log; shutdown has begun and nothing should be admitted.
func (t *taskSet) Go(name string, fn func()) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		t.log.Debugf("refusing task %q after close", name)
		return
	}
	t.n++
	t.mu.Unlock()

	go func() {
		defer t.finish()
		fn()
	}()
}

func (t *taskSet) finish() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.n--
	if t.closed && t.n == 0 {
		close(t.done)
	}
}

// Close stops admitting tasks. Safe to call once only.
func (t *taskSet) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	if t.n == 0 {
		close(t.done)
	}
}

func (t *taskSet) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.n
}

// Done is closed once the set is closed and the last task has finished.
func (t *taskSet) Done() <-chan struct{} {
	return t.done
}
