package wrap

import (
	"sync"
	"time"

	"github.com/appsignal/appsignal-wrap/logs"
	"github.com/appsignal/appsignal-wrap/timestamp"
)

const logBatchSize = 100

// logLoop consumes the log branches of the piped stdout/stderr lines and
// ships them as batches. A batch is flushed when it reaches logBatchSize or
// when the flush interval elapses with lines pending, whichever comes
// first. Timestamps are assigned here, at dequeue time, by the loop's own
// monotonic clock, so messages within a batch are strictly ordered.
//
// Each flush is dispatched as a tracked fire-and-forget send; the loop
// never waits on delivery. When both input channels have closed, the
// remaining batch is flushed and the loop waits for its outstanding sends
// before finishing.
func (w *Wrapper) logLoop(stdout, stderr <-chan string) {
	if stdout == nil && stderr == nil {
		return
	}

	clock := timestamp.NewMonotonic(w.clock)

	var batch []logs.Message
	var sends sync.WaitGroup

	ticker := time.NewTicker(w.logFlushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		messages := batch
		batch = nil

		req, err := w.cfg.Logs.Request(messages)
		sends.Add(1)
		go func() {
			defer sends.Done()
			w.sender.Send(req, err)
		}()
	}

	for stdout != nil || stderr != nil {
		if len(batch) >= logBatchSize {
			flush()
			ticker.Reset(w.logFlushInterval)
		}

		// a closed channel is set to nil: receives on it then block
		// forever, leaving the remaining cases to the select
		select {
		case line, ok := <-stdout:
			if !ok {
				stdout = nil
				continue
			}
			batch = append(batch, w.cfg.Logs.NewMessage(clock, logs.SeverityInfo, line))
		case line, ok := <-stderr:
			if !ok {
				stderr = nil
				continue
			}
			batch = append(batch, w.cfg.Logs.NewMessage(clock, logs.SeverityError, line))
		case <-ticker.C:
			flush()
		}
	}

	flush()
	sends.Wait()
}
