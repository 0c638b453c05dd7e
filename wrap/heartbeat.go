package wrap

import (
	"context"
	"time"
)

const heartbeatInterval = 30 * time.Second

// heartbeatLoop sends liveness check-ins until cancelled. One heartbeat is
// sent immediately, so even a child that exits within the first interval
// leaves a trace. After that, one per tick; a tick missed while the system
// was busy is delayed, not burst. Cancellation is checked before the tick
// in every round, so it preempts a tick that is already pending.
func (w *Wrapper) heartbeatLoop(ctx context.Context) {
	w.sendHeartbeat()

	ticker := time.NewTicker(w.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sendHeartbeat()
		}
	}
}

func (w *Wrapper) sendHeartbeat() {
	req, err := w.cfg.Heartbeat.Request(w.clock)
	w.sender.Send(req, err)
}
