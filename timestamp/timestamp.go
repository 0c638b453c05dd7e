// Package timestamp provides the clocks behind telemetry timestamps: a
// wall-clock source, and a monotonic wrapper that keeps log timestamps
// strictly ordered even when the wall clock does not advance.
package timestamp

import "time"

// Clock is a wall-clock source. Production code uses System; tests inject
// a fixed or scripted clock.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// System reads the real wall clock.
var System Clock = systemClock{}

// Gap is the minimum spacing between two successive Monotonic readings.
// Log timestamps are transmitted with millisecond precision, so anything
// closer than this collides or inverts in timestamp-ordered displays.
const Gap = time.Millisecond

// Monotonic wraps a Clock and guarantees that successive readings are
// strictly increasing, at least Gap apart. When the source clock has moved
// more than Gap past the last reading, the source value is returned as-is;
// otherwise the last reading advances by Gap. The reported times may
// therefore run slightly ahead of the wall clock under bursts.
//
// Not safe for concurrent use; each consumer owns its own Monotonic.
type Monotonic struct {
	source Clock
	last   time.Time
}

func NewMonotonic(source Clock) *Monotonic {
	return &Monotonic{source: source}
}

func (m *Monotonic) Now() time.Time {
	now := m.source.Now()
	if !m.last.IsZero() && now.Sub(m.last) <= Gap {
		now = m.last.Add(Gap)
	}
	m.last = now
	return now
}

// UnixSeconds returns the clock's current time in whole seconds since the
// Unix epoch, the resolution check-ins and error reports are sent with.
func UnixSeconds(c Clock) int64 {
	return c.Now().Unix()
}

// RFC3339Millis formats the clock's current time as RFC 3339 in UTC with
// millisecond precision, e.g. "2001-09-09T01:46:40.000Z". This is the wire
// format for log message timestamps.
func RFC3339Millis(c Clock) string {
	return c.Now().UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
