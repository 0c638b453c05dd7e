package wrap

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appsignal/appsignal-wrap/logs"
)

func batcherWrapper(t *testing.T, sender *recordingSender, flushInterval time.Duration) *Wrapper {
	t.Helper()
	return New(
		Config{
			Command: []string{"true"},
			Logs: &logs.Config{
				APIKey:   "some-api-key",
				Endpoint: "https://example.test",
				Hostname: "some-host",
				Group:    "process",
				Origin:   logs.OriginAll,
			},
		},
		WithSender(sender),
		WithClock(&fixedClock{at: time.Unix(1_000_000_000, 0)}),
		WithLogFlushInterval(flushInterval),
	)
}

func TestLogLoopFlushesOnThreshold(t *testing.T) {
	sender := &recordingSender{}
	w := batcherWrapper(t, sender, time.Hour)

	stdout := make(chan string, 300)
	for i := 0; i < 250; i++ {
		stdout <- fmt.Sprintf("line %d", i)
	}
	close(stdout)

	w.logLoop(stdout, nil)

	batches := sender.byPath("/logs/json")
	require.Len(t, batches, 3)

	// every line, once, in order, across flush boundaries
	messages, err := sender.messages()
	require.NoError(t, err)
	require.Len(t, messages, 250)
	for i, msg := range messages {
		assert.Equal(t, fmt.Sprintf("line %d", i), msg.Message)
		assert.Equal(t, logs.SeverityInfo, msg.Severity)
	}
}

func TestLogLoopFlushesOnInterval(t *testing.T) {
	sender := &recordingSender{}
	w := batcherWrapper(t, sender, 50*time.Millisecond)

	stdout := make(chan string, 10)
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.logLoop(stdout, nil)
	}()

	stdout <- "a"
	stdout <- "b"

	require.Eventually(t, func() bool {
		return sender.count("/logs/json") == 1
	}, time.Second, 5*time.Millisecond, "interval flush never happened")

	close(stdout)
	<-done

	// no further flush: the batch was already empty
	require.Equal(t, 1, sender.count("/logs/json"))

	messages, err := sender.messages()
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "a", messages[0].Message)
	assert.Equal(t, "b", messages[1].Message)
}

func TestLogLoopFinalFlushOnClose(t *testing.T) {
	sender := &recordingSender{}
	w := batcherWrapper(t, sender, time.Hour)

	stdout := make(chan string, 10)
	stderr := make(chan string, 10)
	stdout <- "out"
	stderr <- "err"
	close(stdout)
	close(stderr)

	w.logLoop(stdout, stderr)

	require.Equal(t, 1, sender.count("/logs/json"))

	messages, err := sender.messages()
	require.NoError(t, err)
	require.Len(t, messages, 2)

	bySeverity := map[logs.Severity]string{}
	for _, msg := range messages {
		bySeverity[msg.Severity] = msg.Message
	}
	assert.Equal(t, "out", bySeverity[logs.SeverityInfo])
	assert.Equal(t, "err", bySeverity[logs.SeverityError])
}

func TestLogLoopTimestampsStrictlyIncrease(t *testing.T) {
	sender := &recordingSender{}
	w := batcherWrapper(t, sender, time.Hour)

	stdout := make(chan string, 10)
	for i := 0; i < 5; i++ {
		stdout <- "line"
	}
	close(stdout)

	w.logLoop(stdout, nil)

	messages, err := sender.messages()
	require.NoError(t, err)
	require.Len(t, messages, 5)

	// the wall clock is frozen, but the batcher's monotonic clock still
	// spaces the messages apart
	for i := 1; i < len(messages); i++ {
		assert.Less(t, messages[i-1].Timestamp, messages[i].Timestamp)
	}
}

func TestLogLoopNoStreams(t *testing.T) {
	sender := &recordingSender{}
	w := batcherWrapper(t, sender, time.Hour)

	w.logLoop(nil, nil)

	assert.Empty(t, sender.byPath("/logs/json"))
}
