// Package logs builds log batch requests: NDJSON bodies of timestamped
// messages derived from the child's output lines.
package logs

import (
	"bytes"
	"net/http"
	"net/url"

	"github.com/appsignal/appsignal-wrap/internal/ndjson"
	"github.com/appsignal/appsignal-wrap/timestamp"
)

// Origin selects which child streams are sent as logs.
type Origin int

const (
	OriginNone Origin = iota
	OriginStdout
	OriginStderr
	OriginAll
)

// OriginFromArgs resolves the log origin from the CLI's negative flags.
// --no-log disables everything regardless of the stream flags; disabling
// both streams individually amounts to the same.
func OriginFromArgs(noLog, noStdout, noStderr bool) Origin {
	if noLog {
		return OriginNone
	}
	switch {
	case noStdout && noStderr:
		return OriginNone
	case noStdout:
		return OriginStderr
	case noStderr:
		return OriginStdout
	}
	return OriginAll
}

func (o Origin) IncludesStdout() bool { return o == OriginStdout || o == OriginAll }
func (o Origin) IncludesStderr() bool { return o == OriginStderr || o == OriginAll }

type Config struct {
	APIKey   string
	Endpoint string
	Hostname string
	Group    string
	Origin   Origin

	// Attributes are attached to every message: the invocation digest,
	// the command line, and the deploy revision when configured.
	Attributes map[string]string
}

type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityError Severity = "error"
)

type Message struct {
	Group      string            `json:"group"`
	Timestamp  string            `json:"timestamp"`
	Severity   Severity          `json:"severity"`
	Message    string            `json:"message"`
	Hostname   string            `json:"hostname"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// NewMessage stamps a line with the clock's current time. The caller passes
// its monotonic clock so that messages built in quick succession still get
// strictly increasing timestamps.
func (c *Config) NewMessage(clock timestamp.Clock, severity Severity, line string) Message {
	return Message{
		Group:      c.Group,
		Timestamp:  timestamp.RFC3339Millis(clock),
		Severity:   severity,
		Message:    line,
		Hostname:   c.Hostname,
		Attributes: c.Attributes,
	}
}

// Request builds a log batch request. The body is NDJSON, one message per
// line, in batch order. The request shape is the same for any batch size.
func (c *Config) Request(messages []Message) (*http.Request, error) {
	body, err := ndjson.Marshal(messages)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, c.Endpoint+"/logs/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("api_key", c.APIKey)
	req.URL.RawQuery = query.Encode()
	req.Header.Set("Content-Type", "application/x-ndjson")

	return req, nil
}
