// Package errorreport builds failure report requests. A report is sent when
// the child exits unsuccessfully (or fails to start); it carries the most
// recent output lines as context and tags describing how the child ended.
package errorreport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/appsignal/appsignal-wrap/process"
	"github.com/appsignal/appsignal-wrap/timestamp"
)

type Config struct {
	APIKey   string
	Endpoint string
	Action   string
	Hostname string
	Digest   string
}

type body struct {
	Timestamp int64             `json:"timestamp"`
	Action    string            `json:"action"`
	Namespace string            `json:"namespace"`
	Error     bodyError         `json:"error"`
	Tags      map[string]string `json:"tags"`
}

type bodyError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// Request builds a failure report for a child that ended with the given
// status. The context lines become the error message, followed by a trailer
// describing the exit.
func (c *Config) Request(clock timestamp.Clock, status process.ExitStatus, lines []string) (*http.Request, error) {
	name, context := classify(status)

	return c.request(clock, bodyError{
		Name:    name,
		Message: message(lines, fmt.Sprintf("[Process exited with %s]", context)),
	}, exitTags(status))
}

// StartRequest builds a failure report for a child that could not be
// spawned at all. There is no exit status and no output to report.
func (c *Config) StartRequest(clock timestamp.Clock, spawnErr error) (*http.Request, error) {
	return c.request(clock, bodyError{
		Name:    "StartError",
		Message: fmt.Sprintf("[Process failed to start: %s]", spawnErr),
	}, nil)
}

func classify(status process.ExitStatus) (name, context string) {
	switch {
	case status.Exited:
		return "NonZeroExit", fmt.Sprintf("code %d", status.Code)
	case status.Signaled:
		return "SignalExit", "signal " + process.SignalName(status.Signal)
	}
	return "UnknownExit", "unknown status"
}

func exitTags(status process.ExitStatus) map[string]string {
	switch {
	case status.Exited:
		return map[string]string{
			"exit_code": strconv.Itoa(status.Code),
			"exit_kind": "code",
		}
	case status.Signaled:
		return map[string]string{
			"exit_signal": process.SignalName(status.Signal),
			"exit_kind":   "signal",
		}
	}
	return map[string]string{"exit_kind": "unknown"}
}

func message(lines []string, trailer string) string {
	return strings.Join(append(append([]string{}, lines...), trailer), "\n")
}

func (c *Config) request(clock timestamp.Clock, errBody bodyError, tags map[string]string) (*http.Request, error) {
	if tags == nil {
		tags = map[string]string{}
	}
	tags["hostname"] = c.Hostname
	tags["appsignal-wrap-digest"] = c.Digest

	b, err := json.Marshal(body{
		Timestamp: timestamp.UnixSeconds(clock),
		Action:    c.Action,
		Namespace: "process",
		Error:     errBody,
		Tags:      tags,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, c.Endpoint+"/errors", bytes.NewReader(b))
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("api_key", c.APIKey)
	req.URL.RawQuery = query.Encode()
	req.Header.Set("Content-Type", "application/json")

	return req, nil
}
