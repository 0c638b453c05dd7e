package wrap

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/appsignal/appsignal-wrap/logs"
)

// recordingSender captures telemetry requests instead of delivering them.
type recordingSender struct {
	mu        sync.Mutex
	requests  []recordedRequest
	buildErrs []error
}

type recordedRequest struct {
	Method string
	Path   string
	Query  url.Values
	Body   string
}

func (s *recordingSender) Send(req *http.Request, buildErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if buildErr != nil {
		s.buildErrs = append(s.buildErrs, buildErr)
		return
	}

	var body string
	if req.Body != nil {
		b, err := io.ReadAll(req.Body)
		if err == nil {
			body = string(b)
		}
	}

	s.requests = append(s.requests, recordedRequest{
		Method: req.Method,
		Path:   req.URL.Path,
		Query:  req.URL.Query(),
		Body:   body,
	})
}

func (s *recordingSender) byPath(path string) []recordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []recordedRequest
	for _, req := range s.requests {
		if req.Path == path {
			matched = append(matched, req)
		}
	}
	return matched
}

func (s *recordingSender) count(path string) int {
	return len(s.byPath(path))
}

// messages decodes the NDJSON bodies of every recorded log batch, in send
// order.
func (s *recordingSender) messages() ([]logs.Message, error) {
	var messages []logs.Message
	for _, req := range s.byPath("/logs/json") {
		for _, line := range strings.Split(strings.TrimRight(req.Body, "\n"), "\n") {
			if line == "" {
				continue
			}
			var msg logs.Message
			if err := json.Unmarshal([]byte(line), &msg); err != nil {
				return nil, err
			}
			messages = append(messages, msg)
		}
	}
	return messages, nil
}

// fixedClock reads the same instant until repointed; safe for concurrent
// use since tests repoint it only between phases.
type fixedClock struct {
	mu sync.Mutex
	at time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.at
}
