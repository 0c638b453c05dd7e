// Package checkin builds cron and heartbeat check-in requests. Check-ins
// carry no body; everything travels in the query string.
package checkin

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/appsignal/appsignal-wrap/timestamp"
)

// Config identifies a check-in: which app (api key), which backend
// (endpoint), and which monitored entity (identifier).
type Config struct {
	APIKey     string
	Endpoint   string
	Identifier string
}

// CronKind distinguishes the two cron check-in events.
type CronKind string

const (
	CronKindStart  CronKind = "start"
	CronKindFinish CronKind = "finish"
)

// CronConfig sends start/finish check-ins for a scheduled job. The digest
// correlates a start with its finish across the backend.
type CronConfig struct {
	CheckIn Config
	Digest  string
}

// Request builds a cron check-in request of the given kind, stamped with
// the clock's current time in whole seconds.
func (c *CronConfig) Request(clock timestamp.Clock, kind CronKind) (*http.Request, error) {
	query := c.CheckIn.query(clock)
	query.Set("kind", string(kind))
	query.Set("digest", c.Digest)

	return post(c.CheckIn.Endpoint+"/check_ins/cron", query)
}

// HeartbeatConfig sends liveness check-ins for a long-running process.
type HeartbeatConfig struct {
	CheckIn Config
}

func (c *HeartbeatConfig) Request(clock timestamp.Clock) (*http.Request, error) {
	return post(c.CheckIn.Endpoint+"/check_ins/heartbeats", c.CheckIn.query(clock))
}

func (c *Config) query(clock timestamp.Clock) url.Values {
	query := url.Values{}
	query.Set("api_key", c.APIKey)
	query.Set("identifier", c.Identifier)
	query.Set("timestamp", strconv.FormatInt(timestamp.UnixSeconds(clock), 10))
	return query
}

func post(endpoint string, query url.Values) (*http.Request, error) {
	req, err := http.NewRequest(http.MethodPost, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.URL.RawQuery = query.Encode()
	return req, nil
}
