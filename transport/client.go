// Package transport delivers telemetry requests to the AppSignal endpoint.
// Delivery is fire-and-forget: failures are logged at debug level and the
// request is dropped. There are no retries and no persistence.
package transport

import (
	"io"
	"net/http"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/appsignal/appsignal-wrap/internal/version"
)

// Sender delivers a built request, or swallows the error that prevented it
// from being built. Implemented by Client; tests substitute a recorder.
type Sender interface {
	Send(req *http.Request, buildErr error)
}

type Client struct {
	log        *zap.SugaredLogger
	httpClient *http.Client
}

type logAdapter struct {
	*zap.SugaredLogger
}

func (a *logAdapter) Printf(msg string, args ...interface{}) { a.Debugf(msg, args...) }

// NewClient builds the telemetry HTTP client. It is a retryable client with
// retries turned off: telemetry is at-most-once, so a failed send is dropped
// rather than replayed.
func NewClient(log *zap.SugaredLogger) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 0
	retryClient.Logger = &logAdapter{SugaredLogger: log}

	return &Client{
		log:        log.Named("transport"),
		httpClient: retryClient.StandardClient(),
	}
}

// Send delivers a request built by one of the telemetry packages. The
// buildErr parameter lets callers hand over a request constructor's result
// without inspecting it; a build failure is logged and dropped here, like
// any other delivery failure. Send never reports failure to the caller.
func (c *Client) Send(req *http.Request, buildErr error) {
	if buildErr != nil {
		c.log.Debugf("dropping request that could not be built: %s", buildErr)
		return
	}

	req.Header.Set("User-Agent", "appsignal-wrap/"+version.Version)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Debugf("error sending request to %s: %s", req.URL.Path, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Debugf("request to %s got status %d", req.URL.Path, resp.StatusCode)
	}

	// drain so the connection can be reused
	_, _ = io.Copy(io.Discard, resp.Body)
}
