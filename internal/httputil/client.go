package httputil

import (
	"net/http"
	"time"
)

// NewClient returns an HTTP client with an explicit timeout. Callers pick
// the timeout; narrative generation runs much longer than a feed fetch.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
	}
}
