package httputil

import (
	"net/http"
	"time"
)

// NewClient builds an HTTP client with the given timeout and a transport
// that keeps idle connections to the rails and merchant callback hosts.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}
