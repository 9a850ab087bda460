// Package httpclient configures the HTTP client used to call upstream tile services.
package httpclient

import (
	"net"
	"net/http"
	"time"
)

// NewOutbound creates the shared outbound http client. Per-request deadlines
// come from the caller's context; the client timeout is only a backstop.
func NewOutbound() *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          256,
		MaxIdleConnsPerHost:   128,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   30 * time.Second,
	}
}
