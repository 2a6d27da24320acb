package fetcher

import (
	"net"
	"net/http"
	"time"
)

// DefaultTimeout bounds connection setup and waiting for response headers.
const DefaultTimeout = 30 * time.Second

// HTTPClient is the subset of *http.Client used by the fetcher and metadata client.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// NewHTTPClient builds the shared client used for every request of a process.
// The timeout applies to dialing, TLS and response headers only: artifact bodies
// may take far longer to stream and are bounded by the caller's context instead.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	dialer := &net.Dialer{
		Timeout:   timeout,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   timeout,
		ResponseHeaderTimeout: timeout,
		ExpectContinueTimeout: time.Second,
	}

	return &http.Client{Transport: transport}
}
