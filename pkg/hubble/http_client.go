package hubble

import (
	"net"
	"net/http"
	"time"
)

// HTTPClient abstracts HTTP request execution for testing and custom transports.
// The standard *http.Client satisfies this interface.
type HTTPClient interface {
	// Do sends an HTTP request and returns an HTTP response.
	Do(req *http.Request) (*http.Response, error)
}

// NewHTTPClient returns an *http.Client backed by its own pooled transport.
// Construct it once and share it across every Client so that connections
// to the collection API are reused.
//
// The client sets no overall timeout; Post bounds each call with its own
// deadline.
func NewHTTPClient() *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
		// Responses are small; we never ask the server to compress them.
		DisableCompression:     true,
		MaxResponseHeaderBytes: 64 * 1024,
	}
	return &http.Client{Transport: transport}
}
