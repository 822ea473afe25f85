package httpclient

import (
	"net"
	"net/http"
	"time"
)

// NewTransport creates a configured HTTP transport shared by all fetches
// The transport is reused across requests for connection pooling
func NewTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,

		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,

		// Maximum number of idle connections across all hosts
		MaxIdleConns: 100,

		// Maximum number of idle connections per host
		MaxIdleConnsPerHost: 10,

		// How long an idle connection stays in the pool
		IdleConnTimeout: 90 * time.Second,

		// Timeout for TLS handshake
		TLSHandshakeTimeout: 10 * time.Second,

		// Timeout for expecting response headers after request is sent
		ResponseHeaderTimeout: 15 * time.Second,

		// Encoding is negotiated and decoded in Client.readBody
		DisableCompression: true,

		ForceAttemptHTTP2: true,
	}
}
