package httpclient

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/andybalholm/brotli"
	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"
)

const defaultUserAgent = "Mozilla/5.0 (compatible; riskscan/1.0)"

// Client wraps http.Client and provides methods for making traced requests
type Client struct {
	httpClient   *http.Client
	maxBodyBytes int64
	rateLimit    int

	limiters   map[string]*rate.Limiter
	limitersMu sync.Mutex
}

// Options configures a Client
type Options struct {
	MaxBodyBytes int64 // Body read limit, 0 means 5MB
	RateLimit    int   // Requests per second per host, 0 disables limiting
}

// TimingInfo holds performance timing information for a request
type TimingInfo struct {
	DNSStart     time.Time
	DNSDone      time.Time
	ConnectStart time.Time
	ConnectDone  time.Time
	TLSStart     time.Time
	TLSDone      time.Time
	GotFirstByte time.Time
	RequestStart time.Time
	RequestDone  time.Time
}

// Response holds the HTTP response along with timing information
type Response struct {
	StatusCode int
	Proto      string // e.g., "HTTP/2.0"
	Header     http.Header
	TLS        *tls.ConnectionState
	Timings    *TimingInfo
	Body       string // Decoded to UTF-8, truncated at the body limit
}

// NewClient creates a new HTTP client with the configured transport
func NewClient(opts Options) *Client {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 5 * 1024 * 1024
	}
	return &Client{
		httpClient: &http.Client{
			Transport: NewTransport(),
			// Redirects are followed by the fetcher so every hop is recorded
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		maxBodyBytes: opts.MaxBodyBytes,
		rateLimit:    opts.RateLimit,
		limiters:     make(map[string]*rate.Limiter),
	}
}

// limiter returns the per-host rate limiter, or nil when limiting is off
func (c *Client) limiter(host string) *rate.Limiter {
	if c.rateLimit <= 0 {
		return nil
	}

	c.limitersMu.Lock()
	defer c.limitersMu.Unlock()

	if l, ok := c.limiters[host]; ok {
		return l
	}
	l := rate.NewLimiter(rate.Limit(c.rateLimit), 1)
	c.limiters[host] = l
	return l
}

// Do performs an HTTP request with tracing enabled and reads the body
// Returns the response, with timing info, or any error
func (c *Client) Do(ctx context.Context, method, rawURL, userAgent string) (*Response, error) {
	if u, err := url.Parse(rawURL); err == nil {
		if l := c.limiter(u.Host); l != nil {
			if err := l.Wait(ctx); err != nil {
				return nil, err
			}
		}
	}

	// Create timing info to capture performance metrics
	timings := &TimingInfo{
		RequestStart: time.Now(),
	}

	trace := &httptrace.ClientTrace{
		DNSStart: func(_ httptrace.DNSStartInfo) {
			timings.DNSStart = time.Now()
		},
		DNSDone: func(_ httptrace.DNSDoneInfo) {
			timings.DNSDone = time.Now()
		},
		ConnectStart: func(_, _ string) {
			timings.ConnectStart = time.Now()
		},
		ConnectDone: func(_, _ string, _ error) {
			timings.ConnectDone = time.Now()
		},
		TLSHandshakeStart: func() {
			timings.TLSStart = time.Now()
		},
		TLSHandshakeDone: func(_ tls.ConnectionState, _ error) {
			timings.TLSDone = time.Now()
		},
		GotFirstResponseByte: func() {
			timings.GotFirstByte = time.Now()
		},
	}

	req, err := http.NewRequestWithContext(
		httptrace.WithClientTrace(ctx, trace),
		method,
		rawURL,
		nil,
	)
	if err != nil {
		return nil, err
	}

	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := c.readBody(resp)
	if err != nil {
		return nil, err
	}

	timings.RequestDone = time.Now()

	return &Response{
		StatusCode: resp.StatusCode,
		Proto:      resp.Proto,
		Header:     resp.Header,
		TLS:        resp.TLS,
		Timings:    timings,
		Body:       body,
	}, nil
}

// readBody decompresses and charset-decodes the response body
func (c *Client) readBody(resp *http.Response) (string, error) {
	var reader io.Reader = resp.Body

	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return "", fmt.Errorf("failed to open gzip body: %w", err)
		}
		defer gz.Close()
		reader = gz
	case "deflate":
		fl := flate.NewReader(resp.Body)
		defer fl.Close()
		reader = fl
	case "br":
		reader = brotli.NewReader(resp.Body)
	}

	reader = io.LimitReader(reader, c.maxBodyBytes)

	// Unknown or broken charsets fall back to the raw bytes
	if decoded, err := charset.NewReader(reader, resp.Header.Get("Content-Type")); err == nil {
		reader = decoded
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("failed to read body: %w", err)
	}
	return string(data), nil
}
