package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/olegrjumin/riskscan/internal/httpclient"
)

// Outcome is the immutable result of one successful fetch
type Outcome struct {
	OriginalURL   string
	FinalURL      string
	RedirectChain []string          // Visited URLs in order; first is OriginalURL
	StatusCode    int               // Status of the final response
	Headers       map[string]string // Final response headers, canonical keys
	Body          string
	ElapsedOK     bool // Finished inside the fetch timeout; false when the last read overran it
	ElapsedMs     int64
	ContentType   string
	Protocol      string // e.g. "HTTP/2.0"
	TLS           *TLSInfo
	Timings       Timings
}

// Options controls fetch behavior
type Options struct {
	Timeout      time.Duration // Whole-chain timeout
	MaxRedirects int
	UserAgent    string
}

// DefaultOptions returns Options with conservative defaults
func DefaultOptions() Options {
	return Options{
		Timeout:      20 * time.Second,
		MaxRedirects: 10,
		UserAgent:    "Mozilla/5.0 (compatible; riskscan/1.0)",
	}
}

// Fetcher performs GET requests and follows redirects manually so that
// every hop is recorded
type Fetcher struct {
	client *httpclient.Client
	opts   Options
	now    func() time.Time
}

// New creates a new Fetcher instance
func New(client *httpclient.Client, opts Options) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultOptions().Timeout
	}
	return &Fetcher{
		client: client,
		opts:   opts,
		now:    time.Now,
	}
}

// Fetch issues a GET against rawURL, following redirects. rawURL must be
// absolute with an http or https scheme. All failures are *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Outcome, error) {
	start := f.now()

	parsedURL, err := url.Parse(rawURL)
	if err != nil || parsedURL.Host == "" {
		return nil, newError(KindNetwork, rawURL, "invalid URL format")
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, newError(KindNetwork, rawURL, "URL must use http or https")
	}

	ctx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	currentURL := rawURL
	chain := []string{currentURL}
	seen := map[string]bool{currentURL: true}
	redirectCount := 0

	var resp *httpclient.Response
	for {
		resp, err = f.client.Do(ctx, http.MethodGet, currentURL, f.opts.UserAgent)
		if err != nil {
			// A deadline hit mid-chain surfaces as whatever the transport saw; the
			// context is the authority on whether we ran out of time
			if ctx.Err() == context.DeadlineExceeded {
				return nil, &FetchError{Kind: KindTimeout, URL: currentURL, Message: "request timeout", Err: err}
			}
			return nil, ClassifyError(currentURL, err)
		}

		if resp.StatusCode < 300 || resp.StatusCode >= 400 {
			break
		}
		location := resp.Header.Get("Location")
		if location == "" {
			// No location header, stop here
			break
		}

		redirectCount++
		if redirectCount > f.opts.MaxRedirects {
			return nil, newError(KindNetwork, currentURL, fmt.Sprintf("too many redirects (max: %d)", f.opts.MaxRedirects))
		}

		next, err := resolveLocation(currentURL, location)
		if err != nil {
			return nil, newError(KindNetwork, currentURL, "invalid redirect location")
		}
		if seen[next] {
			return nil, newError(KindNetwork, next, "redirect loop detected")
		}
		seen[next] = true

		chain = append(chain, next)
		currentURL = next
	}

	elapsed := f.now().Sub(start)
	outcome := &Outcome{
		OriginalURL:   rawURL,
		FinalURL:      currentURL,
		RedirectChain: chain,
		StatusCode:    resp.StatusCode,
		Headers:       flattenHeaders(resp.Header),
		Body:          resp.Body,
		ElapsedOK:     elapsed <= f.opts.Timeout,
		ElapsedMs:     elapsed.Milliseconds(),
		ContentType:   resp.Header.Get("Content-Type"),
		Protocol:      resp.Proto,
		TLS:           extractTLSInfo(resp.TLS, f.now()),
		Timings:       extractTimings(resp.Timings),
	}

	return outcome, nil
}

// resolveLocation resolves a possibly relative Location against the current URL
func resolveLocation(currentURL, location string) (string, error) {
	locationURL, err := url.Parse(strings.TrimSpace(location))
	if err != nil {
		return "", err
	}
	base, err := url.Parse(currentURL)
	if err != nil {
		return "", err
	}
	next := base.ResolveReference(locationURL)
	if next.Scheme != "http" && next.Scheme != "https" {
		return "", fmt.Errorf("unsupported redirect scheme %q", next.Scheme)
	}
	return next.String(), nil
}

// flattenHeaders joins multi-valued headers with ", "
func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for key, values := range h {
		out[http.CanonicalHeaderKey(key)] = strings.Join(values, ", ")
	}
	return out
}

// NormalizeURL trims whitespace, lowercases an http(s) scheme and prepends
// https:// when no scheme is present. The rest of the URL is left as given.
func NormalizeURL(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ""
	}
	lower := strings.ToLower(rawURL)
	for _, scheme := range []string{"http://", "https://"} {
		if strings.HasPrefix(lower, scheme) {
			return scheme + rawURL[len(scheme):]
		}
	}
	return "https://" + rawURL
}

// IsHTTPS reports whether rawURL uses the https scheme, ignoring case
func IsHTTPS(rawURL string) bool {
	return len(rawURL) >= len("https://") && strings.EqualFold(rawURL[:len("https://")], "https://")
}
