package ctlog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const (
	DefaultBaseURL = "https://crt.sh"
	crtshTimeFmt   = "2006-01-02T15:04:05"
	maxBodyBytes   = 10 << 20
)

var (
	// ErrNotFound indicates the log holds no certificates for the host
	ErrNotFound = errors.New("no certificates logged for host")

	// ErrBadResponse indicates the log returned something other than a JSON array
	ErrBadResponse = errors.New("unexpected certificate log response")
)

// CertSummary condenses the logged certificates for one host
type CertSummary struct {
	Host       string    `json:"host"`
	Entries    int       `json:"entries"`
	Issuer     string    `json:"issuer"`
	CommonName string    `json:"common_name"`
	NotBefore  time.Time `json:"not_before"`
	NotAfter   time.Time `json:"not_after"`
	FirstSeen  time.Time `json:"first_seen"`
}

// Client queries a crt.sh-compatible certificate-transparency search
type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
}

// New creates a client; an empty baseURL selects crt.sh
func New(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: "riskscan/1.0",
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Lookup returns the newest logged certificate for host plus the earliest
// issuance date seen
func (c *Client) Lookup(ctx context.Context, host string) (*CertSummary, error) {
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" {
		return nil, fmt.Errorf("empty host")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	q := req.URL.Query()
	q.Set("q", host)
	q.Set("output", "json")
	req.URL.RawQuery = q.Encode()
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call certificate log: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("certificate log returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read certificate log response: %w", err)
	}

	return summarize(host, body)
}

func summarize(host string, body []byte) (*CertSummary, error) {
	if !gjson.ValidBytes(body) {
		return nil, ErrBadResponse
	}
	parsed := gjson.ParseBytes(body)
	if !parsed.IsArray() {
		return nil, ErrBadResponse
	}

	summary := &CertSummary{Host: host}
	parsed.ForEach(func(_, entry gjson.Result) bool {
		notBefore, err := time.Parse(crtshTimeFmt, entry.Get("not_before").String())
		if err != nil {
			return true
		}
		summary.Entries++

		if summary.FirstSeen.IsZero() || notBefore.Before(summary.FirstSeen) {
			summary.FirstSeen = notBefore
		}
		if notBefore.After(summary.NotBefore) {
			summary.NotBefore = notBefore
			summary.NotAfter, _ = time.Parse(crtshTimeFmt, entry.Get("not_after").String())
			summary.Issuer = entry.Get("issuer_name").String()
			summary.CommonName = entry.Get("common_name").String()
		}
		return true
	})

	if summary.Entries == 0 {
		return nil, ErrNotFound
	}
	return summary, nil
}
