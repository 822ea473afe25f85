package screenshot

import (
	"net/url"
	"strings"
	"time"
)

const (
	FormatJPEG = "jpeg"
	FormatPNG  = "png"

	defaultQuality   = 75
	defaultWidth     = 1280
	defaultHeight    = 720
	defaultTimeoutMs = 10000
)

// Options defines screenshot capture options
type Options struct {
	URL       string        `json:"url"`
	Format    string        `json:"format"`
	Quality   int           `json:"quality"`
	Width     int           `json:"width"`
	Height    int           `json:"height"`
	TimeoutMs int           `json:"timeout_ms"`
	Timeout   time.Duration `json:"-"`
}

// DefaultOptions returns options for a JPEG viewport capture
func DefaultOptions() *Options {
	return &Options{
		Format:    FormatJPEG,
		Quality:   defaultQuality,
		Width:     defaultWidth,
		Height:    defaultHeight,
		TimeoutMs: defaultTimeoutMs,
		Timeout:   defaultTimeoutMs * time.Millisecond,
	}
}

// Validate rejects unusable URLs and fills unset fields with defaults
func (o *Options) Validate() error {
	u, err := url.Parse(strings.TrimSpace(o.URL))
	if o.URL == "" || err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidURL
	}

	o.Format = strings.ToLower(o.Format)
	if o.Format != FormatPNG {
		o.Format = FormatJPEG
	}
	if o.Quality <= 0 || o.Quality > 100 {
		o.Quality = defaultQuality
	}
	if o.Width <= 0 {
		o.Width = defaultWidth
	}
	if o.Height <= 0 {
		o.Height = defaultHeight
	}
	if o.TimeoutMs <= 0 {
		if o.Timeout > 0 {
			o.TimeoutMs = int(o.Timeout / time.Millisecond)
		} else {
			o.TimeoutMs = defaultTimeoutMs
		}
	}
	o.Timeout = time.Duration(o.TimeoutMs) * time.Millisecond

	return nil
}

// MimeType returns the content type of images captured with these options
func (o *Options) MimeType() string {
	if o.Format == FormatPNG {
		return "image/png"
	}
	return "image/jpeg"
}

// Result represents a screenshot capture result
type Result struct {
	Success       bool   `json:"success"`
	Data          []byte `json:"-"`
	Base64Data    string `json:"base64_data,omitempty"`
	MimeType      string `json:"mime_type,omitempty"`
	SizeBytes     int64  `json:"size_bytes,omitempty"`
	CaptureTimeMs int64  `json:"capture_time_ms,omitempty"`
	URL           string `json:"url"`
	Error         string `json:"error,omitempty"`
	BlurHash      string `json:"blurhash,omitempty"` // placeholder for progressive loading
	Width         int    `json:"width,omitempty"`
	Height        int    `json:"height,omitempty"`
}

func failedResult(rawURL string, err error) *Result {
	return &Result{Success: false, URL: rawURL, Error: err.Error()}
}
