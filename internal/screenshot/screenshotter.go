package screenshot

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"time"

	"github.com/buckket/go-blurhash"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/olegrjumin/riskscan/internal/logging"
)

// Screenshotter captures viewport screenshots using a browser pool
type Screenshotter struct {
	pool   *BrowserPool
	logger *logging.Logger
}

// New creates a Screenshotter with its own browser pool
func New(cfg PoolConfig, logger *logging.Logger) (*Screenshotter, error) {
	pool, err := NewBrowserPool(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create browser pool: %w", err)
	}

	return &Screenshotter{
		pool:   pool,
		logger: logger,
	}, nil
}

// Capture takes a screenshot of opts.URL. The returned Result is never nil.
func (s *Screenshotter) Capture(ctx context.Context, opts *Options) (*Result, error) {
	start := time.Now()

	if err := opts.Validate(); err != nil {
		return failedResult(opts.URL, err), err
	}

	browser, err := s.pool.Acquire(ctx)
	if err != nil {
		return failedResult(opts.URL, ErrBrowserUnavailable), ErrBrowserUnavailable
	}
	defer s.pool.Release(browser)

	timeoutCtx, cancel := context.WithTimeout(browser.Context(), opts.Timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var buf []byte
	err = chromedp.Run(timeoutCtx,
		network.Enable(),
		network.SetExtraHTTPHeaders(network.Headers{"Accept-Language": "en-US,en;q=0.9"}),
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
		chromedp.Navigate(opts.URL),
		chromedp.WaitReady(`body`, chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			params := page.CaptureScreenshot()
			if opts.Format == FormatPNG {
				params = params.WithFormat(page.CaptureScreenshotFormatPng)
			} else {
				params = params.WithFormat(page.CaptureScreenshotFormatJpeg).WithQuality(int64(opts.Quality))
			}
			data, err := params.Do(ctx)
			if err != nil {
				return err
			}
			buf = data
			return nil
		}),
	)
	if err != nil {
		if errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) {
			s.logger.Warn("screenshot timed out", "url", opts.URL, "timeout_ms", opts.TimeoutMs)
			return failedResult(opts.URL, ErrTimeout), ErrTimeout
		}
		s.pool.MarkUnhealthy(browser)
		s.logger.Warn("screenshot failed", "url", opts.URL, "error", err)
		return failedResult(opts.URL, ErrScreenshotFailed), ErrScreenshotFailed
	}
	s.pool.MarkHealthy(browser)

	result := &Result{
		Success:       true,
		Data:          buf,
		MimeType:      opts.MimeType(),
		SizeBytes:     int64(len(buf)),
		CaptureTimeMs: time.Since(start).Milliseconds(),
		URL:           opts.URL,
	}
	result.BlurHash, result.Width, result.Height = placeholder(buf)

	return result, nil
}

// placeholder decodes the image and computes its blurhash; failures leave the hash empty
func placeholder(data []byte) (hash string, width, height int) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", 0, 0
	}

	width = img.Bounds().Dx()
	height = img.Bounds().Dy()

	// 4x3 components
	hash, err = blurhash.Encode(4, 3, img)
	if err != nil {
		return "", width, height
	}
	return hash, width, height
}

// EncodeDataURI renders image bytes as a data URI
func EncodeDataURI(mimeType string, data []byte) string {
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
}

// Pool exposes the underlying browser pool
func (s *Screenshotter) Pool() *BrowserPool {
	return s.pool
}

// Close shuts down the screenshotter and its browser pool
func (s *Screenshotter) Close() error {
	if s.pool != nil {
		return s.pool.Close()
	}
	return nil
}
