package screenshot

import (
	"context"
	"time"

	"github.com/olegrjumin/riskscan/internal/logging"
)

type queuedCapturer interface {
	CaptureQueued(ctx context.Context, opts *Options) (*Result, error)
}

// EnricherConfig fixes the viewport and deadline used for scan screenshots
type EnricherConfig struct {
	Width   int
	Height  int
	Timeout time.Duration
}

// Enricher attaches screenshots to scans through the capture queue
type Enricher struct {
	queue  queuedCapturer
	cfg    EnricherConfig
	logger *logging.Logger
}

// NewEnricher creates an Enricher over a queued screenshotter
func NewEnricher(queue queuedCapturer, cfg EnricherConfig, logger *logging.Logger) *Enricher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeoutMs * time.Millisecond
	}
	return &Enricher{queue: queue, cfg: cfg, logger: logger}
}

// Capture returns JPEG bytes for rawURL
func (e *Enricher) Capture(ctx context.Context, rawURL string) ([]byte, error) {
	// queue wait and capture share one deadline
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	opts := &Options{
		URL:     rawURL,
		Format:  FormatJPEG,
		Width:   e.cfg.Width,
		Height:  e.cfg.Height,
		Timeout: e.cfg.Timeout,
	}

	result, err := e.queue.CaptureQueued(ctx, opts)
	if err != nil {
		return nil, err
	}
	if result == nil || !result.Success || len(result.Data) == 0 {
		return nil, ErrScreenshotFailed
	}

	e.logger.Debug("screenshot captured", "url", rawURL, "bytes", result.SizeBytes, "ms", result.CaptureTimeMs)
	return result.Data, nil
}
