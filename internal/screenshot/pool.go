package screenshot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/olegrjumin/riskscan/internal/logging"
)

// unhealthyAfter is the number of failed captures before an instance is recycled
const unhealthyAfter = 3

// PoolConfig sizes the browser pool and its window
type PoolConfig struct {
	Size      int
	Width     int
	Height    int
	UserAgent string
}

// BrowserInstance represents a single browser instance in the pool
type BrowserInstance struct {
	ctx        context.Context
	cancel     context.CancelFunc
	inUse      bool
	healthy    bool
	lastUsed   time.Time
	errorCount int
}

// Context returns the browser context captures run against
func (b *BrowserInstance) Context() context.Context {
	return b.ctx
}

// BrowserPool manages pre-warmed headless Chrome instances
type BrowserPool struct {
	instances []*BrowserInstance
	mu        sync.Mutex
	opts      []chromedp.ExecAllocatorOption
	logger    *logging.Logger
}

// NewBrowserPool starts cfg.Size browsers; any start failure tears the pool down
func NewBrowserPool(cfg PoolConfig, logger *logging.Logger) (*BrowserPool, error) {
	if cfg.Size <= 0 {
		cfg.Size = 2
	}
	if cfg.Width <= 0 {
		cfg.Width = defaultWidth
	}
	if cfg.Height <= 0 {
		cfg.Height = defaultHeight
	}

	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoDefaultBrowserCheck,
		chromedp.NoFirstRun,
		chromedp.Headless,
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-timer-throttling", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
		chromedp.Flag("disable-backgrounding-occluded-windows", true),
		chromedp.Flag("disable-hang-monitor", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-breakpad", true),
		chromedp.Flag("no-pings", true),
		chromedp.Flag("password-store", "basic"),
		chromedp.Flag("use-mock-keychain", true),
		// suspicious pages often carry broken certificates; the fetcher reports those separately
		chromedp.Flag("ignore-certificate-errors", true),
		chromedp.Flag("disable-domain-reliability", true),
		chromedp.Flag("disable-component-update", true),
		chromedp.WindowSize(cfg.Width, cfg.Height),
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}

	pool := &BrowserPool{
		instances: make([]*BrowserInstance, 0, cfg.Size),
		opts:      opts,
		logger:    logger,
	}

	for i := 0; i < cfg.Size; i++ {
		instance, err := pool.createInstance()
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to create browser instance %d: %w", i, err)
		}
		pool.instances = append(pool.instances, instance)
	}

	logger.Info("browser pool started", "size", cfg.Size)
	return pool, nil
}

func (p *BrowserPool) createInstance() (*BrowserInstance, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), p.opts...)
	ctx, cancel := chromedp.NewContext(allocCtx)

	// first Run launches the browser process
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		allocCancel()
		return nil, err
	}

	return &BrowserInstance{
		ctx: ctx,
		cancel: func() {
			cancel()
			allocCancel()
		},
		healthy:  true,
		lastUsed: time.Now(),
	}, nil
}

// Acquire hands out an idle healthy instance, replacing a broken idle one if needed.
// It never waits: callers queue in front of the pool instead.
func (p *BrowserPool) Acquire(ctx context.Context) (*BrowserInstance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, instance := range p.instances {
		if !instance.inUse && instance.healthy {
			instance.inUse = true
			instance.lastUsed = time.Now()
			return instance, nil
		}
	}

	for i, instance := range p.instances {
		if instance.inUse || instance.healthy {
			continue
		}
		replacement, err := p.replaceLocked(i)
		if err != nil {
			continue
		}
		replacement.inUse = true
		return replacement, nil
	}

	return nil, ErrBrowserUnavailable
}

// replaceLocked restarts the instance at index i; p.mu must be held
func (p *BrowserPool) replaceLocked(i int) (*BrowserInstance, error) {
	old := p.instances[i]
	if old.cancel != nil {
		old.cancel()
	}

	instance, err := p.createInstance()
	if err != nil {
		p.logger.Warn("browser restart failed", "slot", i, "error", err)
		return nil, err
	}
	p.instances[i] = instance
	return instance, nil
}

// Release returns an instance to the pool
func (p *BrowserPool) Release(instance *BrowserInstance) {
	if instance == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	instance.inUse = false
	instance.lastUsed = time.Now()
}

// MarkUnhealthy records a failed capture against the instance
func (p *BrowserPool) MarkUnhealthy(instance *BrowserInstance) {
	if instance == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	instance.errorCount++
	if instance.errorCount >= unhealthyAfter {
		instance.healthy = false
	}
}

// MarkHealthy resets the failure streak after a successful capture
func (p *BrowserPool) MarkHealthy(instance *BrowserInstance) {
	if instance == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	instance.errorCount = 0
}

// RecycleUnhealthy restarts idle unhealthy instances and returns how many were replaced
func (p *BrowserPool) RecycleUnhealthy() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	replaced := 0
	for i, instance := range p.instances {
		if instance.inUse || instance.healthy {
			continue
		}
		if _, err := p.replaceLocked(i); err == nil {
			replaced++
		}
	}
	return replaced
}

// Close shuts down all browser instances in the pool
func (p *BrowserPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, instance := range p.instances {
		if instance.cancel != nil {
			instance.cancel()
		}
	}

	p.instances = nil
	return nil
}

// Health reports idle and total instance counts
func (p *BrowserPool) Health() (available, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	total = len(p.instances)
	for _, instance := range p.instances {
		if !instance.inUse && instance.healthy {
			available++
		}
	}
	return
}

// Size returns the number of instances in the pool
func (p *BrowserPool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.instances)
}
