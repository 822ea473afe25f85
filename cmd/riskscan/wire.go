package main

import (
	"time"

	"github.com/olegrjumin/riskscan/internal/analyzer"
	"github.com/olegrjumin/riskscan/internal/config"
	"github.com/olegrjumin/riskscan/internal/ctlog"
	"github.com/olegrjumin/riskscan/internal/fetcher"
	"github.com/olegrjumin/riskscan/internal/httpclient"
	"github.com/olegrjumin/riskscan/internal/logging"
	"github.com/olegrjumin/riskscan/internal/narrative"
	"github.com/olegrjumin/riskscan/internal/scan"
	"github.com/olegrjumin/riskscan/internal/scoring"
	"github.com/olegrjumin/riskscan/internal/screenshot"
	"github.com/olegrjumin/riskscan/internal/store"
)

const maintenanceInterval = time.Minute

// components is everything a command needs, built from one Config
type components struct {
	scanner     *scan.Service
	store       *store.Store
	queue       *screenshot.QueuedScreenshotter
	maintenance *screenshot.Maintenance
	narrator    *narrative.Client
	logger      *logging.Logger
}

// build wires the scan pipeline. Optional pieces that fail to start are
// logged and left out; the scanner works without them.
func build(cfg *config.Config, logger *logging.Logger, withScreenshots bool) *components {
	c := &components{logger: logger}

	client := httpclient.NewClient(httpclient.Options{
		MaxBodyBytes: int64(cfg.Fetch.MaxBodyMB) * 1024 * 1024,
		RateLimit:    cfg.Fetch.RateLimit,
	})
	f := fetcher.New(client, fetcher.Options{
		Timeout:      cfg.Fetch.Timeout,
		MaxRedirects: cfg.Fetch.MaxRedirects,
		UserAgent:    cfg.Fetch.UserAgent,
	})

	opts := scan.Options{
		Scorer:      scoring.NewScorer(scorerConfig(cfg.Scoring)),
		Content:     analyzer.NewContentAnalyzer(nil, analyzer.DefaultMaxExternalLinks),
		Headers:     analyzer.NewHeaderAnalyzer(nil),
		MaxURLs:     cfg.Batch.MaxURLs,
		Parallelism: cfg.Batch.Parallelism,
	}

	if st, err := store.Open(cfg.Database.Path); err != nil {
		logger.Error("Failed to open database, scans will not be persisted", "path", cfg.Database.Path, "error", err)
	} else {
		c.store = st
		opts.Store = st
		logger.Info("Database ready", "path", cfg.Database.Path)
	}

	if withScreenshots {
		base, err := screenshot.New(screenshot.PoolConfig{
			Size:      cfg.Screenshot.PoolSize,
			Width:     cfg.Screenshot.Width,
			Height:    cfg.Screenshot.Height,
			UserAgent: cfg.Fetch.UserAgent,
		}, logger)
		if err != nil {
			logger.Error("Failed to initialize screenshot service", "error", err)
		} else {
			c.queue = screenshot.NewQueuedScreenshotter(base, cfg.Screenshot.PoolSize, cfg.Screenshot.QueueSize)
			c.maintenance = screenshot.NewMaintenance(base.Pool(), maintenanceInterval, logger)
			c.maintenance.Start()
			opts.Enricher = screenshot.NewEnricher(c.queue, screenshot.EnricherConfig{
				Width:   cfg.Screenshot.Width,
				Height:  cfg.Screenshot.Height,
				Timeout: cfg.Screenshot.Timeout,
			}, logger)
			logger.Info("Screenshot service started", "pool_size", cfg.Screenshot.PoolSize, "queue_size", cfg.Screenshot.QueueSize)
		}
	}

	if cfg.CTLog.Enabled {
		opts.Certs = ctlog.New(cfg.CTLog.BaseURL, cfg.CTLog.Timeout)
	}

	if cfg.Narrative.Enabled && cfg.Narrative.BaseURL != "" {
		c.narrator = narrative.New(cfg.Narrative.BaseURL, cfg.Narrative.Timeout)
	}

	c.scanner = scan.New(f, logger, opts)
	return c
}

// scorerConfig keeps the built-in watch-lists unless the config names its own
func scorerConfig(sc config.ScoringConfig) scoring.Config {
	out := scoring.Config{}
	if len(sc.Brands) > 0 {
		out.Brands = sc.Brands
	}
	if len(sc.SuspiciousTLDs) > 0 {
		out.SuspiciousTLDs = sc.SuspiciousTLDs
	}
	return out
}

// Close stops background work and releases the browser pool and database
func (c *components) Close() {
	if c.maintenance != nil {
		c.maintenance.Stop()
	}
	if c.queue != nil {
		if err := c.queue.Close(); err != nil {
			c.logger.Error("Failed to close screenshot service", "error", err)
		}
	}
	if c.store != nil {
		if err := c.store.Close(); err != nil {
			c.logger.Error("Failed to close database", "error", err)
		}
	}
}
