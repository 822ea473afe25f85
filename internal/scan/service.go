package scan

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/olegrjumin/riskscan/internal/analyzer"
	"github.com/olegrjumin/riskscan/internal/ctlog"
	"github.com/olegrjumin/riskscan/internal/fetcher"
	"github.com/olegrjumin/riskscan/internal/logging"
	"github.com/olegrjumin/riskscan/internal/scoring"
	"github.com/olegrjumin/riskscan/internal/store"
)

// Default batch limits
const (
	DefaultMaxURLs     = 10
	DefaultParallelism = 4
)

// Fetcher retrieves a page and its redirect chain
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*fetcher.Outcome, error)
}

// Enricher captures a screenshot of a page
type Enricher interface {
	Capture(ctx context.Context, rawURL string) ([]byte, error)
}

// Store persists finished scans
type Store interface {
	Insert(ctx context.Context, rec *store.Record) error
}

// CertLookup fetches certificate-transparency history for a host
type CertLookup interface {
	Lookup(ctx context.Context, host string) (*ctlog.CertSummary, error)
}

// Options wires the optional collaborators and limits of a Service.
// Nil collaborators disable the step they back.
type Options struct {
	Enricher    Enricher
	Store       Store
	Certs       CertLookup
	Scorer      *scoring.Scorer
	Content     *analyzer.ContentAnalyzer
	Headers     *analyzer.HeaderAnalyzer
	MaxURLs     int
	Parallelism int
}

// Service runs single and batch scans. Each scan is fetch, analyze, score,
// enrich, persist, strictly in that order.
type Service struct {
	fetcher     Fetcher
	enricher    Enricher
	store       Store
	certs       CertLookup
	scorer      *scoring.Scorer
	content     *analyzer.ContentAnalyzer
	headers     *analyzer.HeaderAnalyzer
	maxURLs     int
	parallelism int
	logger      *logging.Logger
	now         func() time.Time
}

// New creates a new Service instance
func New(f Fetcher, logger *logging.Logger, opts Options) *Service {
	if opts.Scorer == nil {
		opts.Scorer = scoring.NewScorer(scoring.DefaultConfig())
	}
	if opts.Content == nil {
		opts.Content = analyzer.NewContentAnalyzer(nil, analyzer.DefaultMaxExternalLinks)
	}
	if opts.Headers == nil {
		opts.Headers = analyzer.NewHeaderAnalyzer(nil)
	}
	if opts.MaxURLs <= 0 {
		opts.MaxURLs = DefaultMaxURLs
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = DefaultParallelism
	}

	return &Service{
		fetcher:     f,
		enricher:    opts.Enricher,
		store:       opts.Store,
		certs:       opts.Certs,
		scorer:      opts.Scorer,
		content:     opts.Content,
		headers:     opts.Headers,
		maxURLs:     opts.MaxURLs,
		parallelism: opts.Parallelism,
		logger:      logger,
		now:         time.Now,
	}
}

// Scan scans one URL. The only error is a *ValidationError for blank input;
// fetch failures come back as a result with StatusFailed.
func (s *Service) Scan(ctx context.Context, rawURL string, includeScreenshot bool) (*ScanResult, error) {
	target := fetcher.NormalizeURL(rawURL)
	if target == "" {
		return nil, &ValidationError{Err: ErrEmptyURL}
	}
	return s.scanOne(ctx, target, includeScreenshot, ""), nil
}

// ScanBatch scans up to MaxURLs URLs; extra inputs are dropped. Items run with
// bounded parallelism and results keep input order.
func (s *Service) ScanBatch(ctx context.Context, urls []string, includeScreenshots bool) (*BatchResult, error) {
	return s.runBatch(ctx, urls, includeScreenshots, nil)
}

func (s *Service) runBatch(ctx context.Context, urls []string, includeScreenshots bool, onItem func(int, *ScanResult)) (*BatchResult, error) {
	if len(urls) == 0 {
		return nil, &ValidationError{Err: ErrNoURLs}
	}
	if len(urls) > s.maxURLs {
		s.logger.Info("Batch truncated", "received", len(urls), "max", s.maxURLs)
		urls = urls[:s.maxURLs]
	}

	batchID := uuid.NewString()
	results := make([]*ScanResult, len(urls))
	s.logger.Info("Batch started", "batch_id", batchID, "total", len(urls))

	sem := make(chan struct{}, s.parallelism)
	var wg sync.WaitGroup
	for i, raw := range urls {
		acquired := false
		select {
		case <-ctx.Done():
		case sem <- struct{}{}:
			acquired = true
		}
		// no new fetches once the caller is gone
		if ctx.Err() != nil {
			if acquired {
				<-sem
			}
			results[i] = s.cancelled(strings.TrimSpace(raw), batchID, ctx.Err())
			if onItem != nil {
				onItem(i, results[i])
			}
			continue
		}

		wg.Add(1)
		go func(i int, raw string) {
			defer wg.Done()
			defer func() { <-sem }()

			target := fetcher.NormalizeURL(raw)
			if target == "" {
				results[i] = s.failed(strings.TrimSpace(raw), batchID, ErrEmptyURL.Error(), "")
			} else {
				results[i] = s.scanOne(ctx, target, includeScreenshots, batchID)
			}
			if onItem != nil {
				onItem(i, results[i])
			}
		}(i, raw)
	}
	wg.Wait()

	batch := &BatchResult{
		BatchID: batchID,
		Results: results,
		Summary: Summarize(results),
	}
	s.logger.Info("Batch completed",
		"batch_id", batchID,
		"total", batch.Summary.Total,
		"completed", batch.Summary.Completed,
		"failed", batch.Summary.Failed,
		"high_risk", batch.Summary.HighRiskCount,
	)
	return batch, nil
}

func (s *Service) scanOne(ctx context.Context, target string, includeScreenshot bool, batchID string) *ScanResult {
	if ctx.Err() != nil {
		return s.cancelled(target, batchID, ctx.Err())
	}

	start := s.now()
	s.logger.Info("Scanning URL", "url", target, "batch_id", batchID)

	outcome, err := s.fetcher.Fetch(ctx, target)
	if err != nil {
		if ctx.Err() != nil {
			result := s.cancelled(target, batchID, ctx.Err())
			result.ElapsedMs = s.now().Sub(start).Milliseconds()
			return result
		}
		fe := fetcher.ClassifyError(target, err)
		result := s.failed(target, batchID, fe.Error(), string(fe.Kind))
		result.ElapsedMs = s.now().Sub(start).Milliseconds()
		s.logger.Warn("Scan failed", "url", target, "error_kind", fe.Kind, "error", fe.Message)
		s.persist(ctx, result)
		return result
	}

	if !outcome.ElapsedOK {
		s.logger.Warn("Fetch overran its timeout", "url", target, "fetch_ms", outcome.ElapsedMs)
	}

	signals := s.content.Analyze(outcome.Body, outcome.FinalURL)
	headerSignals := s.headers.Analyze(outcome.Headers)
	assessment := s.scorer.Score(signals, headerSignals, target, outcome.FinalURL, outcome.RedirectChain)

	result := &ScanResult{
		ID:             uuid.NewString(),
		BatchID:        batchID,
		Target:         target,
		FinalURL:       outcome.FinalURL,
		RedirectChain:  outcome.RedirectChain,
		PageTitle:      analyzer.ExtractTitle(outcome.Body),
		SSLValid:       fetcher.IsHTTPS(outcome.FinalURL),
		StatusCode:     outcome.StatusCode,
		ContentType:    outcome.ContentType,
		Protocol:       outcome.Protocol,
		Timings:        &outcome.Timings,
		ContentSignals: signals,
		HeaderSignals:  headerSignals,
		Assessment:     assessment,
		TLS:            outcome.TLS,
		Status:         StatusCompleted,
		CreatedAt:      s.now().UTC(),
	}

	if s.certs != nil {
		s.attachCertificate(ctx, result)
	}
	if includeScreenshot && s.enricher != nil {
		s.attachScreenshot(ctx, result)
	}

	result.ElapsedMs = s.now().Sub(start).Milliseconds()
	s.logger.Info("Scan completed",
		"url", target,
		"status", result.Status,
		"score", assessment.Score,
		"level", assessment.Level,
		"elapsed_ms", result.ElapsedMs,
		"dns_ms", outcome.Timings.DNSMs,
		"tls_ms", outcome.Timings.TLSMs,
		"ttfb_ms", outcome.Timings.TTFBMs,
		"protocol", outcome.Protocol,
	)

	s.persist(ctx, result)
	return result
}

// failed builds the neutral result reported when a page cannot be scanned
func (s *Service) failed(target, batchID, msg, kind string) *ScanResult {
	return &ScanResult{
		ID:            uuid.NewString(),
		BatchID:       batchID,
		Target:        target,
		FinalURL:      target,
		RedirectChain: []string{},
		ContentSignals: analyzer.ContentSignals{
			SuspiciousScripts: []string{},
			ExternalLinks:     []string{},
		},
		HeaderSignals: analyzer.HeaderSignals{MissingHeaders: []string{}},
		Assessment: scoring.RiskAssessment{
			Score:      FailedScore,
			Level:      FailedLevel,
			Indicators: []scoring.ThreatIndicator{},
		},
		Status:    StatusFailed,
		Error:     msg,
		ErrorKind: kind,
		CreatedAt: s.now().UTC(),
	}
}

// cancelled builds the result for an item abandoned by its caller. It is
// not persisted: the page was never judged.
func (s *Service) cancelled(target, batchID string, cause error) *ScanResult {
	s.logger.Info("Scan cancelled", "url", target, "batch_id", batchID, "error", cause)
	return s.failed(target, batchID, "scan cancelled: "+cause.Error(), ErrorKindCancelled)
}

func (s *Service) attachScreenshot(ctx context.Context, result *ScanResult) {
	img, err := s.enricher.Capture(ctx, result.FinalURL)
	if err != nil {
		s.logger.Warn("Screenshot skipped", "url", result.FinalURL, "error", err)
		return
	}
	result.Screenshot = img
}

func (s *Service) attachCertificate(ctx context.Context, result *ScanResult) {
	u, err := url.Parse(result.FinalURL)
	if err != nil || u.Hostname() == "" {
		return
	}
	summary, err := s.certs.Lookup(ctx, u.Hostname())
	if err != nil {
		if !errors.Is(err, ctlog.ErrNotFound) {
			s.logger.Warn("Certificate lookup failed", "host", u.Hostname(), "error", err)
		}
		return
	}
	result.Certificate = summary
}

// persist writes the result once; failures are logged and never surface
func (s *Service) persist(ctx context.Context, result *ScanResult) {
	if s.store == nil {
		return
	}
	rec, err := toRecord(result)
	if err != nil {
		s.logger.Error("Failed to encode scan for storage", "id", result.ID, "error", err)
		return
	}
	// a cancelled request must not lose an already finished scan
	if err := s.store.Insert(context.WithoutCancel(ctx), rec); err != nil {
		s.logger.Error("Failed to persist scan", "id", result.ID, "url", result.Target, "error", err)
	}
}

func toRecord(r *ScanResult) (*store.Record, error) {
	indicators, err := json.Marshal(r.Assessment.Indicators)
	if err != nil {
		return nil, err
	}
	signals, err := json.Marshal(r.ContentSignals)
	if err != nil {
		return nil, err
	}
	var cert json.RawMessage
	if r.Certificate != nil {
		if cert, err = json.Marshal(r.Certificate); err != nil {
			return nil, err
		}
	}

	return &store.Record{
		ID:             r.ID,
		BatchID:        r.BatchID,
		URL:            r.Target,
		FinalURL:       r.FinalURL,
		RedirectChain:  r.RedirectChain,
		PageTitle:      r.PageTitle,
		SSLValid:       r.SSLValid,
		Score:          r.Assessment.Score,
		Level:          string(r.Assessment.Level),
		Indicators:     indicators,
		ContentSignals: signals,
		Certificate:    cert,
		Screenshot:     r.Screenshot,
		Status:         string(r.Status),
		Error:          r.Error,
		CreatedAt:      r.CreatedAt,
	}, nil
}
