package scan

import (
	"errors"
	"time"

	"github.com/olegrjumin/riskscan/internal/analyzer"
	"github.com/olegrjumin/riskscan/internal/ctlog"
	"github.com/olegrjumin/riskscan/internal/fetcher"
	"github.com/olegrjumin/riskscan/internal/scoring"
)

// Status is the terminal state of one scan
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// ErrorKindCancelled marks items abandoned because the caller went away.
// Such results are returned but never persisted.
const ErrorKindCancelled = "cancelled"

// Neutral verdict for pages that could not be fetched
const (
	FailedScore = 50
	FailedLevel = scoring.LevelMedium
)

var (
	ErrEmptyURL = errors.New("url is required")
	ErrNoURLs   = errors.New("at least one url is required")
)

// ValidationError rejects input before any I/O happens
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return "invalid input: " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is an input error rather than a scan failure
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ScanResult is the externally visible outcome of scanning one URL
type ScanResult struct {
	ID             string                  `json:"id"`
	BatchID        string                  `json:"batch_id,omitempty"`
	Target         string                  `json:"target"`
	FinalURL       string                  `json:"final_url"`
	RedirectChain  []string                `json:"redirect_chain"`
	PageTitle      string                  `json:"page_title"`
	SSLValid       bool                    `json:"ssl_valid"`
	StatusCode     int                     `json:"status_code,omitempty"`
	ContentType    string                  `json:"content_type,omitempty"`
	Protocol       string                  `json:"protocol,omitempty"`
	Timings        *fetcher.Timings        `json:"timings,omitempty"`
	ContentSignals analyzer.ContentSignals `json:"content_signals"`
	HeaderSignals  analyzer.HeaderSignals  `json:"header_signals"`
	Assessment     scoring.RiskAssessment  `json:"assessment"`
	TLS            *fetcher.TLSInfo        `json:"tls,omitempty"`
	Certificate    *ctlog.CertSummary      `json:"certificate,omitempty"`
	Screenshot     []byte                  `json:"screenshot,omitempty"`
	Status         Status                  `json:"status"`
	Error          string                  `json:"error,omitempty"`
	ErrorKind      string                  `json:"error_kind,omitempty"`
	ElapsedMs      int64                   `json:"elapsed_ms"`
	CreatedAt      time.Time               `json:"created_at"`
}

// HighRisk reports a completed scan whose level is high or critical
func (r *ScanResult) HighRisk() bool {
	return r.Status == StatusCompleted && r.Assessment.Level.IsHighRisk()
}

// BatchSummary aggregates the items of one batch
type BatchSummary struct {
	Total         int `json:"total"`
	Completed     int `json:"completed"`
	Failed        int `json:"failed"`
	HighRiskCount int `json:"high_risk_count"`
}

// BatchResult holds per-item results in input order plus their summary
type BatchResult struct {
	BatchID string        `json:"batch_id"`
	Results []*ScanResult `json:"results"`
	Summary BatchSummary  `json:"summary"`
}

// Summarize reduces terminal results to a BatchSummary
func Summarize(results []*ScanResult) BatchSummary {
	summary := BatchSummary{Total: len(results)}
	for _, r := range results {
		if r == nil || r.Status != StatusCompleted {
			summary.Failed++
			continue
		}
		summary.Completed++
		if r.HighRisk() {
			summary.HighRiskCount++
		}
	}
	return summary
}
