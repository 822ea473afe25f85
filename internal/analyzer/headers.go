package analyzer

import "strings"

// Standard hardening header names
const (
	HeaderHSTS               = "Strict-Transport-Security"
	HeaderCSP                = "Content-Security-Policy"
	HeaderFrameOptions       = "X-Frame-Options"
	HeaderContentTypeOptions = "X-Content-Type-Options"
	HeaderXSSProtection      = "X-XSS-Protection"
)

// DefaultSecurityHeaders returns the headers checked by default, in reporting order
func DefaultSecurityHeaders() []string {
	return []string{
		HeaderHSTS,
		HeaderCSP,
		HeaderFrameOptions,
		HeaderContentTypeOptions,
		HeaderXSSProtection,
	}
}

// HeaderSignals records which hardening headers a response lacked
type HeaderSignals struct {
	MissingHeaders []string `json:"missing_headers"`
	HasHSTS        bool     `json:"has_hsts"`
}

// HeaderAnalyzer checks a response for a configured set of headers
type HeaderAnalyzer struct {
	required []string
}

// NewHeaderAnalyzer creates an analyzer for the given header names.
// An empty list selects DefaultSecurityHeaders.
func NewHeaderAnalyzer(required []string) *HeaderAnalyzer {
	if len(required) == 0 {
		required = DefaultSecurityHeaders()
	}
	return &HeaderAnalyzer{required: required}
}

var defaultHeaderAnalyzer = NewHeaderAnalyzer(nil)

// AnalyzeHeaders runs the default header analyzer
func AnalyzeHeaders(headers map[string]string) HeaderSignals {
	return defaultHeaderAnalyzer.Analyze(headers)
}

// Analyze reports missing headers; names match case-insensitively and an empty
// value counts as absent
func (a *HeaderAnalyzer) Analyze(headers map[string]string) HeaderSignals {
	signals := HeaderSignals{
		MissingHeaders: make([]string, 0),
		HasHSTS:        headerPresent(headers, HeaderHSTS),
	}

	for _, name := range a.required {
		if !headerPresent(headers, name) {
			signals.MissingHeaders = append(signals.MissingHeaders, name)
		}
	}

	return signals
}

func headerPresent(headers map[string]string, name string) bool {
	if v, ok := headers[name]; ok {
		return strings.TrimSpace(v) != ""
	}
	for key, v := range headers {
		if strings.EqualFold(key, name) {
			return strings.TrimSpace(v) != ""
		}
	}
	return false
}
