package scoring

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/olegrjumin/riskscan/internal/analyzer"
)

// Indicator type identifiers
const (
	IndicatorNoSSL               = "no_ssl"
	IndicatorRedirectChain       = "redirect_chain"
	IndicatorCrossDomainRedirect = "cross_domain_redirect"
	IndicatorMissingHeaders      = "missing_security_headers"
	IndicatorCredentialForm      = "credential_form"
	IndicatorPaymentForm         = "payment_form"
	IndicatorSuspiciousScripts   = "suspicious_scripts"
	IndicatorExcessiveIframes    = "excessive_iframes"
	IndicatorExternalScripts     = "excessive_external_scripts"
	IndicatorTyposquatting       = "typosquatting"
	IndicatorSuspiciousTLD       = "suspicious_tld"
)

const (
	pointsNoSSL             = 30
	pointsRedirectChain     = 15
	pointsCrossDomain       = 20
	pointsMissingHeaders    = 10
	pointsCredentialForm    = 10
	pointsPaymentForm       = 15
	pointsPerScriptPattern  = 5
	maxScriptPoints         = 25
	pointsExcessiveIframes  = 10
	pointsExternalScripts   = 5
	pointsTyposquatting     = 30
	pointsSuspiciousTLD     = 10
	maxRedirectHops         = 2
	maxIframes              = 3
	maxExternalScripts      = 10
	highSeverityScriptCount = 3
)

// ThreatIndicator is one signal that contributed to a score
type ThreatIndicator struct {
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
}

// RiskAssessment is the scored verdict for a page
type RiskAssessment struct {
	Score      int               `json:"score"`
	Level      Level             `json:"level"`
	Indicators []ThreatIndicator `json:"indicators"`
}

// Config carries the watch-lists the scorer checks against
type Config struct {
	Brands                 []string
	SuspiciousTLDs         []string
	MissingHeaderThreshold int
}

// DefaultBrands is the production brand watch-list
func DefaultBrands() []string {
	return []string{
		"google", "facebook", "apple", "microsoft", "amazon", "paypal",
		"netflix", "instagram", "linkedin", "twitter", "dropbox", "bank", "secure",
	}
}

// DefaultSuspiciousTLDs is the production low-reputation TLD list
func DefaultSuspiciousTLDs() []string {
	return []string{".xyz", ".top", ".club", ".work", ".click", ".link", ".tk", ".ml", ".ga", ".cf"}
}

// DefaultConfig returns the production watch-lists
func DefaultConfig() Config {
	return Config{
		Brands:                 DefaultBrands(),
		SuspiciousTLDs:         DefaultSuspiciousTLDs(),
		MissingHeaderThreshold: 3,
	}
}

// Scorer computes RiskAssessments. It is immutable after construction.
type Scorer struct {
	tlds            []string
	headerThreshold int
	lookalikes      []brandLookalikes
}

// NewScorer builds a scorer; nil lists fall back to the defaults, empty
// non-nil lists disable the corresponding check
func NewScorer(cfg Config) *Scorer {
	if cfg.Brands == nil {
		cfg.Brands = DefaultBrands()
	}
	if cfg.SuspiciousTLDs == nil {
		cfg.SuspiciousTLDs = DefaultSuspiciousTLDs()
	}
	if cfg.MissingHeaderThreshold <= 0 {
		cfg.MissingHeaderThreshold = 3
	}

	tlds := make([]string, 0, len(cfg.SuspiciousTLDs))
	for _, tld := range cfg.SuspiciousTLDs {
		tld = strings.ToLower(strings.TrimSpace(tld))
		if tld == "" {
			continue
		}
		if !strings.HasPrefix(tld, ".") {
			tld = "." + tld
		}
		tlds = append(tlds, tld)
	}

	return &Scorer{
		tlds:            tlds,
		headerThreshold: cfg.MissingHeaderThreshold,
		lookalikes:      buildLookalikes(cfg.Brands),
	}
}

var defaultScorer = NewScorer(DefaultConfig())

// Score runs the default scorer
func Score(content analyzer.ContentSignals, headers analyzer.HeaderSignals, originalURL, finalURL string, chain []string) RiskAssessment {
	return defaultScorer.Score(content, headers, originalURL, finalURL, chain)
}

// Score evaluates every check in fixed order and clamps the total to [0,100]
func (s *Scorer) Score(content analyzer.ContentSignals, headers analyzer.HeaderSignals, originalURL, finalURL string, chain []string) RiskAssessment {
	score := 0
	indicators := make([]ThreatIndicator, 0)
	add := func(points int, typ string, sev Severity, desc string) {
		score += points
		indicators = append(indicators, ThreatIndicator{Type: typ, Description: desc, Severity: sev})
	}

	if !strings.HasPrefix(strings.ToLower(finalURL), "https://") {
		add(pointsNoSSL, IndicatorNoSSL, SeverityHigh, "Page is not served over HTTPS")
	}

	if hops := len(chain) - 1; hops > maxRedirectHops {
		add(pointsRedirectChain, IndicatorRedirectChain, SeverityMedium,
			fmt.Sprintf("Redirect chain of %d hops", hops))
	}

	origHost, finalHost := hostname(originalURL), hostname(finalURL)
	if origHost != finalHost {
		add(pointsCrossDomain, IndicatorCrossDomainRedirect, SeverityHigh,
			fmt.Sprintf("Redirected from %s to %s", origHost, finalHost))
	}

	if n := len(headers.MissingHeaders); n > s.headerThreshold {
		add(pointsMissingHeaders, IndicatorMissingHeaders, SeverityLow,
			fmt.Sprintf("Missing %d security headers: %s", n, strings.Join(headers.MissingHeaders, ", ")))
	}

	if content.HasLoginForm && content.HasPasswordField {
		add(pointsCredentialForm, IndicatorCredentialForm, SeverityInfo, "Page collects login credentials")
	}

	if content.HasCreditCardField {
		add(pointsPaymentForm, IndicatorPaymentForm, SeverityMedium, "Page requests payment card details")
	}

	if n := len(content.SuspiciousScripts); n > 0 {
		points := n * pointsPerScriptPattern
		if points > maxScriptPoints {
			points = maxScriptPoints
		}
		sev := SeverityMedium
		if n > highSeverityScriptCount {
			sev = SeverityHigh
		}
		add(points, IndicatorSuspiciousScripts, sev,
			fmt.Sprintf("Suspicious script patterns: %s", strings.Join(content.SuspiciousScripts, ", ")))
	}

	if content.IframeCount > maxIframes {
		add(pointsExcessiveIframes, IndicatorExcessiveIframes, SeverityMedium,
			fmt.Sprintf("%d iframes embedded", content.IframeCount))
	}

	if content.ExternalScriptCount > maxExternalScripts {
		add(pointsExternalScripts, IndicatorExternalScripts, SeverityLow,
			fmt.Sprintf("%d external scripts loaded", content.ExternalScriptCount))
	}

	if brand, variant, ok := matchTyposquat(finalURL, s.lookalikes); ok {
		add(pointsTyposquatting, IndicatorTyposquatting, SeverityCritical,
			fmt.Sprintf("Domain resembles %s (%s)", brand, variant))
	}

	if tld, ok := s.matchTLD(finalURL); ok {
		add(pointsSuspiciousTLD, IndicatorSuspiciousTLD, SeverityLow,
			fmt.Sprintf("Low-reputation TLD %s", tld))
	}

	score = clamp(score, 0, 100)
	return RiskAssessment{
		Score:      score,
		Level:      LevelFor(score),
		Indicators: indicators,
	}
}

func (s *Scorer) matchTLD(finalURL string) (string, bool) {
	host := hostname(finalURL)
	if host == "" {
		host = strings.ToLower(finalURL)
	}
	host = strings.TrimSuffix(host, ".")
	for _, tld := range s.tlds {
		if strings.HasSuffix(host, tld) {
			return tld, true
		}
	}
	return "", false
}

func hostname(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
