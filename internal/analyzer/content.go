package analyzer

import (
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DefaultMaxExternalLinks caps ContentSignals.ExternalLinks
const DefaultMaxExternalLinks = 20

// ContentSignals holds structural and security signals extracted from a page body
type ContentSignals struct {
	HasLoginForm        bool     `json:"has_login_form"`
	HasPasswordField    bool     `json:"has_password_field"`
	HasCreditCardField  bool     `json:"has_credit_card_field"`
	FormCount           int      `json:"form_count"`
	InputCount          int      `json:"input_count"`
	IframeCount         int      `json:"iframe_count"`
	ScriptCount         int      `json:"script_count"`
	ExternalScriptCount int      `json:"external_script_count"`
	SuspiciousScripts   []string `json:"suspicious_scripts"`
	ExternalLinks       []string `json:"external_links"`
}

// ContentAnalyzer extracts ContentSignals. It holds no mutable state and is
// safe for concurrent use.
type ContentAnalyzer struct {
	scriptPatterns []ScriptPattern
	maxLinks       int
}

// NewContentAnalyzer creates an analyzer with the given script patterns and link cap.
// A nil pattern slice selects DefaultScriptPatterns.
func NewContentAnalyzer(patterns []ScriptPattern, maxLinks int) *ContentAnalyzer {
	if patterns == nil {
		patterns = DefaultScriptPatterns()
	}
	if maxLinks <= 0 {
		maxLinks = DefaultMaxExternalLinks
	}
	return &ContentAnalyzer{
		scriptPatterns: patterns,
		maxLinks:       maxLinks,
	}
}

var defaultContentAnalyzer = NewContentAnalyzer(nil, DefaultMaxExternalLinks)

// AnalyzeContent runs the default analyzer over body
func AnalyzeContent(body, originURL string) ContentSignals {
	return defaultContentAnalyzer.Analyze(body, originURL)
}

// Analyze derives ContentSignals from body; originURL decides what counts as external
func (a *ContentAnalyzer) Analyze(body, originURL string) ContentSignals {
	signals := ContentSignals{
		HasLoginForm:       DetectLoginForm(body),
		HasPasswordField:   DetectPasswordField(body),
		HasCreditCardField: DetectPaymentForm(body),
		SuspiciousScripts:  MatchScriptPatterns(body, a.scriptPatterns),
		ExternalLinks:      make([]string, 0),
	}

	origin, _ := url.Parse(originURL)
	originHost := ""
	if origin != nil {
		originHost = strings.ToLower(origin.Hostname())
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return signals
	}

	signals.FormCount = doc.Find("form").Length()
	signals.InputCount = doc.Find("input").Length()
	signals.IframeCount = doc.Find("iframe").Length()
	signals.ScriptCount = doc.Find("script").Length()
	signals.ExternalScriptCount = countExternalScripts(doc, origin, originHost)
	signals.ExternalLinks = extractExternalLinks(doc, originHost, a.maxLinks)

	return signals
}

// extractExternalLinks collects absolute http(s) hrefs pointing off-host, deduplicated,
// in document order, up to limit
func extractExternalLinks(doc *goquery.Document, originHost string, limit int) []string {
	links := make([]string, 0)
	seen := make(map[string]bool)

	doc.Find("[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)

		lower := strings.ToLower(href)
		if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
			return true
		}

		u, err := url.Parse(href)
		if err != nil || u.Hostname() == "" {
			return true
		}
		if strings.EqualFold(u.Hostname(), originHost) || seen[href] {
			return true
		}

		seen[href] = true
		links = append(links, href)
		return len(links) < limit
	})

	return links
}

// countExternalScripts counts script src references to .js files on another host
func countExternalScripts(doc *goquery.Document, origin *url.URL, originHost string) int {
	count := 0
	doc.Find("script[src]").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		u, err := url.Parse(strings.TrimSpace(src))
		if err != nil {
			return
		}
		if origin != nil {
			u = origin.ResolveReference(u)
		}
		if !strings.EqualFold(path.Ext(u.Path), ".js") {
			return
		}
		if u.Hostname() != "" && !strings.EqualFold(u.Hostname(), originHost) {
			count++
		}
	})
	return count
}

// ExtractTitle returns the trimmed text of the first <title>, or "Unknown"
func ExtractTitle(body string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return "Unknown"
	}
	title := strings.Join(strings.Fields(doc.Find("title").First().Text()), " ")
	if title == "" {
		return "Unknown"
	}
	return title
}
