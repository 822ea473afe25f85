package analyzer

import (
	"regexp"
)

// ScriptPattern is one suspicious-script signature and the label reported when it matches
type ScriptPattern struct {
	Label   string
	Pattern *regexp.Regexp
}

// DefaultScriptPatterns returns the production suspicious-script table in reporting order
func DefaultScriptPatterns() []ScriptPattern {
	return []ScriptPattern{
		{"eval() execution", regexp.MustCompile(`\beval\s*\(`)},
		{"document.write injection", regexp.MustCompile(`document\.write(?:ln)?\s*\(`)},
		{"unescape() decoding", regexp.MustCompile(`\bunescape\s*\(`)},
		{"String.fromCharCode obfuscation", regexp.MustCompile(`fromCharCode`)},
		{"dynamic script creation", regexp.MustCompile(`(?i)createElement\s*\(\s*["']script["']\s*\)`)},
		{"location redirect", regexp.MustCompile(`(?:window|document|top|self)\.location(?:\.href)?\s*=[^=]|location\.href\s*=[^=]|location\.(?:replace|assign)\s*\(`)},
		{"cookie access", regexp.MustCompile(`document\.cookie`)},
		{"web storage access", regexp.MustCompile(`\b(?:localStorage|sessionStorage)\b`)},
		{"keyboard event listener", regexp.MustCompile(`(?i)addEventListener\s*\(\s*["']key(?:down|up|press)["']|\bonkey(?:down|up|press)\b`)},
		{"AJAX request", regexp.MustCompile(`XMLHttpRequest|\bfetch\s*\(`)},
	}
}

var (
	passwordInputPattern = regexp.MustCompile(`(?i)<input[^>]*type\s*=\s*["']?password\b`)
	emailInputPattern    = regexp.MustCompile(`(?i)<input[^>]*type\s*=\s*["']?email\b`)
	loginVocabPattern    = regexp.MustCompile(`(?i)login|signin|sign-in|log-in`)

	creditCardVocabPattern = regexp.MustCompile(`(?i)credit.?card|card.?number|cvv|cvc|expir`)
	numericInputPattern    = regexp.MustCompile(`(?i)<input[^>]*type\s*=\s*["']?(?:tel|number)\b`)
	paymentVocabPattern    = regexp.MustCompile(`(?i)payment|billing|checkout|card`)
)

// DetectPasswordField reports whether body contains an input typed password
func DetectPasswordField(body string) bool {
	return passwordInputPattern.MatchString(body)
}

// DetectLoginForm reports a password or email input, or login vocabulary anywhere in body
func DetectLoginForm(body string) bool {
	return passwordInputPattern.MatchString(body) ||
		emailInputPattern.MatchString(body) ||
		loginVocabPattern.MatchString(body)
}

// DetectPaymentForm reports credit-card vocabulary, or a tel/number input next to
// payment vocabulary
func DetectPaymentForm(body string) bool {
	if creditCardVocabPattern.MatchString(body) {
		return true
	}
	return numericInputPattern.MatchString(body) && paymentVocabPattern.MatchString(body)
}

// MatchScriptPatterns returns the label of every pattern found in body, once each,
// in table order
func MatchScriptPatterns(body string, patterns []ScriptPattern) []string {
	matches := make([]string, 0)
	for _, p := range patterns {
		if p.Pattern.MatchString(body) {
			matches = append(matches, p.Label)
		}
	}
	return matches
}
