package narrative

import "strings"

// Tone is a coarse reading of how alarming an explanation sounds
type Tone string

const (
	ToneReassuring Tone = "reassuring"
	ToneCautionary Tone = "cautionary"
	ToneAlarming   Tone = "alarming"
	ToneNeutral    Tone = "neutral"
)

var (
	reassuringPhrases = []string{
		"legitimate", "reputable", "established", "well-known",
		"trusted", "official", "safe to use", "no security concerns",
		"no indication of fraud", "low risk",
	}

	alarmingPhrases = []string{
		"is malicious", "phishing", "scam", "fraudulent",
		"impersonat", "credential theft", "steal", "malware",
		"do not visit", "do not enter", "avoid this",
	}

	cautionaryPhrases = []string{
		"suspicious", "untrusted", "questionable", "risky",
		"caution", "warning", "newly registered", "be careful",
		"red flag", "unusual", "potentially unsafe",
	}
)

// ClassifyTone maps explanation text onto a Tone by counting phrase families.
// Alarming language wins once it appears twice or outweighs reassurance.
func ClassifyTone(text string) Tone {
	lower := strings.ToLower(text)

	reassuring := countMatches(lower, reassuringPhrases)
	alarming := countMatches(lower, alarmingPhrases)
	cautionary := countMatches(lower, cautionaryPhrases)

	switch {
	case alarming >= 2 || (alarming > 0 && alarming > reassuring):
		return ToneAlarming
	case cautionary > reassuring:
		return ToneCautionary
	case reassuring > 0 && alarming == 0:
		return ToneReassuring
	case cautionary > 0 || alarming > 0:
		return ToneCautionary
	default:
		return ToneNeutral
	}
}

func countMatches(text string, phrases []string) int {
	count := 0
	for _, p := range phrases {
		if strings.Contains(text, p) {
			count++
		}
	}
	return count
}
