package scoring

// Level buckets a risk score
type Level string

const (
	LevelSafe     Level = "safe"
	LevelLow      Level = "low"
	LevelMedium   Level = "medium"
	LevelHigh     Level = "high"
	LevelCritical Level = "critical"
)

// LevelFor maps a score onto its level. Upper bounds are exclusive.
func LevelFor(score int) Level {
	switch {
	case score < 15:
		return LevelSafe
	case score < 35:
		return LevelLow
	case score < 55:
		return LevelMedium
	case score < 75:
		return LevelHigh
	default:
		return LevelCritical
	}
}

// Rank orders levels from safe (0) to critical (4); unknown levels rank -1
func (l Level) Rank() int {
	switch l {
	case LevelSafe:
		return 0
	case LevelLow:
		return 1
	case LevelMedium:
		return 2
	case LevelHigh:
		return 3
	case LevelCritical:
		return 4
	}
	return -1
}

// IsHighRisk reports whether the level counts toward high-risk totals
func (l Level) IsHighRisk() bool {
	return l.Rank() >= LevelHigh.Rank()
}

// Severity labels a single indicator independently of its points
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)
