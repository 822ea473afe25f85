package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/olegrjumin/riskscan/internal/scan"
	"github.com/olegrjumin/riskscan/internal/scoring"
)

var levelColors = map[scoring.Level]*color.Color{
	scoring.LevelSafe:     color.New(color.FgGreen),
	scoring.LevelLow:      color.New(color.FgCyan),
	scoring.LevelMedium:   color.New(color.FgYellow),
	scoring.LevelHigh:     color.New(color.FgRed),
	scoring.LevelCritical: color.New(color.FgHiRed, color.Bold),
}

func levelLabel(level scoring.Level) string {
	c, ok := levelColors[level]
	if !ok {
		return string(level)
	}
	return c.Sprint(strings.ToUpper(string(level)))
}

func printResult(w io.Writer, r *scan.ScanResult) {
	bold := color.New(color.Bold)

	fmt.Fprintf(w, "%s %s\n", bold.Sprint("URL:"), r.Target)
	if r.Status == scan.StatusFailed {
		fmt.Fprintf(w, "  %s %s\n", color.RedString("failed:"), r.Error)
		fmt.Fprintf(w, "  score %d  %s\n\n", r.Assessment.Score, levelLabel(r.Assessment.Level))
		return
	}

	if r.FinalURL != r.Target {
		fmt.Fprintf(w, "  final:  %s (%d hops)\n", r.FinalURL, len(r.RedirectChain)-1)
	}
	fmt.Fprintf(w, "  title:  %s\n", r.PageTitle)
	fmt.Fprintf(w, "  score:  %d  %s\n", r.Assessment.Score, levelLabel(r.Assessment.Level))

	for _, ind := range r.Assessment.Indicators {
		fmt.Fprintf(w, "    - [%s] %s\n", ind.Severity, ind.Description)
	}
	if r.Certificate != nil {
		fmt.Fprintf(w, "  cert:   %s, %d CT entries, first seen %s\n",
			r.Certificate.Issuer, r.Certificate.Entries, r.Certificate.FirstSeen.Format("2006-01-02"))
	}
	if len(r.Screenshot) > 0 {
		fmt.Fprintf(w, "  screenshot: %d bytes (id %s)\n", len(r.Screenshot), r.ID)
	}
	fmt.Fprintln(w)
}

func printBatch(w io.Writer, b *scan.BatchResult) {
	for _, r := range b.Results {
		printResult(w, r)
	}

	s := b.Summary
	fmt.Fprintf(w, "%s %d scanned, %s, %s, %s\n",
		color.New(color.Bold).Sprint("Summary:"),
		s.Total,
		color.GreenString("%d completed", s.Completed),
		color.YellowString("%d failed", s.Failed),
		color.RedString("%d high risk", s.HighRiskCount),
	)
}
