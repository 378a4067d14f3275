package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"leadscore/internal/scoring"
)

var labelCaser = cases.Title(language.English)

func formatScore(value float64) string {
	return fmt.Sprintf("%.3f", value)
}

func formatPercent(value float64) string {
	return fmt.Sprintf("%.1f%%", value*100)
}

func formatPredicted(value float64) string {
	if value == float64(int(value)) {
		return fmt.Sprintf("%d", int(value))
	}
	return fmt.Sprintf("%.2f", value)
}

// formatWhen renders a timestamp as a relative age, or "-" when unset.
func formatWhen(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}

// fallbackLabel turns a fallback reason into a table label.
func fallbackLabel(fallback scoring.Fallback) string {
	if fallback == scoring.FallbackNone {
		return ""
	}
	return labelCaser.String(strings.ReplaceAll(string(fallback), "_", " "))
}

func formatFallbacks(counts scoring.FallbackCounts) string {
	if counts.Total() == 0 {
		return "-"
	}
	parts := make([]string, 0, 2)
	if counts.Unparseable > 0 {
		parts = append(parts, fmt.Sprintf("%d %s", counts.Unparseable, strings.ToLower(fallbackLabel(scoring.FallbackUnparseable))))
	}
	if counts.CallFailed > 0 {
		parts = append(parts, fmt.Sprintf("%d %s", counts.CallFailed, strings.ToLower(fallbackLabel(scoring.FallbackCallFailed))))
	}
	return strings.Join(parts, ", ")
}
