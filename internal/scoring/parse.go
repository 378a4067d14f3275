package scoring

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"leadscore/internal/evalset"
)

// DefaultScore is used when a response yields no score.
const DefaultScore = 5.0

// Scanned scores keep their sign before clamping.
var decimalPattern = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// ParseScore extracts a score from model output. The boolean reports whether a
// score was found; when false the returned score is DefaultScore.
func ParseScore(text string) (float64, bool) {
	trimmed := strings.TrimSpace(text)

	var payload struct {
		Score *float64 `json:"score"`
	}
	if err := json.Unmarshal([]byte(trimmed), &payload); err == nil && payload.Score != nil {
		return Clamp(*payload.Score), true
	}

	if match := decimalPattern.FindString(trimmed); match != "" {
		if value, err := strconv.ParseFloat(match, 64); err == nil {
			return Clamp(value), true
		}
	}
	return DefaultScore, false
}

// Clamp bounds a score to the 0..10 scale.
func Clamp(score float64) float64 {
	if math.IsNaN(score) {
		return DefaultScore
	}
	return math.Max(evalset.MinScore, math.Min(evalset.MaxScore, score))
}
