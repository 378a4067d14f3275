package evalset

import (
	"fmt"
	"strings"
)

// MinScore and MaxScore bound both expected and predicted lead scores.
const (
	MinScore = 0
	MaxScore = 10
)

// Record is one labeled lead. Records are loaded once per run and never mutated.
type Record struct {
	Line          int    `json:"line"`
	Name          string `json:"name"`
	Title         string `json:"title"`
	Company       string `json:"company"`
	LinkedIn      string `json:"linkedin,omitempty"`
	EmployeeRange string `json:"employee_range"`
	ExpectedScore int    `json:"expected_score"`
}

// SplitName splits a full name at the first run of whitespace. A single-word
// name has an empty last name.
func SplitName(name string) (first, last string) {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return "", ""
	}
	first = fields[0]
	trimmed := strings.TrimSpace(name)
	rest := strings.TrimSpace(trimmed[len(first):])
	return first, rest
}

// LeadContext renders the block appended after a scoring prompt for one lead.
func LeadContext(r Record) string {
	first, last := SplitName(r.Name)
	var b strings.Builder
	b.WriteString("Lead to score:\n")
	fmt.Fprintf(&b, "- First name: %s\n", first)
	fmt.Fprintf(&b, "- Last name: %s\n", last)
	fmt.Fprintf(&b, "- Title: %s\n", strings.TrimSpace(r.Title))
	fmt.Fprintf(&b, "- Company: %s\n", strings.TrimSpace(r.Company))
	fmt.Fprintf(&b, "- Employee range: %s", strings.TrimSpace(r.EmployeeRange))
	return b.String()
}

// ScoringPrompt concatenates a candidate prompt and the lead context block.
func ScoringPrompt(prompt string, r Record) string {
	return strings.TrimRight(prompt, " \t\r\n") + "\n\n" + LeadContext(r)
}
