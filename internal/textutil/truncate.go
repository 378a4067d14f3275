package textutil

import "strings"

// Truncate returns at most limit runes of s. It never splits a multi-byte rune.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	count := 0
	for idx := range s {
		if count == limit {
			return s[:idx]
		}
		count++
	}
	return s
}

// Preview collapses whitespace and truncates to limit runes, appending an
// ellipsis when text was cut.
func Preview(s string, limit int) string {
	collapsed := strings.Join(strings.Fields(s), " ")
	cut := Truncate(collapsed, limit)
	if len(cut) < len(collapsed) {
		return cut + "..."
	}
	return cut
}
