// Package textutil provides small text helpers shared across the pipeline:
// slug generation for project identifiers, bounded truncation for persisted
// diagnostics, and roman-numeral suffixes for generated variant titles.
package textutil

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	slugStripPattern    = regexp.MustCompile(`[^a-z0-9\s-]+`)
	slugCollapsePattern = regexp.MustCompile(`[\s-]+`)
)

// Slug converts text into a lowercase hyphenated identifier segment.
// Returns fallback when the text produces no usable characters.
func Slug(text, fallback string) string {
	lowered := strings.ToLower(strings.TrimSpace(text))
	stripped := slugStripPattern.ReplaceAllString(lowered, "")
	collapsed := slugCollapsePattern.ReplaceAllString(stripped, "-")
	collapsed = strings.Trim(collapsed, "-")
	if collapsed == "" {
		return fallback
	}
	return collapsed
}

// Truncate bounds s to max runes, appending a marker when content was dropped.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "... (truncated)"
}

var romanNumerals = []string{"I", "II", "III", "IV", "V", "VI", "VII", "VIII", "IX", "X"}

// RomanSuffix returns the roman numeral for a zero-based variant index.
// Indexes past X fall back to the decimal form.
func RomanSuffix(index int) string {
	if index >= 0 && index < len(romanNumerals) {
		return romanNumerals[index]
	}
	return strconv.Itoa(index + 1)
}
