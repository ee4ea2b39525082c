package scrape

import (
	"html"
	"regexp"
	"strings"
)

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	nonDigit      = regexp.MustCompile(`[^0-9]`)
)

// CleanText decodes HTML entities, collapses whitespace runs (including
// non-breaking space) to a single ASCII space and trims the result.
func CleanText(s string) string {
	s = html.UnescapeString(s)
	s = strings.ReplaceAll(s, " ", " ")
	s = whitespaceRun.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// CleanNumber decodes HTML entities and strips every non-digit character.
// Prices and mileages on the source site are whole-unit integers, so minus
// signs and decimal separators are dropped along with currency markers.
func CleanNumber(s string) string {
	s = html.UnescapeString(s)
	return nonDigit.ReplaceAllString(s, "")
}
