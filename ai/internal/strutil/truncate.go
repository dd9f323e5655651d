// Package strutil holds small string helpers for user-facing text.
package strutil

import "strings"

// ShortIDLength is the number of id characters shown to users.
const ShortIDLength = 8

// Truncate cuts s to at most maxLen runes and appends "..." when it had to cut.
// maxLen <= 0 yields "".
func Truncate(s string, maxLen int) string {
	if s == "" || maxLen <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}

// ShortID returns the display prefix of an id, ignoring dashes, so users can
// refer to an event by the first few characters.
func ShortID(id string) string {
	compact := strings.ReplaceAll(id, "-", "")
	if len(compact) <= ShortIDLength {
		return compact
	}
	return compact[:ShortIDLength]
}

// MatchesShortID reports whether prefix (at least 4 characters) identifies id.
func MatchesShortID(id, prefix string) bool {
	prefix = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(prefix), "-", ""))
	if len(prefix) < 4 {
		return false
	}
	return strings.HasPrefix(strings.ToLower(strings.ReplaceAll(id, "-", "")), prefix)
}
