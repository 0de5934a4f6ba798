// Package utils provides shared text, math, and logging helpers.
package utils

// Truncate returns s cut to at most maxRunes runes, with "..." appended when cut.
// If maxRunes is 0 or negative, s is returned unchanged. Truncation is rune-safe
// so multi-byte characters are never split.
func Truncate(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes]) + "..."
}
