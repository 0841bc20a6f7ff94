// Package textsan sanitizes free-text fields before they reach storage.
package textsan

import "strings"

// SanitizeNotes strips control characters (keeping tab/newline/CR), trims
// surrounding whitespace, and caps the result at maxLen runes.
func SanitizeNotes(s string, maxLen int) string {
	var b strings.Builder
	for _, r := range s {
		if r == '\n' || r == '\r' || r == '\t' || (r >= 32 && r != 127) {
			b.WriteRune(r)
		}
	}
	out := strings.TrimSpace(b.String())
	if maxLen > 0 {
		runes := []rune(out)
		if len(runes) > maxLen {
			out = string(runes[:maxLen])
		}
	}
	return out
}
