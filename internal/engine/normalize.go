package engine

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// CanonicalKey reduces a candidate keyword to its dedup identity:
// NFKC-normalized, lower-cased, punctuation stripped, whitespace collapsed
// and trimmed. Two keywords name the same topic iff their keys are equal.
// The function is pure and idempotent.
func CanonicalKey(keyword string) string {
	folded := strings.ToLower(norm.NFKC.String(keyword))

	var b strings.Builder
	b.Grow(len(folded))

	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// ValidKey reports whether a canonical key can identify a topic: non-empty
// and not purely numeric.
func ValidKey(key string) bool {
	if key == "" {
		return false
	}

	for _, r := range key {
		if !unicode.IsDigit(r) {
			return true
		}
	}

	return false
}
