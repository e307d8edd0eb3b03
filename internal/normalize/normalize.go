// Package normalize canonicalizes every transcription and translation
// before it is hashed or stored. No raw tier label ever reaches storage.
package normalize

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Utterance trims surrounding whitespace, collapses internal runs of
// whitespace to single spaces, and applies Unicode NFC.
func Utterance(s string) string {
	return norm.NFC.String(strings.Join(strings.Fields(s), " "))
}

// IsBlank reports whether a tier label is empty or whitespace-only.
// Blank intervals mark silence between phrases, not an error.
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
