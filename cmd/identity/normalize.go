package identity

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// NormalizeEmail performs case-insensitive canonicalization: trim, NFC, lower-case.
// A Caser is stateful, so one is built per call.
func NormalizeEmail(s string) string {
	return cases.Lower(language.Und).String(norm.NFC.String(strings.TrimSpace(s)))
}

// normalizeSearch canonicalizes free-text search terms and display names the same way.
func normalizeSearch(s string) string {
	return NormalizeEmail(s)
}
