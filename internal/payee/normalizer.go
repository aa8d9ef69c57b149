// Package payee implements payee-name normalization, alias resolution
// against stored payee patterns, and corpus-wide variation detection.
package payee

import (
	"regexp"
	"strings"

	"ledgermatch/internal/stringsim"
)

var (
	separators = regexp.MustCompile(`[/\-_.,]`)
	spaces     = regexp.MustCompile(`\s+`)
)

// Normalize canonicalizes a raw payee string: uppercase, separator
// characters replaced by a single space, repeated whitespace collapsed,
// trimmed. Idempotent: Normalize(Normalize(x)) == Normalize(x).
func Normalize(raw string) string {
	s := strings.ToUpper(raw)
	s = separators.ReplaceAllString(s, " ")
	s = spaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// PhoneticKey returns the phonetic key of the normalized payee name.
func PhoneticKey(raw string) string {
	return stringsim.PhoneticKey(Normalize(raw))
}

// IsAbbreviationMatch reports whether the two payee names match via the
// known-abbreviation table after normalization.
func IsAbbreviationMatch(a, b string) bool {
	return stringsim.IsAbbreviationMatch(Normalize(a), Normalize(b))
}
