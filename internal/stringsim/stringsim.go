// Package stringsim provides the pure string-comparison primitives used by
// payee matching: edit-distance similarity, Jaro/Jaro-Winkler similarity, a
// Soundex-style phonetic key, and a curated abbreviation table.
//
// All functions are stateless and deterministic, and every similarity is
// symmetric: sim(a, b) == sim(b, a).
package stringsim

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
)

// LevenshteinSimilarity returns 1 - editDistance(a, b) / max(len(a), len(b)).
// Two empty strings are identical and score 1.0.
func LevenshteinSimilarity(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	if la == 0 && lb == 0 {
		return 1.0
	}
	maxLen := la
	if lb > maxLen {
		maxLen = lb
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(dist)/float64(maxLen)
}

// Jaro returns the Jaro similarity of a and b using a match window of
// floor(max(len)/2) - 1.
func Jaro(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	la, lb := len(ra), len(rb)

	if la == 0 && lb == 0 {
		return 1.0
	}
	if la == 0 || lb == 0 {
		return 0.0
	}

	window := la
	if lb > window {
		window = lb
	}
	window = window/2 - 1
	if window < 0 {
		window = 0
	}

	matchedA := make([]bool, la)
	matchedB := make([]bool, lb)

	matches := 0
	for i := 0; i < la; i++ {
		lo := i - window
		if lo < 0 {
			lo = 0
		}
		hi := i + window + 1
		if hi > lb {
			hi = lb
		}
		for j := lo; j < hi; j++ {
			if matchedB[j] || ra[i] != rb[j] {
				continue
			}
			matchedA[i] = true
			matchedB[j] = true
			matches++
			break
		}
	}

	if matches == 0 {
		return 0.0
	}

	// Count transpositions between matched characters.
	transpositions := 0
	j := 0
	for i := 0; i < la; i++ {
		if !matchedA[i] {
			continue
		}
		for !matchedB[j] {
			j++
		}
		if ra[i] != rb[j] {
			transpositions++
		}
		j++
	}

	m := float64(matches)
	t := float64(transpositions) / 2.0
	return (m/float64(la) + m/float64(lb) + (m-t)/m) / 3.0
}

// JaroWinkler returns the Jaro-Winkler similarity: Jaro plus a common-prefix
// bonus of 0.1 * prefixLen(<=4) * (1 - jaro).
func JaroWinkler(a, b string) float64 {
	j := Jaro(a, b)

	ra, rb := []rune(a), []rune(b)
	prefix := 0
	for prefix < len(ra) && prefix < len(rb) && prefix < 4 && ra[prefix] == rb[prefix] {
		prefix++
	}

	return j + 0.1*float64(prefix)*(1.0-j)
}

var soundexCodes = map[rune]byte{
	'B': '1', 'F': '1', 'P': '1', 'V': '1',
	'C': '2', 'G': '2', 'J': '2', 'K': '2', 'Q': '2', 'S': '2', 'X': '2', 'Z': '2',
	'D': '3', 'T': '3',
	'L': '4',
	'M': '5', 'N': '5',
	'R': '6',
}

// soundex returns the 4-character Soundex code of a single word, or "" when
// the word has no letters.
func soundex(word string) string {
	var letters []rune
	for _, r := range strings.ToUpper(word) {
		if r >= 'A' && r <= 'Z' {
			letters = append(letters, r)
		}
	}
	if len(letters) == 0 {
		return ""
	}

	code := []byte{byte(letters[0])}
	lastCode, hadFirst := soundexCodes[letters[0]]
	if !hadFirst {
		lastCode = 0
	}

	for _, r := range letters[1:] {
		c, ok := soundexCodes[r]
		switch {
		case !ok:
			// H and W do not separate equal codes; vowels do.
			if r != 'H' && r != 'W' {
				lastCode = 0
			}
		case c == lastCode:
			// collapse runs
		default:
			code = append(code, c)
			lastCode = c
			if len(code) == 4 {
				return string(code)
			}
		}
	}

	for len(code) < 4 {
		code = append(code, '0')
	}
	return string(code)
}

// PhoneticKey collapses phonetically equivalent spellings of a name to the
// same key by Soundex-encoding each word. Two names match phonetically iff
// their keys are equal and non-empty.
func PhoneticKey(name string) string {
	var keys []string
	for _, word := range strings.Fields(name) {
		if k := soundex(word); k != "" {
			keys = append(keys, k)
		}
	}
	return strings.Join(keys, " ")
}

// abbreviations maps known organization-name abbreviations to their full
// forms. Keys and values are in normalized (uppercase, single-space) form.
var abbreviations = map[string][]string{
	"FNB":       {"FIRST NATIONAL BANK"},
	"ABSA":      {"AMALGAMATED BANKS OF SOUTH AFRICA"},
	"STD BANK":  {"STANDARD BANK"},
	"SARS":      {"SOUTH AFRICAN REVENUE SERVICE"},
	"UIF":       {"UNEMPLOYMENT INSURANCE FUND"},
	"SAPS":      {"SOUTH AFRICAN POLICE SERVICE"},
	"SAA":       {"SOUTH AFRICAN AIRWAYS"},
	"PNP":       {"PICK N PAY"},
	"WW":        {"WOOLWORTHS"},
	"VW":        {"VOLKSWAGEN"},
	"MRP":       {"MR PRICE"},
	"CHECKERS":  {"SHOPRITE CHECKERS"},
	"TELKOM":    {"TELKOM SA"},
	"CITY PWR":  {"CITY POWER"},
	"JHB WATER": {"JOHANNESBURG WATER"},
}

// IsAbbreviationMatch reports whether one input is a known abbreviation of
// the other. The lookup is independent of edit distance. Inputs are expected
// in normalized form; matching is case-insensitive regardless.
func IsAbbreviationMatch(a, b string) bool {
	na := strings.ToUpper(strings.TrimSpace(a))
	nb := strings.ToUpper(strings.TrimSpace(b))
	if na == "" || nb == "" {
		return false
	}
	return expandsTo(na, nb) || expandsTo(nb, na)
}

func expandsTo(short, full string) bool {
	for _, expansion := range abbreviations[short] {
		if expansion == full {
			return true
		}
	}
	return false
}

// HasLetter reports whether s contains at least one letter. Used to skip
// purely numeric payee tokens.
func HasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
