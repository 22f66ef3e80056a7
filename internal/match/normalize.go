// Package match locates a lyric fragment inside a timed transcript and
// returns the absolute time span it covers.
package match

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks removes diacritic marks so "café" and "cafe" compare equal.
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeToken canonicalizes one word for comparison: lowercase, diacritics
// stripped, punctuation removed. Returns "" for tokens that are all
// punctuation.
func NormalizeToken(token string) string {
	folded, _, err := transform.String(stripMarks, strings.ToLower(token))
	if err != nil {
		folded = strings.ToLower(token)
	}
	var b strings.Builder
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'' {
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "'")
}

// Tokenize splits free text into normalized comparison tokens, dropping any
// that normalize to nothing.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return unicode.IsSpace(r) || r == '-' || r == '/'
	})
	tokens := make([]string, 0, len(fields))
	for _, field := range fields {
		if token := NormalizeToken(field); token != "" {
			tokens = append(tokens, token)
		}
	}
	return tokens
}
