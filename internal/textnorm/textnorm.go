// Package textnorm normalises place names for indexing and lookup.
// It strips diacritics, lower-cases, removes anything outside a-z and splits
// names on whitespace and hyphens.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Letters that do not decompose under NFD.
var ligatures = strings.NewReplacer(
	"Æ", "AE", "æ", "ae",
	"Œ", "OE", "œ", "oe",
	"ß", "ss",
	"Ø", "O", "ø", "o",
	"Đ", "D", "đ", "d",
	"Ł", "L", "ł", "l",
)

// Token is a normalised term and its position in the original name.
type Token struct {
	Term     string
	Position int
}

// RemoveDiacritics strips combining marks and expands common ligatures.
// Case is preserved.
func RemoveDiacritics(s string) string {
	s = ligatures.Replace(s)
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// NormalizeString returns s without diacritics, lower-cased, with every
// character outside a-z removed.
func NormalizeString(s string) string {
	s = strings.ToLower(RemoveDiacritics(s))
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'a' && c <= 'z' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Tokenize splits text on whitespace and hyphens and normalises every part.
// Parts that normalise to nothing are dropped.
func Tokenize(text string) []Token {
	words := strings.FieldsFunc(text, func(r rune) bool {
		return unicode.IsSpace(r) || r == '-'
	})
	tokens := make([]Token, 0, len(words))
	pos := 0
	for _, word := range words {
		term := NormalizeString(word)
		if term == "" {
			continue
		}
		tokens = append(tokens, Token{Term: term, Position: pos})
		pos++
	}
	return tokens
}

// Terms returns only the terms of Tokenize(text).
func Terms(text string) []string {
	tokens := Tokenize(text)
	terms := make([]string, len(tokens))
	for i, t := range tokens {
		terms[i] = t.Term
	}
	return terms
}
