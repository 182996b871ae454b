// Package textnorm folds inbound message text into a canonical form for keyword matching.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold lowercases s, strips diacritics ("Sí" -> "si", "mañana" -> "manana")
// and collapses runs of whitespace into single spaces.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}

// StripPunctuation removes leading/trailing punctuation such as "¡", "!", "¿", "?" and ".".
func StripPunctuation(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSymbol(r)
	})
}

// FoldWords is Fold with every punctuation or symbol rune replaced by a space,
// leaving only words for phrase matching ("¡Hola!, ¿precios?" -> "hola precios").
func FoldWords(s string) string {
	return Fold(strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			return ' '
		}
		return r
	}, s))
}

// ContainsPhrase reports whether the word sequence phrase appears in text on word boundaries.
// Both arguments are expected to be folded.
func ContainsPhrase(text, phrase string) bool {
	if phrase == "" {
		return false
	}
	return strings.Contains(" "+text+" ", " "+phrase+" ")
}
