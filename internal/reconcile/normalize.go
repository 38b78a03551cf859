package reconcile

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeName derives the reconciliation join key from a medication name:
// accents folded, lower-cased, everything but letters and digits removed.
// "Co-Amoxiclav" and "co amoxiclav" share a key.
func NormalizeName(name string) string {
	folded, _, err := transform.String(accentFolder(), name)
	if err != nil {
		folded = name
	}

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// accentFolder returns a fresh chain per call; transform.Transformer values
// carry state and must not be shared between goroutines.
func accentFolder() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

// normalizeField compares strength, dosage and frequency values ignoring case
// and whitespace, so "10 mg" equals "10mg".
func normalizeField(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), ""))
}
