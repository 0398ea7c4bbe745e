// Package names canonicalizes personal names and scores how alike two names are.
//
// Normalize is the single canonical form used everywhere a name is compared:
// diacritics are folded to their base letter, the result is lower-cased, every
// character outside [a-z] and whitespace is dropped, and whitespace runs are
// collapsed. The similarity functions in this package all operate on that form.
package names

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize returns the canonical comparison form of a personal name.
// It never fails and is idempotent: Normalize(Normalize(x)) == Normalize(x).
func Normalize(name string) string {
	if name == "" {
		return ""
	}

	// transform.Chain keeps internal buffers, so build one per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}
	folded = strings.ToLower(folded)

	var sb strings.Builder
	sb.Grow(len(folded))
	pendingSpace := false

	for _, r := range folded {
		switch {
		case r >= 'a' && r <= 'z':
			if pendingSpace && sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			pendingSpace = false
			sb.WriteRune(r)
		case unicode.IsSpace(r):
			pendingSpace = true
		}
		// Everything else (punctuation, digits, letters with no ASCII base) is dropped.
	}

	return sb.String()
}

// Tokens returns the whitespace-separated tokens of the normalized name.
func Tokens(name string) []string {
	return strings.Fields(Normalize(name))
}

// ContainsName reports whether the normalized name appears as a whole-word run
// inside the normalized text.
func ContainsName(text, name string) bool {
	n := Normalize(name)
	if n == "" {
		return false
	}
	return strings.Contains(" "+Normalize(text)+" ", " "+n+" ")
}
