package names

import (
	"sort"
	"strings"
)

// Variations generates the printed forms a full name commonly takes in author
// lists, treating the last token as the surname:
//
//	"Rodolfo Mancilla" -> "Mancilla", "Mancilla R", "Mancilla R.", "Mancilla, Rodolfo",
//	                      "R Mancilla", "R. Mancilla", "Rodolfo Mancilla"
//
// Names with fewer than two tokens have no variations. The result is sorted and
// free of duplicates.
func Variations(fullName string) []string {
	parts := strings.Fields(fullName)
	if len(parts) < 2 {
		return nil
	}

	given := parts[:len(parts)-1]
	last := parts[len(parts)-1]
	initial := string([]rune(given[0])[0])

	set := map[string]struct{}{
		initial + ". " + last:                  {},
		initial + " " + last:                   {},
		last + " " + initial + ".":             {},
		last + " " + initial:                   {},
		last + ", " + strings.Join(given, " "): {},
		last:                                   {},
		strings.Join(parts, " "):               {},
	}

	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// MentionedIn reports whether the full name or one of its variations appears in
// a free-text author string. Forms shorter than four normalized characters are
// ignored since bare initials match almost anything.
func MentionedIn(text, fullName string, variations []string) (string, bool) {
	candidates := append([]string{fullName}, variations...)
	for _, c := range candidates {
		if len(Normalize(c)) < 4 {
			continue
		}
		if ContainsName(text, c) {
			return c, true
		}
	}
	return "", false
}
