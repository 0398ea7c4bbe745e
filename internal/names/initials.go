package names

import (
	"regexp"
	"strings"
	"unicode"
)

// initialsPattern matches "Surname, I." and "Surname, I.I." author strings.
// The surname may span several words ("García López, J.").
var initialsPattern = regexp.MustCompile(`^\s*(\p{L}[\p{L}'’ \-]*?)\s*,\s*((?:\p{Lu}\.?[\s\-]*){1,2})$`)

// Initials is a parsed "Surname, I.I." author string.
type Initials struct {
	// Surname is the normalized surname, possibly several tokens.
	Surname string
	// Letters holds one or two lower-case initials in printed order.
	Letters []byte
}

// ParseInitials parses an author string of the form "Surname, I." or
// "Surname, I.I.". It reports false for any other shape.
func ParseInitials(raw string) (Initials, bool) {
	m := initialsPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return Initials{}, false
	}

	surname := Normalize(m[1])
	if surname == "" {
		return Initials{}, false
	}

	var letters []byte
	for _, r := range m[2] {
		if !unicode.IsUpper(r) {
			continue
		}
		n := Normalize(string(r))
		if n == "" {
			continue
		}
		letters = append(letters, n[0])
	}
	if len(letters) == 0 {
		return Initials{}, false
	}

	return Initials{Surname: surname, Letters: letters}, true
}

// Score compares the parsed initials against a full name. The surname tokens must
// all appear in the name, otherwise the score is 0. The remaining tokens, in
// order, are the given names: 0.9 when every initial matches them left to right,
// 0.7 when only the first initial does, else 0.
func (in Initials) Score(fullName string) float64 {
	tokens := Tokens(fullName)
	surnameTokens := strings.Fields(in.Surname)
	if len(tokens) == 0 || len(surnameTokens) == 0 || len(in.Letters) == 0 {
		return 0
	}

	remaining := append([]string(nil), tokens...)
	for _, s := range surnameTokens {
		idx := indexOf(remaining, s)
		if idx < 0 {
			return 0
		}
		remaining = append(remaining[:idx], remaining[idx+1:]...)
	}
	if len(remaining) == 0 {
		return 0
	}

	if remaining[0][0] != in.Letters[0] {
		return 0
	}
	for i, l := range in.Letters {
		if i >= len(remaining) || remaining[i][0] != l {
			return 0.7
		}
	}
	return 0.9
}

// InitialsScore parses raw and scores it against fullName, returning 0 when raw
// is not in initials form.
func InitialsScore(raw, fullName string) float64 {
	in, ok := ParseInitials(raw)
	if !ok {
		return 0
	}
	return in.Score(fullName)
}

func indexOf(tokens []string, s string) int {
	for i, t := range tokens {
		if t == s {
			return i
		}
	}
	return -1
}
