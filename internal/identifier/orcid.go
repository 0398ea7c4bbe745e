package identifier

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	// orcidURLPattern finds ORCID iDs printed as profile links.
	orcidURLPattern = regexp.MustCompile(`(?i)orcid\.org/(\d{4}-\d{4}-\d{4}-\d{3}[\dX])`)

	// orcidPattern finds bare hyphenated ORCID iDs in text.
	orcidPattern = regexp.MustCompile(`(?i)\b(\d{4}-\d{4}-\d{4}-\d{3}[\dX])\b`)

	orcidShape = regexp.MustCompile(`^\d{4}-\d{4}-\d{4}-\d{3}[\dX]$`)
	orcidFlat  = regexp.MustCompile(`^\d{15}[\dX]$`)
)

var orcidPrefixes = []string{
	"https://orcid.org/",
	"http://orcid.org/",
	"https://www.orcid.org/",
	"http://www.orcid.org/",
	"orcid.org/",
	"orcid:",
}

// NormalizeORCID strips any URL prefix from an ORCID iD and returns the bare
// "dddd-dddd-dddd-dddX" form. Unhyphenated 16 character iDs are reformatted.
// The checksum is not verified here; see ValidateORCID.
func NormalizeORCID(s string) (string, bool) {
	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)
	for _, p := range orcidPrefixes {
		if strings.HasPrefix(lower, p) {
			s = s[len(p):]
			break
		}
	}
	s = strings.ToUpper(strings.Trim(s, "/ "))

	switch {
	case orcidShape.MatchString(s):
		return s, true
	case orcidFlat.MatchString(s):
		return s[0:4] + "-" + s[4:8] + "-" + s[8:12] + "-" + s[12:16], true
	default:
		return "", false
	}
}

// ValidateORCID normalizes s and verifies its ISO 7064 MOD 11-2 check digit.
func ValidateORCID(s string) (string, error) {
	orcid, ok := NormalizeORCID(s)
	if !ok {
		return "", fmt.Errorf("malformed ORCID iD %q", s)
	}
	digits := strings.ReplaceAll(orcid, "-", "")
	if want := orcidCheckDigit(digits[:15]); digits[15] != want {
		return "", fmt.Errorf("ORCID iD %s has check digit %c, expected %c", orcid, digits[15], want)
	}
	return orcid, nil
}

func orcidCheckDigit(base string) byte {
	total := 0
	for i := 0; i < len(base); i++ {
		total = (total + int(base[i]-'0')) * 2
	}
	result := (12 - total%11) % 11
	if result == 10 {
		return 'X'
	}
	return byte('0' + result)
}

// ExtractORCIDs returns the distinct ORCID iDs found in text, in order of first appearance.
func ExtractORCIDs(text string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, m := range orcidPattern.FindAllStringSubmatch(text, -1) {
		id := strings.ToUpper(m[1])
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// SameORCID reports whether two ORCID strings denote the same iD once normalized.
func SameORCID(a, b string) bool {
	na, okA := NormalizeORCID(a)
	nb, okB := NormalizeORCID(b)
	if okA && okB {
		return na == nb
	}
	// Fall back to a case-insensitive comparison for identifiers that are not ORCID-shaped.
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	return a != "" && strings.EqualFold(a, b)
}
