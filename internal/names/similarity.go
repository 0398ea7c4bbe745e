package names

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/adrg/strutil/metrics"
	"github.com/agnivade/levenshtein"
)

// indel is a Levenshtein metric where a substitution costs a deletion plus an
// insertion, so its distance is len(a)+len(b)-2*LCS(a,b).
var indel = &metrics.Levenshtein{
	CaseSensitive: true,
	InsertCost:    1,
	DeleteCost:    1,
	ReplaceCost:   2,
}

// Ratio returns the indel similarity of two strings in [0,1]:
// 2*LCS(a,b) / (len(a)+len(b)), measured in runes. Two empty strings are identical.
func Ratio(a, b string) float64 {
	total := utf8.RuneCountInString(a) + utf8.RuneCountInString(b)
	if total == 0 {
		return 1.0
	}
	return float64(total-indel.Distance(a, b)) / float64(total)
}

// TokenSortRatio compares two names after sorting their normalized tokens, so
// "garcia lopez juan" and "juan garcia lopez" are identical.
func TokenSortRatio(a, b string) float64 {
	return Ratio(sortedJoin(Tokens(a)), sortedJoin(Tokens(b)))
}

// TokenSetRatio compares the shared token set against each side's leftovers and
// returns the best of the three pairings. A name whose tokens are a subset of the
// other's scores 1.0.
func TokenSetRatio(a, b string) float64 {
	setA := tokenSet(Tokens(a))
	setB := tokenSet(Tokens(b))

	var inter, onlyA, onlyB []string
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			inter = append(inter, tok)
		} else {
			onlyA = append(onlyA, tok)
		}
	}
	for tok := range setB {
		if _, ok := setA[tok]; !ok {
			onlyB = append(onlyB, tok)
		}
	}

	sect := sortedJoin(inter)
	combinedA := strings.TrimSpace(sect + " " + sortedJoin(onlyA))
	combinedB := strings.TrimSpace(sect + " " + sortedJoin(onlyB))

	best := Ratio(combinedA, combinedB)
	if sect != "" {
		best = max(best, Ratio(sect, combinedA), Ratio(sect, combinedB))
	}
	return best
}

// FuzzyScore is the order-independent name similarity used by the matcher:
// the larger of TokenSortRatio and TokenSetRatio. It is 0 when either name
// normalizes to nothing.
func FuzzyScore(a, b string) float64 {
	if Normalize(a) == "" || Normalize(b) == "" {
		return 0
	}
	return max(TokenSortRatio(a, b), TokenSetRatio(a, b))
}

// EditSimilarity is 1 - levenshtein(a,b)/max(len) over normalized names.
func EditSimilarity(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	longest := max(len([]rune(na)), len([]rune(nb)))
	if longest == 0 {
		return 0
	}
	return 1 - float64(levenshtein.ComputeDistance(na, nb))/float64(longest)
}

// SmartMatch scores whether two full names denote the same person when one of
// them comes from an external profile (e.g. an ORCID owner's display name):
//
//   - identical normalized names: 1.0
//   - same first token and at least one shared later token: 0.95
//   - same first initial and at least one shared later token: 0.85
//   - one normalized name contains the other: 0.90
//   - otherwise EditSimilarity
//
// Names with fewer than two tokens skip straight to EditSimilarity.
func SmartMatch(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1.0
	}

	partsA, partsB := strings.Fields(na), strings.Fields(nb)
	if len(partsA) < 2 || len(partsB) < 2 {
		return EditSimilarity(na, nb)
	}

	laterB := tokenSet(partsB[1:])
	commonSurname := false
	for _, p := range partsA[1:] {
		if _, ok := laterB[p]; ok {
			commonSurname = true
			break
		}
	}

	switch {
	case commonSurname && partsA[0] == partsB[0]:
		return 0.95
	case commonSurname && partsA[0][0] == partsB[0][0]:
		return 0.85
	case strings.Contains(na, nb) || strings.Contains(nb, na):
		return 0.90
	default:
		return EditSimilarity(na, nb)
	}
}

func tokenSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

func sortedJoin(tokens []string) string {
	sorted := append([]string(nil), tokens...)
	sort.Strings(sorted)
	return strings.Join(sorted, " ")
}
