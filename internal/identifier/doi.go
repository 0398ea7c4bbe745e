// Package identifier extracts and normalizes bibliographic identifiers (DOIs and ORCIDs)
// from the free-form strings stored on publication and researcher records.
package identifier

import (
	"net/url"
	"regexp"
	"strings"
)

// Kind classifies a publication reference string.
type Kind int

const (
	KindUnknown Kind = iota
	KindDOI
	KindORCID
	KindPubMed
)

func (k Kind) String() string {
	switch k {
	case KindDOI:
		return "doi"
	case KindORCID:
		return "orcid"
	case KindPubMed:
		return "pubmed"
	default:
		return "unknown"
	}
}

var (
	// doiURLPattern matches a DOI behind a registrar host: "https://doi.org/10.1038/xyz",
	// "dx.doi.org/10.1000/abc". The suffix stops at quotes and markup so an
	// href attribute does not drag the rest of the anchor along.
	doiURLPattern = regexp.MustCompile(`(?i)doi\.org/(10\.\d{4,}/[^\s"'<]+)`)

	// bareDOIPattern matches a DOI-shaped substring anywhere in the input.
	bareDOIPattern = regexp.MustCompile(`10\.\d{4,}/[-._;()/:<>\[\]A-Za-z0-9]+`)

	pubmedPattern = regexp.MustCompile(`(?i)(pubmed\.ncbi\.nlm\.nih\.gov|ncbi\.nlm\.nih\.gov/pubmed)/\d+`)

	openers = map[byte]byte{')': '(', ']': '[', '}': '{', '>': '<'}
)

// ExtractDOI pulls a DOI out of a URL or free string. The DOI is returned exactly as
// embedded, case preserved, without trailing whitespace or punctuation.
// Publisher-specific schemes such as PubMed ids are not resolved and report false.
func ExtractDOI(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}

	if doi, ok := findDOI(s); ok {
		return doi, true
	}

	// Percent-decoding is a fallback for references whose slash is encoded. A DOI
	// found in the raw string is returned as written.
	if strings.Contains(s, "%") {
		if unescaped, err := url.PathUnescape(s); err == nil && unescaped != s {
			return findDOI(unescaped)
		}
	}

	return "", false
}

func findDOI(s string) (string, bool) {
	if m := doiURLPattern.FindStringSubmatch(s); m != nil {
		doi := m[1]
		if i := strings.IndexAny(doi, "?#"); i >= 0 {
			doi = doi[:i]
		}
		if doi = trimDOI(doi); isDOIShaped(doi) {
			return doi, true
		}
	}

	if m := bareDOIPattern.FindString(s); m != "" {
		if doi := trimDOI(m); isDOIShaped(doi) {
			return doi, true
		}
	}

	return "", false
}

// Classify reports what kind of reference s looks like. It is used to explain
// why a reference did not yield a DOI.
func Classify(s string) Kind {
	switch {
	case s == "":
		return KindUnknown
	case doiURLPattern.MatchString(s) || bareDOIPattern.MatchString(s):
		return KindDOI
	case orcidURLPattern.MatchString(s):
		return KindORCID
	case pubmedPattern.MatchString(s):
		return KindPubMed
	default:
		return KindUnknown
	}
}

// trimDOI strips trailing punctuation picked up from surrounding prose. Closing
// brackets are only stripped while they are unbalanced, so DOIs such as
// "10.1016/S0140-6736(20)30183-5" or "...(199607)31" stay intact.
func trimDOI(doi string) string {
	for doi != "" {
		last := doi[len(doi)-1]
		switch last {
		case '.', ',', ';', ':', '\'', '"', ' ', '\t', '\n', '\r':
			doi = doi[:len(doi)-1]
			continue
		case ')', ']', '}', '>':
			if strings.Count(doi, string(last)) > strings.Count(doi, string(openers[last])) {
				doi = doi[:len(doi)-1]
				continue
			}
		}
		break
	}
	return doi
}

func isDOIShaped(doi string) bool {
	i := strings.IndexByte(doi, '/')
	return i > 0 && i < len(doi)-1
}
