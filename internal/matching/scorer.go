package matching

import (
	"strings"

	"github.com/helixir/author-matching-service/internal/domain"
	"github.com/helixir/author-matching-service/internal/identifier"
	"github.com/helixir/author-matching-service/internal/names"
)

// Scorer computes the independent signals for one (author, researcher) pair.
// It is stateless apart from its configuration and safe for concurrent use.
type Scorer struct {
	cfg      Config
	keywords []string
}

// NewScorer creates a scorer. Institution keywords are normalized once here.
func NewScorer(cfg Config) *Scorer {
	keywords := make([]string, 0, len(cfg.InstitutionKeywords))
	for _, k := range cfg.InstitutionKeywords {
		if n := names.Normalize(k); n != "" {
			keywords = append(keywords, n)
		}
	}
	return &Scorer{cfg: cfg, keywords: keywords}
}

// Score compares author against researcher. others are the display names of
// the remaining authors on the same publication.
//
// An identifier match short-circuits: when IdentifierExact is set no other
// signal is computed. Missing affiliation or co-author data yields the neutral
// score; scoring never fails.
func (s *Scorer) Score(author domain.ExternalAuthorRecord, others []string, researcher domain.InternalResearcher) domain.Signals {
	if IdentifierMatches(author.UniqueID, researcher) {
		return domain.Signals{IdentifierExact: true}
	}

	return domain.Signals{
		FuzzyName:   names.FuzzyScore(author.DisplayName(), researcher.FullName),
		Initials:    s.initials(author, researcher.FullName),
		Affiliation: s.affiliation(author.Affiliations, researcher.Institution),
		Coauthor:    s.coauthor(others, researcher.PriorCoauthors),
	}
}

// IdentifierMatches reports whether uniqueID names one of the researcher's
// identifiers on file. Both sides are compared in bare ORCID form.
func IdentifierMatches(uniqueID string, researcher domain.InternalResearcher) bool {
	if strings.TrimSpace(uniqueID) == "" {
		return false
	}
	for _, id := range researcher.UniqueIDs {
		if identifier.SameORCID(uniqueID, id) {
			return true
		}
	}
	return false
}

// initials scores the printed "Surname, I." form. When the registry did not
// carry a printed name the family and given names are tried in that shape.
func (s *Scorer) initials(author domain.ExternalAuthorRecord, fullName string) float64 {
	if in, ok := names.ParseInitials(author.RawName); ok {
		return in.Score(fullName)
	}
	if author.FamilyName != "" && author.GivenName != "" {
		return names.InitialsScore(author.FamilyName+", "+author.GivenName, fullName)
	}
	return 0
}

// affiliation is AffiliationMatchScore when a configured institution keyword
// appears in one of the author's affiliations and in the researcher's
// institution, NeutralScore otherwise.
func (s *Scorer) affiliation(affiliations []string, institution string) float64 {
	if len(s.keywords) == 0 || len(affiliations) == 0 {
		return s.cfg.NeutralScore
	}
	home := names.Normalize(institution)
	if home == "" {
		return s.cfg.NeutralScore
	}

	for _, kw := range s.keywords {
		if !containsWords(home, kw) {
			continue
		}
		for _, aff := range affiliations {
			if containsWords(names.Normalize(aff), kw) {
				return s.cfg.AffiliationMatchScore
			}
		}
	}
	return s.cfg.NeutralScore
}

// coauthor scores the overlap between the other authors on the paper and the
// researcher's co-author history: two or more shared names is strong, one is
// weak, none is neutral.
func (s *Scorer) coauthor(others, prior []string) float64 {
	if len(others) == 0 || len(prior) == 0 {
		return s.cfg.NeutralScore
	}

	history := make(map[string]struct{}, len(prior))
	for _, p := range prior {
		if n := names.Normalize(p); n != "" {
			history[n] = struct{}{}
		}
	}

	shared := make(map[string]struct{})
	for _, o := range others {
		n := names.Normalize(o)
		if _, ok := history[n]; ok && n != "" {
			shared[n] = struct{}{}
		}
	}

	switch {
	case len(shared) >= 2:
		return s.cfg.CoauthorStrongScore
	case len(shared) == 1:
		return s.cfg.CoauthorWeakScore
	default:
		return s.cfg.NeutralScore
	}
}

// containsWords reports whether needle occurs in haystack on word boundaries.
// Both arguments must already be normalized.
func containsWords(haystack, needle string) bool {
	return strings.Contains(" "+haystack+" ", " "+needle+" ")
}
