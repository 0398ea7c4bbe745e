package matching

import (
	"github.com/rs/zerolog"

	"github.com/helixir/author-matching-service/internal/domain"
)

// Aggregator turns per-researcher signals into at most one decision per author.
type Aggregator struct {
	cfg    Config
	scorer *Scorer
	logger zerolog.Logger
}

// NewAggregator creates an aggregator that scores with scorer.
func NewAggregator(cfg Config, scorer *Scorer, logger zerolog.Logger) *Aggregator {
	return &Aggregator{
		cfg:    cfg,
		scorer: scorer,
		logger: logger.With().Str("component", "aggregator").Logger(),
	}
}

type scored struct {
	researcher domain.InternalResearcher
	signals    domain.Signals
}

// Decide picks the candidate for author among roster. It returns false when
// the author stays unresolved because no researcher reaches the fuzzy
// threshold.
//
// Rules, first match wins:
//  1. an identifier on file matches: confidence 1.0, identifier_exact
//  2. the author carries an identifier nobody has: new identity, identifier_new
//  3. the best fuzzy candidate below FuzzyThreshold: unresolved
//  4. otherwise the weighted fuzzy, affiliation and co-author score, fuzzy_validated
func (a *Aggregator) Decide(author domain.ExternalAuthorRecord, others []string, roster domain.Roster) (*domain.MatchDecision, bool) {
	if d, ok := a.decideByIdentifier(author, roster); ok {
		return d, true
	}

	best, ok := a.bestFuzzy(author, others, roster)
	if !ok || best.signals.FuzzyName+tierTolerance < a.cfg.FuzzyThreshold {
		return nil, false
	}

	confidence := a.cfg.weighted(best.signals)
	return &domain.MatchDecision{
		Author: author,
		Candidate: domain.CandidateScore{
			ResearcherID:    domain.Int64Ptr(best.researcher.ID),
			UniqueID:        author.UniqueID,
			Signals:         best.signals,
			FinalConfidence: confidence,
			Method:          domain.MatchMethodFuzzyValidated,
		},
		Tier: a.cfg.Tier(confidence),
	}, true
}

func (a *Aggregator) decideByIdentifier(author domain.ExternalAuthorRecord, roster domain.Roster) (*domain.MatchDecision, bool) {
	if author.UniqueID == "" {
		return nil, false
	}

	var matched []int64
	for _, r := range roster {
		if IdentifierMatches(author.UniqueID, r) {
			matched = append(matched, r.ID)
		}
	}

	if len(matched) == 0 {
		return &domain.MatchDecision{
			Author: author,
			Candidate: domain.CandidateScore{
				UniqueID:        author.UniqueID,
				FinalConfidence: a.cfg.IdentifierNewConfidence,
				Method:          domain.MatchMethodIdentifierNew,
			},
			Tier: domain.ActionTierAutoAssignWithLog,
		}, true
	}

	chosen := matched[0]
	for _, id := range matched[1:] {
		if id < chosen {
			chosen = id
		}
	}
	if len(matched) > 1 {
		a.logger.Warn().
			Str("orcid", author.UniqueID).
			Ints64("researcher_ids", matched).
			Int64("chosen_researcher_id", chosen).
			Msg("identifier on file for several researchers")
	}

	return &domain.MatchDecision{
		Author: author,
		Candidate: domain.CandidateScore{
			ResearcherID:    domain.Int64Ptr(chosen),
			UniqueID:        author.UniqueID,
			Signals:         domain.Signals{IdentifierExact: true},
			FinalConfidence: 1.0,
			Method:          domain.MatchMethodIdentifierExact,
		},
		Tier: domain.ActionTierAutoAssign,
	}, true
}

// bestFuzzy scores every researcher and returns the one with the highest fuzzy
// score. Exact ties go to the higher affiliation+co-author corroboration and
// then to the lowest researcher id.
func (a *Aggregator) bestFuzzy(author domain.ExternalAuthorRecord, others []string, roster domain.Roster) (scored, bool) {
	var (
		best  scored
		found bool
		tied  []int64
	)

	for _, r := range roster {
		cand := scored{researcher: r, signals: a.scorer.Score(author, others, r)}
		if !found {
			best, found = cand, true
			continue
		}

		switch {
		case cand.signals.FuzzyName > best.signals.FuzzyName:
			best, tied = cand, nil
		case cand.signals.FuzzyName == best.signals.FuzzyName:
			if len(tied) == 0 {
				tied = append(tied, best.researcher.ID)
			}
			tied = append(tied, r.ID)
			if preferred(cand, best) {
				best = cand
			}
		}
	}

	if len(tied) > 0 && best.signals.FuzzyName+tierTolerance >= a.cfg.FuzzyThreshold {
		a.logger.Info().
			Str("author", author.DisplayName()).
			Int("author_position", author.Position).
			Float64("fuzzy_score", best.signals.FuzzyName).
			Ints64("tied_researcher_ids", tied).
			Int64("chosen_researcher_id", best.researcher.ID).
			Msg("fuzzy score tie broken")
	}
	return best, found
}

// preferred reports whether cand beats cur on an exact fuzzy tie.
func preferred(cand, cur scored) bool {
	candCorr := cand.signals.Affiliation + cand.signals.Coauthor
	curCorr := cur.signals.Affiliation + cur.signals.Coauthor
	if candCorr != curCorr {
		return candCorr > curCorr
	}
	return cand.researcher.ID < cur.researcher.ID
}
