// Package enrichment links ORCID iDs to roster researchers and keeps their
// stored name variations current.
package enrichment

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/helixir/author-matching-service/internal/domain"
	"github.com/helixir/author-matching-service/internal/identifier"
	"github.com/helixir/author-matching-service/internal/names"
	"github.com/helixir/author-matching-service/internal/observability"
	"github.com/helixir/author-matching-service/internal/papersources"
)

// DefaultThreshold is the SmartMatch score a researcher's name must exceed to
// be linked to an ORCID profile.
const DefaultThreshold = 0.70

// LinkStatus is the outcome of an ORCID link attempt.
type LinkStatus string

const (
	LinkStatusAlreadyLinked LinkStatus = "already_linked"
	LinkStatusNotFound      LinkStatus = "not_found"
	LinkStatusLinked        LinkStatus = "linked"
	LinkStatusNoMatch       LinkStatus = "no_match"
)

// LinkResult describes the outcome of LinkORCID.
type LinkResult struct {
	Status         LinkStatus `json:"status"`
	ORCID          string     `json:"orcid"`
	ResearcherID   *int64     `json:"researcher_id,omitempty"`
	ResearcherName string     `json:"researcher_name,omitempty"`
	Score          float64    `json:"score,omitempty"`
	// Profile is the registry profile; on no_match it carries what is needed
	// to create the researcher by hand.
	Profile *domain.AuthorProfile `json:"profile,omitempty"`
}

// ResearcherStore is the subset of the researcher repository enrichment needs.
type ResearcherStore interface {
	ListActive(ctx context.Context) ([]domain.InternalResearcher, error)
	Get(ctx context.Context, id int64) (*domain.InternalResearcher, error)
	FindByORCID(ctx context.Context, orcid string) (*domain.InternalResearcher, error)
	ListWithoutORCID(ctx context.Context) ([]domain.InternalResearcher, error)
	SetORCID(ctx context.Context, id int64, orcid string) error
	UpdateNameVariations(ctx context.Context, id int64, variations []string) error
}

// Service performs ORCID linking and name variation maintenance.
type Service struct {
	researchers ResearcherStore
	authors     papersources.AuthorSource
	threshold   float64
	metrics     *observability.Metrics
	logger      zerolog.Logger
}

// NewService creates a Service. A threshold outside (0, 1) falls back to DefaultThreshold.
func NewService(researchers ResearcherStore, authors papersources.AuthorSource, threshold float64, metrics *observability.Metrics, logger zerolog.Logger) *Service {
	if threshold <= 0 || threshold >= 1 {
		threshold = DefaultThreshold
	}
	return &Service{
		researchers: researchers,
		authors:     authors,
		threshold:   threshold,
		metrics:     metrics,
		logger:      logger.With().Str("component", "orcid_enrichment").Logger(),
	}
}

// LinkORCID attaches orcid to the active researcher whose name best matches
// the ORCID's registry profile.
func (s *Service) LinkORCID(ctx context.Context, rawORCID string) (*LinkResult, error) {
	orcid, err := identifier.ValidateORCID(rawORCID)
	if err != nil {
		return nil, domain.NewValidationError("orcid", err.Error())
	}

	result, err := s.link(ctx, orcid)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordEnrichment(string(result.Status))
	s.logger.Info().
		Str("orcid", orcid).
		Str("status", string(result.Status)).
		Float64("score", result.Score).
		Msg("ORCID link attempt finished")
	return result, nil
}

func (s *Service) link(ctx context.Context, orcid string) (*LinkResult, error) {
	existing, err := s.researchers.FindByORCID(ctx, orcid)
	switch {
	case err == nil:
		return &LinkResult{
			Status:         LinkStatusAlreadyLinked,
			ORCID:          orcid,
			ResearcherID:   domain.Int64Ptr(existing.ID),
			ResearcherName: existing.FullName,
		}, nil
	case !errors.Is(err, domain.ErrNotFound):
		return nil, fmt.Errorf("look up researcher by ORCID: %w", err)
	}

	profile, err := s.authors.GetAuthorByORCID(ctx, orcid)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return &LinkResult{Status: LinkStatusNotFound, ORCID: orcid}, nil
		}
		return nil, fmt.Errorf("fetch author profile: %w", err)
	}

	candidates, err := s.researchers.ListWithoutORCID(ctx)
	if err != nil {
		return nil, fmt.Errorf("list researchers without ORCID: %w", err)
	}

	best, score := bestMatch(profile.DisplayName, candidates)
	if best == nil || score <= s.threshold {
		return &LinkResult{Status: LinkStatusNoMatch, ORCID: orcid, Score: score, Profile: profile}, nil
	}

	if err := s.researchers.SetORCID(ctx, best.ID, orcid); err != nil {
		return nil, fmt.Errorf("set ORCID on researcher %d: %w", best.ID, err)
	}

	return &LinkResult{
		Status:         LinkStatusLinked,
		ORCID:          orcid,
		ResearcherID:   domain.Int64Ptr(best.ID),
		ResearcherName: best.FullName,
		Score:          score,
		Profile:        profile,
	}, nil
}

// bestMatch returns the researcher whose name or stored variation scores
// highest against displayName. Ties keep the lowest id.
func bestMatch(displayName string, candidates []domain.InternalResearcher) (*domain.InternalResearcher, float64) {
	var (
		best      *domain.InternalResearcher
		bestScore float64
	)
	for i := range candidates {
		c := &candidates[i]
		score := names.SmartMatch(displayName, c.FullName)
		for _, v := range c.NameVariations {
			if s := names.SmartMatch(displayName, v); s > score {
				score = s
			}
		}
		if score > bestScore || (score == bestScore && best != nil && c.ID < best.ID) {
			best, bestScore = c, score
		}
	}
	return best, bestScore
}

// RegenerateVariations recomputes and stores the name variations of one researcher.
func (s *Service) RegenerateVariations(ctx context.Context, researcherID int64) ([]string, error) {
	r, err := s.researchers.Get(ctx, researcherID)
	if err != nil {
		return nil, err
	}

	variations := names.Variations(r.FullName)
	if err := s.researchers.UpdateNameVariations(ctx, r.ID, variations); err != nil {
		return nil, err
	}
	return variations, nil
}

// RegenerateAllVariations recomputes variations for every active researcher
// and returns how many were updated. It stops at the first failure.
func (s *Service) RegenerateAllVariations(ctx context.Context) (int, error) {
	roster, err := s.researchers.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("list researchers: %w", err)
	}

	updated := 0
	for _, r := range roster {
		if err := ctx.Err(); err != nil {
			return updated, err
		}
		if err := s.researchers.UpdateNameVariations(ctx, r.ID, names.Variations(r.FullName)); err != nil {
			return updated, fmt.Errorf("update researcher %d: %w", r.ID, err)
		}
		updated++
	}

	s.logger.Info().Int("updated", updated).Msg("name variations regenerated")
	return updated, nil
}
