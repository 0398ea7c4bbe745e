package matching

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/author-matching-service/internal/domain"
	"github.com/helixir/author-matching-service/internal/identifier"
	"github.com/helixir/author-matching-service/internal/names"
	"github.com/helixir/author-matching-service/internal/observability"
)

// MetadataResolver resolves a DOI to registry metadata. Implementations
// return a *domain.NotFoundError for unknown DOIs.
type MetadataResolver interface {
	Resolve(ctx context.Context, doi string) (*domain.PublicationMetadata, error)
	Name() string
}

// Mention is a roster researcher whose name appears in the free-text author
// list of a publication that could not be resolved.
type Mention struct {
	ResearcherID int64  `json:"researcher_id"`
	FullName     string `json:"full_name"`
	MatchedForm  string `json:"matched_form"`
}

// Result is the outcome of matching one publication.
type Result struct {
	PublicationID int64                       `json:"publication_id,omitempty"`
	Status        domain.MatchStatus          `json:"status"`
	DOI           string                      `json:"doi,omitempty"`
	Metadata      *domain.PublicationMetadata `json:"metadata,omitempty"`
	Decisions     []domain.MatchDecision      `json:"decisions"`
	// UnresolvedAuthors holds display names of authors no researcher reached
	// the fuzzy threshold for.
	UnresolvedAuthors []string  `json:"unresolved_authors"`
	Mentions          []Mention `json:"mentions,omitempty"`
	// Reason explains a non-resolved status.
	Reason string `json:"reason,omitempty"`
}

// Pipeline runs the per-publication matching flow.
type Pipeline struct {
	cfg        Config
	resolver   MetadataResolver
	aggregator *Aggregator
	logger     zerolog.Logger
	metrics    *observability.Metrics
}

// NewPipeline wires a scorer and aggregator from cfg. metrics may be nil.
func NewPipeline(cfg Config, resolver MetadataResolver, logger zerolog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		resolver:   resolver,
		aggregator: NewAggregator(cfg, NewScorer(cfg), logger),
		logger:     logger.With().Str("component", "pipeline").Logger(),
		metrics:    metrics,
	}
}

// Config returns the configuration the pipeline was built with.
func (p *Pipeline) Config() Config {
	return p.cfg
}

// MatchPublication runs extraction, resolution, scoring and aggregation for
// one publication. It never returns an error: failures surface as the
// no_identifier or unresolved_metadata status.
func (p *Pipeline) MatchPublication(ctx context.Context, ref domain.RawPublicationRef, roster domain.Roster) *Result {
	logger := observability.LoggerFromContext(ctx, p.logger)
	result := &Result{
		PublicationID:     ref.PublicationID,
		Decisions:         []domain.MatchDecision{},
		UnresolvedAuthors: []string{},
	}

	doi, ok := identifier.ExtractDOI(ref.URLOrDOI)
	if !ok {
		result.Status = domain.MatchStatusNoIdentifier
		result.Reason = "no DOI in " + identifier.Classify(ref.URLOrDOI).String() + " reference"
		result.Mentions = findMentions(ref.FreeTextAuthors, roster)
		p.finish(logger, result)
		return result
	}
	result.DOI = doi

	meta, err := p.resolve(ctx, doi)
	if err != nil || meta == nil {
		result.Status = domain.MatchStatusUnresolvedMetadata
		if err != nil {
			result.Reason = err.Error()
		} else {
			result.Reason = "resolver returned no metadata"
		}
		result.Mentions = findMentions(ref.FreeTextAuthors, roster)
		p.finish(logger, result)
		return result
	}

	result.Status = domain.MatchStatusResolved
	result.Metadata = meta
	for _, author := range meta.Authors {
		decision, ok := p.aggregator.Decide(author, meta.OtherAuthorNames(author.Position), roster)
		if !ok {
			result.UnresolvedAuthors = append(result.UnresolvedAuthors, author.DisplayName())
			continue
		}
		result.Decisions = append(result.Decisions, *decision)
		p.metrics.RecordDecision(decision.Tier.String(), decision.Candidate.Method.String(), decision.Candidate.FinalConfidence)

		evt := logger.Debug()
		if decision.Tier != domain.ActionTierAutoAssign {
			evt = logger.Info()
		}
		evt.Str("doi", doi).
			Str("author", author.DisplayName()).
			Int("author_position", author.Position).
			Interface("researcher_id", decision.Candidate.ResearcherID).
			Str("method", decision.Candidate.Method.String()).
			Str("tier", decision.Tier.String()).
			Float64("confidence", decision.Candidate.FinalConfidence).
			Msg("author decided")
	}

	p.finish(logger, result)
	return result
}

func (p *Pipeline) resolve(ctx context.Context, doi string) (*domain.PublicationMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	meta, err := p.resolver.Resolve(ctx, doi)
	p.metrics.RecordResolverRequest(p.resolver.Name(), resolveOutcome(err), time.Since(start).Seconds())
	return meta, err
}

func (p *Pipeline) finish(logger zerolog.Logger, r *Result) {
	p.metrics.RecordPublication(string(r.Status), len(r.UnresolvedAuthors), len(r.Mentions))

	evt := logger.Info()
	if r.Status.IsUnresolved() {
		evt = logger.Warn().Str("reason", r.Reason).Int("mentions", len(r.Mentions))
	}
	evt.Int64("publication_id", r.PublicationID).
		Str("doi", r.DOI).
		Str("status", string(r.Status)).
		Int("decisions", len(r.Decisions)).
		Int("unresolved_authors", len(r.UnresolvedAuthors)).
		Msg("publication matched")
}

// resolveOutcome labels a resolver call for metrics.
func resolveOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, domain.ErrMalformedMetadata):
		return "malformed"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}

// findMentions scans a free-text author list for roster names and ORCID iDs.
// Researchers without stored variations get them generated from the full name.
// An ORCID on file that appears in the text is reported ahead of any name form.
func findMentions(text string, roster domain.Roster) []Mention {
	if text == "" {
		return nil
	}
	orcids := identifier.ExtractORCIDs(text)

	var out []Mention
	for _, r := range roster {
		if id, ok := mentionedORCID(orcids, r.UniqueIDs); ok {
			out = append(out, Mention{ResearcherID: r.ID, FullName: r.FullName, MatchedForm: id})
			continue
		}
		variations := r.NameVariations
		if len(variations) == 0 {
			variations = names.Variations(r.FullName)
		}
		if form, ok := names.MentionedIn(text, r.FullName, variations); ok {
			out = append(out, Mention{ResearcherID: r.ID, FullName: r.FullName, MatchedForm: form})
		}
	}
	return out
}

func mentionedORCID(found, onFile []string) (string, bool) {
	for _, id := range found {
		for _, own := range onFile {
			if identifier.SameORCID(id, own) {
				return id, true
			}
		}
	}
	return "", false
}
