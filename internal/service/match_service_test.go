package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/author-matching-service/internal/domain"
	"github.com/helixir/author-matching-service/internal/matching"
)

const testDOI = "10.1038/s41586-020-2012-7"

type mapResolver map[string]*domain.PublicationMetadata

func (m mapResolver) Name() string { return "map" }

func (m mapResolver) Resolve(_ context.Context, doi string) (*domain.PublicationMetadata, error) {
	if meta, ok := m[doi]; ok {
		return meta, nil
	}
	return nil, domain.NewNotFoundError("publication", doi)
}

type fakeRoster struct {
	researchers []domain.InternalResearcher
	err         error
	calls       int
}

func (f *fakeRoster) ListActive(context.Context) ([]domain.InternalResearcher, error) {
	f.calls++
	return f.researchers, f.err
}

type fakePublications struct {
	byID    map[int64]*domain.Publication
	pending []*domain.Publication
}

func (f *fakePublications) Get(_ context.Context, id int64) (*domain.Publication, error) {
	if p, ok := f.byID[id]; ok {
		return p, nil
	}
	return nil, domain.NewNotFoundError("publication", "x")
}

func (f *fakePublications) GetByIDs(_ context.Context, ids []int64) ([]*domain.Publication, error) {
	var out []*domain.Publication
	for _, id := range ids {
		if p, ok := f.byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePublications) ListPending(_ context.Context, limit int) ([]*domain.Publication, error) {
	if limit < len(f.pending) {
		return f.pending[:limit], nil
	}
	return f.pending, nil
}

type fakeDecisions struct {
	mu    sync.Mutex
	saved map[int64]*matching.Result
	runs  []uuid.UUID
	errs  map[int64]error
}

func (f *fakeDecisions) SaveResult(_ context.Context, runID uuid.UUID, publicationID int64, result *matching.Result) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[publicationID]; err != nil {
		return err
	}
	if f.saved == nil {
		f.saved = map[int64]*matching.Result{}
	}
	f.saved[publicationID] = result
	f.runs = append(f.runs, runID)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*domain.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, evs ...*domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, evs...)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType
	}
	return out
}

type fixture struct {
	roster       *fakeRoster
	publications *fakePublications
	decisions    *fakeDecisions
	publisher    *recordingPublisher
	svc          *MatchService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	resolver := mapResolver{
		testDOI: {
			DOI:   testDOI,
			Title: "A pneumonia outbreak",
			Authors: []domain.ExternalAuthorRecord{
				{Position: 0, GivenName: "Rodolfo", FamilyName: "Mancilla", UniqueID: "0000-0002-1234-5678"},
				{Position: 1, RawName: "García, J."},
			},
		},
	}
	f := &fixture{
		roster: &fakeRoster{researchers: []domain.InternalResearcher{
			{ID: 1, FullName: "Rodolfo Mancilla", UniqueIDs: []string{"0000-0002-1234-5678"}, IsActive: true},
			{ID: 2, FullName: "Juan García López", IsActive: true},
		}},
		publications: &fakePublications{byID: map[int64]*domain.Publication{
			11: {ID: 11, URLOrDOI: "https://doi.org/" + testDOI, MatchStatus: domain.MatchStatusPending},
			12: {ID: 12, URLOrDOI: "https://pubmed.ncbi.nlm.nih.gov/32015507/", FreeTextAuthors: "Mancilla R, Rojas A", MatchStatus: domain.MatchStatusPending},
		}},
		decisions: &fakeDecisions{},
		publisher: &recordingPublisher{},
	}
	f.publications.pending = []*domain.Publication{f.publications.byID[11], f.publications.byID[12]}

	pipeline := matching.NewPipeline(matching.DefaultConfig(), resolver, zerolog.Nop(), nil)
	svc, err := NewMatchService(Deps{
		Pipeline:     pipeline,
		Researchers:  f.roster,
		Publications: f.publications,
		Decisions:    f.decisions,
		Publisher:    f.publisher,
		Logger:       zerolog.Nop(),
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func TestNewMatchService_RequiresDependencies(t *testing.T) {
	_, err := NewMatchService(Deps{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline is required")

	pipeline := matching.NewPipeline(matching.DefaultConfig(), mapResolver{}, zerolog.Nop(), nil)
	_, err = NewMatchService(Deps{Pipeline: pipeline, Researchers: &fakeRoster{}})
	require.Error(t, err)
}

func TestMatchService_MatchAdHoc(t *testing.T) {
	t.Run("matches without persisting", func(t *testing.T) {
		f := newFixture(t)

		res, err := f.svc.MatchAdHoc(context.Background(), domain.RawPublicationRef{PublicationID: 99, URLOrDOI: "doi:" + testDOI})
		require.NoError(t, err)

		assert.Equal(t, domain.MatchStatusResolved, res.Status)
		assert.Zero(t, res.PublicationID)
		require.Len(t, res.Decisions, 2)
		assert.Equal(t, domain.ActionTierAutoAssign, res.Decisions[0].Tier)
		assert.Equal(t, domain.ActionTierManualReview, res.Decisions[1].Tier)
		assert.Empty(t, f.decisions.saved)
		assert.Empty(t, f.publisher.types())
	})

	t.Run("rejects an empty reference", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.MatchAdHoc(context.Background(), domain.RawPublicationRef{})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		assert.Zero(t, f.roster.calls)
	})

	t.Run("roster failure", func(t *testing.T) {
		f := newFixture(t)
		f.roster.err = errors.New("connection refused")

		_, err := f.svc.MatchAdHoc(context.Background(), domain.RawPublicationRef{URLOrDOI: testDOI})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "load roster")
	})
}

func TestMatchService_MatchStored(t *testing.T) {
	t.Run("persists and publishes decisions", func(t *testing.T) {
		f := newFixture(t)
		runID := uuid.New()

		res, err := f.svc.MatchStored(context.Background(), runID, 11)
		require.NoError(t, err)

		assert.Equal(t, int64(11), res.PublicationID)
		assert.Equal(t, testDOI, res.DOI)
		require.Contains(t, f.decisions.saved, int64(11))
		assert.Equal(t, []uuid.UUID{runID}, f.decisions.runs)
		assert.Equal(t, []string{
			domain.EventTypeMatchDecided,
			domain.EventTypeMatchDecided,
			domain.EventTypeMatchReviewRequested,
		}, f.publisher.types())
	})

	t.Run("unresolved publication publishes a single event", func(t *testing.T) {
		f := newFixture(t)

		res, err := f.svc.MatchStored(context.Background(), uuid.New(), 12)
		require.NoError(t, err)

		assert.Equal(t, domain.MatchStatusNoIdentifier, res.Status)
		require.Len(t, res.Mentions, 1)
		assert.Equal(t, int64(1), res.Mentions[0].ResearcherID)
		assert.Equal(t, []string{domain.EventTypePublicationUnresolved}, f.publisher.types())
	})

	t.Run("unknown publication", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.MatchStored(context.Background(), uuid.New(), 404)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("publish failure does not fail the match", func(t *testing.T) {
		f := newFixture(t)
		f.publisher.err = errors.New("broker down")

		_, err := f.svc.MatchStored(context.Background(), uuid.New(), 11)
		require.NoError(t, err)
		assert.Contains(t, f.decisions.saved, int64(11))
	})

	t.Run("save failure is returned", func(t *testing.T) {
		f := newFixture(t)
		f.decisions.errs = map[int64]error{11: errors.New("deadlock detected")}

		_, err := f.svc.MatchStored(context.Background(), uuid.New(), 11)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "save result for publication 11")
		assert.Empty(t, f.publisher.types())
	})
}

func TestMatchService_MatchByIDs(t *testing.T) {
	t.Run("counts missing ids as failed", func(t *testing.T) {
		f := newFixture(t)

		summary, err := f.svc.MatchByIDs(context.Background(), uuid.New(), []int64{11, 12, 13}, nil)
		require.NoError(t, err)

		assert.Equal(t, 2, summary.Publications)
		assert.Equal(t, 1, summary.Resolved)
		assert.Equal(t, 1, summary.NoIdentifier)
		assert.Equal(t, 2, summary.Decisions)
		assert.Equal(t, 1, summary.Failed)
		assert.Equal(t, 1, summary.DecisionsByTier[domain.ActionTierManualReview])
		assert.Equal(t, 1, f.roster.calls)
	})

	t.Run("uses the given roster snapshot", func(t *testing.T) {
		f := newFixture(t)
		roster := domain.Roster{{ID: 7, FullName: "Juan García López", IsActive: true}}

		summary, err := f.svc.MatchByIDs(context.Background(), uuid.New(), []int64{11}, roster)
		require.NoError(t, err)

		assert.Zero(t, f.roster.calls)
		res := f.decisions.saved[11]
		require.NotNil(t, res)
		// Mancilla's ORCID is unknown to this roster.
		assert.Equal(t, domain.MatchMethodIdentifierNew, res.Decisions[0].Candidate.Method)
		assert.Equal(t, int64(7), *res.Decisions[1].Candidate.ResearcherID)
		assert.Equal(t, 1, summary.Publications)
	})

	t.Run("deleted publication is skipped", func(t *testing.T) {
		f := newFixture(t)
		f.decisions.errs = map[int64]error{12: domain.NewNotFoundError("publication", "12")}

		summary, err := f.svc.MatchByIDs(context.Background(), uuid.New(), []int64{11, 12}, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, summary.Publications)
		assert.Equal(t, 1, summary.Failed)
	})

	t.Run("cancelled context persists nothing", func(t *testing.T) {
		f := newFixture(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := f.svc.MatchByIDs(ctx, uuid.New(), []int64{11}, nil)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, f.decisions.saved)
	})
}

func TestMatchService_RunBatch(t *testing.T) {
	f := newFixture(t)
	runID := uuid.New()

	summary, err := f.svc.RunBatch(context.Background(), runID, 10)
	require.NoError(t, err)

	assert.Equal(t, runID.String(), summary.RunID)
	assert.Equal(t, 2, summary.Publications)
	assert.False(t, summary.StartedAt.IsZero())
	assert.False(t, summary.CompletedAt.Before(summary.StartedAt))

	types := f.publisher.types()
	require.NotEmpty(t, types)
	assert.Equal(t, domain.EventTypeBatchCompleted, types[len(types)-1])
}
