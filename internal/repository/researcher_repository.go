package repository

import (
	"context"

	"github.com/helixir/author-matching-service/internal/domain"
)

// ResearcherRepository reads and maintains the roster of internal researchers.
type ResearcherRepository interface {
	// ListActive returns every active researcher ordered by id. PriorCoauthors
	// is filled with the names of co-authors on publications already
	// attributed to the researcher.
	ListActive(ctx context.Context) ([]domain.InternalResearcher, error)

	// Get retrieves a researcher by id.
	// Returns domain.ErrNotFound if no researcher exists.
	Get(ctx context.Context, id int64) (*domain.InternalResearcher, error)

	// FindByORCID retrieves the researcher holding a bare ORCID.
	// Returns domain.ErrNotFound if no researcher holds it.
	FindByORCID(ctx context.Context, orcid string) (*domain.InternalResearcher, error)

	// ListWithoutORCID returns active researchers with no ORCID on file.
	ListWithoutORCID(ctx context.Context) ([]domain.InternalResearcher, error)

	// SetORCID records orcid for researcher id.
	// Returns domain.ErrAlreadyExists if another researcher holds it.
	SetORCID(ctx context.Context, id int64, orcid string) error

	// UpdateNameVariations replaces the stored name variations of researcher id.
	UpdateNameVariations(ctx context.Context, id int64, variations []string) error
}
