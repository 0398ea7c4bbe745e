package repository

import (
	"context"

	"github.com/helixir/author-matching-service/internal/domain"
)

// PublicationRepository handles publications and their resolved author lists.
type PublicationRepository interface {
	// Create inserts a publication in the pending state and returns it with
	// its assigned id and timestamps.
	Create(ctx context.Context, pub *domain.Publication) (*domain.Publication, error)

	// Get retrieves a publication by id.
	// Returns domain.ErrNotFound if no publication exists.
	Get(ctx context.Context, id int64) (*domain.Publication, error)

	// GetByIDs retrieves publications by id in ascending id order.
	// Missing ids are skipped.
	GetByIDs(ctx context.Context, ids []int64) ([]*domain.Publication, error)

	// ListPending returns up to limit publications that have not been matched,
	// oldest first.
	ListPending(ctx context.Context, limit int) ([]*domain.Publication, error)

	// SaveAuthors replaces the stored author list of a publication with the
	// authors reported by the registry.
	SaveAuthors(ctx context.Context, publicationID int64, authors []domain.ExternalAuthorRecord) error

	// MarkMatched records the pipeline outcome and resolved DOI of a publication.
	// Returns domain.ErrNotFound if no publication exists.
	MarkMatched(ctx context.Context, id int64, status domain.MatchStatus, doi string) error
}
