// Package papersources provides rate-limited HTTP plumbing and clients for the
// bibliographic registries that publication metadata is resolved against.
//
// A registry client turns a DOI into domain.PublicationMetadata with a single
// bounded request. Failures are returned as typed domain errors
// (domain.ErrNotFound, *domain.RateLimitError, *domain.ExternalAPIError) and the
// matching pipeline decides what they mean; clients never retry on their own
// unless configured to.
//
// Example usage:
//
//	client := openalex.New(openalex.Config{Email: "ops@example.org"})
//	md, err := client.Resolve(ctx, "10.1038/s41586-020-2012-7")
package papersources

import (
	"context"

	"github.com/helixir/author-matching-service/internal/domain"
)

// MetadataSource resolves publication metadata by DOI.
type MetadataSource interface {
	// Resolve performs one lookup. It returns domain.ErrNotFound (wrapped) when
	// the registry has no record for the DOI.
	Resolve(ctx context.Context, doi string) (*domain.PublicationMetadata, error)

	// Name returns a human-readable name for logs and metrics.
	Name() string
}

// AuthorSource looks up author profiles by ORCID iD.
type AuthorSource interface {
	GetAuthorByORCID(ctx context.Context, orcid string) (*domain.AuthorProfile, error)
}
