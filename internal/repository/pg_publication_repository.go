package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"

	"github.com/helixir/author-matching-service/internal/domain"
)

// Compile-time check that PgPublicationRepository implements PublicationRepository.
var _ PublicationRepository = (*PgPublicationRepository)(nil)

// PgPublicationRepository implements PublicationRepository using PostgreSQL.
type PgPublicationRepository struct {
	db DBTX
}

// NewPgPublicationRepository creates a new PostgreSQL publication repository.
func NewPgPublicationRepository(db DBTX) *PgPublicationRepository {
	return &PgPublicationRepository{db: db}
}

const publicationColumns = `id, title, url_or_doi, free_text_authors, doi, match_status, matched_at, created_at, updated_at`

// Create inserts a publication in the pending state.
func (r *PgPublicationRepository) Create(ctx context.Context, pub *domain.Publication) (*domain.Publication, error) {
	if pub == nil {
		return nil, domain.NewValidationError("publication", "publication is required")
	}
	if pub.URLOrDOI == "" && pub.FreeTextAuthors == "" && pub.Title == "" {
		return nil, domain.NewValidationError("url_or_doi", "publication needs a reference, title or author list")
	}

	query := `
		INSERT INTO publications (title, url_or_doi, free_text_authors, match_status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`

	out := *pub
	out.MatchStatus = domain.MatchStatusPending
	out.DOI = ""
	out.MatchedAt = nil

	err := r.db.QueryRow(ctx, query, pub.Title, pub.URLOrDOI, pub.FreeTextAuthors, out.MatchStatus).
		Scan(&out.ID, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create publication: %w", err)
	}
	return &out, nil
}

// Get retrieves a publication by id.
func (r *PgPublicationRepository) Get(ctx context.Context, id int64) (*domain.Publication, error) {
	query := `SELECT ` + publicationColumns + ` FROM publications WHERE id = $1`

	pub, err := scanPublication(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("publication", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("failed to get publication: %w", err)
	}
	return pub, nil
}

// GetByIDs retrieves publications by id.
func (r *PgPublicationRepository) GetByIDs(ctx context.Context, ids []int64) ([]*domain.Publication, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `SELECT ` + publicationColumns + ` FROM publications WHERE id = ANY($1) ORDER BY id`

	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get publications by IDs: %w", err)
	}
	return collectPublications(rows, len(ids))
}

// ListPending returns up to limit pending publications, oldest first.
func (r *PgPublicationRepository) ListPending(ctx context.Context, limit int) ([]*domain.Publication, error) {
	offset := 0
	applyPaginationDefaults(&limit, &offset)

	query := `
		SELECT ` + publicationColumns + `
		FROM publications
		WHERE match_status = 'pending'
		ORDER BY id
		LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending publications: %w", err)
	}
	return collectPublications(rows, limit)
}

// SaveAuthors replaces the stored author list. It should run inside a
// transaction so readers never see a partially written list.
func (r *PgPublicationRepository) SaveAuthors(ctx context.Context, publicationID int64, authors []domain.ExternalAuthorRecord) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM publication_authors WHERE publication_id = $1`, publicationID); err != nil {
		return fmt.Errorf("failed to clear publication authors: %w", err)
	}

	query := `
		INSERT INTO publication_authors (publication_id, position, full_name, orcid, affiliations)
		VALUES ($1, $2, $3, $4, $5)`

	for _, a := range authors {
		affiliations := a.Affiliations
		if affiliations == nil {
			affiliations = []string{}
		}
		_, err := r.db.Exec(ctx, query, publicationID, a.Position, a.DisplayName(), nullableString(a.UniqueID), affiliations)
		if err != nil {
			if pgErrorCode(err) == pgForeignKeyViolation {
				return domain.NewNotFoundError("publication", strconv.FormatInt(publicationID, 10))
			}
			return fmt.Errorf("failed to insert publication author %d: %w", a.Position, err)
		}
	}
	return nil
}

// MarkMatched records the pipeline outcome of a publication. An empty doi
// leaves a previously resolved DOI in place.
func (r *PgPublicationRepository) MarkMatched(ctx context.Context, id int64, status domain.MatchStatus, doi string) error {
	query := `
		UPDATE publications
		SET match_status = $2,
			doi = COALESCE($3, doi),
			matched_at = NOW(),
			updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.Exec(ctx, query, id, status, nullableString(doi))
	if err != nil {
		return fmt.Errorf("failed to mark publication matched: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("publication", strconv.FormatInt(id, 10))
	}
	return nil
}

func collectPublications(rows pgx.Rows, capacity int) ([]*domain.Publication, error) {
	defer rows.Close()

	pubs := make([]*domain.Publication, 0, capacity)
	for rows.Next() {
		pub, err := scanPublication(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan publication: %w", err)
		}
		pubs = append(pubs, pub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating publications: %w", err)
	}
	return pubs, nil
}

func scanPublication(row pgx.Row) (*domain.Publication, error) {
	var (
		pub domain.Publication
		doi *string
	)

	err := row.Scan(
		&pub.ID,
		&pub.Title,
		&pub.URLOrDOI,
		&pub.FreeTextAuthors,
		&doi,
		&pub.MatchStatus,
		&pub.MatchedAt,
		&pub.CreatedAt,
		&pub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	pub.DOI = derefString(doi)
	return &pub, nil
}
