package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"

	"github.com/helixir/author-matching-service/internal/domain"
)

// Compile-time check that PgResearcherRepository implements ResearcherRepository.
var _ ResearcherRepository = (*PgResearcherRepository)(nil)

// PgResearcherRepository implements ResearcherRepository using PostgreSQL.
type PgResearcherRepository struct {
	db DBTX
}

// NewPgResearcherRepository creates a new PostgreSQL researcher repository.
func NewPgResearcherRepository(db DBTX) *PgResearcherRepository {
	return &PgResearcherRepository{db: db}
}

const researcherColumns = `r.id, r.full_name, r.institution, r.orcid, r.name_variations, r.is_active, r.updated_at`

// ListActive returns the active roster with prior co-authors. A co-author is
// any author of an attributed publication other than the position the
// researcher was matched to.
func (r *PgResearcherRepository) ListActive(ctx context.Context) ([]domain.InternalResearcher, error) {
	query := `
		SELECT ` + researcherColumns + `,
			ARRAY(
				SELECT DISTINCT pa.full_name
				FROM researcher_publications rp
				JOIN publication_authors pa ON pa.publication_id = rp.publication_id
				WHERE rp.researcher_id = r.id
					AND NOT EXISTS (
						SELECT 1 FROM match_decisions md
						WHERE md.publication_id = pa.publication_id
							AND md.author_position = pa.position
							AND md.researcher_id = r.id
					)
				ORDER BY pa.full_name
			) AS prior_coauthors
		FROM researchers r
		WHERE r.is_active
		ORDER BY r.id`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list active researchers: %w", err)
	}
	defer rows.Close()

	researchers := make([]domain.InternalResearcher, 0)
	for rows.Next() {
		var coauthors []string
		res, err := scanResearcher(rows, &coauthors)
		if err != nil {
			return nil, fmt.Errorf("failed to scan researcher: %w", err)
		}
		res.PriorCoauthors = coauthors
		researchers = append(researchers, *res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating researchers: %w", err)
	}

	return researchers, nil
}

// Get retrieves a researcher by id.
func (r *PgResearcherRepository) Get(ctx context.Context, id int64) (*domain.InternalResearcher, error) {
	query := `SELECT ` + researcherColumns + ` FROM researchers r WHERE r.id = $1`

	res, err := scanResearcher(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("researcher", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("failed to get researcher: %w", err)
	}
	return res, nil
}

// FindByORCID retrieves the researcher holding orcid.
func (r *PgResearcherRepository) FindByORCID(ctx context.Context, orcid string) (*domain.InternalResearcher, error) {
	if orcid == "" {
		return nil, domain.NewValidationError("orcid", "ORCID is required")
	}

	query := `SELECT ` + researcherColumns + ` FROM researchers r WHERE upper(r.orcid) = upper($1)`

	res, err := scanResearcher(r.db.QueryRow(ctx, query, orcid))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("researcher", orcid)
		}
		return nil, fmt.Errorf("failed to find researcher by ORCID: %w", err)
	}
	return res, nil
}

// ListWithoutORCID returns active researchers with no ORCID on file.
func (r *PgResearcherRepository) ListWithoutORCID(ctx context.Context) ([]domain.InternalResearcher, error) {
	query := `
		SELECT ` + researcherColumns + `
		FROM researchers r
		WHERE r.is_active AND r.orcid IS NULL
		ORDER BY r.id`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list researchers without ORCID: %w", err)
	}
	defer rows.Close()

	researchers := make([]domain.InternalResearcher, 0)
	for rows.Next() {
		res, err := scanResearcher(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan researcher: %w", err)
		}
		researchers = append(researchers, *res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating researchers: %w", err)
	}

	return researchers, nil
}

// SetORCID records orcid for researcher id.
func (r *PgResearcherRepository) SetORCID(ctx context.Context, id int64, orcid string) error {
	if orcid == "" {
		return domain.NewValidationError("orcid", "ORCID is required")
	}

	query := `UPDATE researchers SET orcid = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.db.Exec(ctx, query, id, orcid)
	if err != nil {
		if pgErrorCode(err) == pgUniqueViolation {
			return domain.NewAlreadyExistsError("researcher orcid", orcid)
		}
		return fmt.Errorf("failed to set researcher ORCID: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("researcher", strconv.FormatInt(id, 10))
	}
	return nil
}

// UpdateNameVariations replaces the stored name variations of researcher id.
func (r *PgResearcherRepository) UpdateNameVariations(ctx context.Context, id int64, variations []string) error {
	if variations == nil {
		variations = []string{}
	}

	query := `UPDATE researchers SET name_variations = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.db.Exec(ctx, query, id, variations)
	if err != nil {
		return fmt.Errorf("failed to update name variations: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("researcher", strconv.FormatInt(id, 10))
	}
	return nil
}

// scanResearcher scans the researcher columns followed by any extra destinations.
func scanResearcher(row pgx.Row, extra ...any) (*domain.InternalResearcher, error) {
	var (
		res   domain.InternalResearcher
		orcid *string
	)

	dest := []any{
		&res.ID,
		&res.FullName,
		&res.Institution,
		&orcid,
		&res.NameVariations,
		&res.IsActive,
		&res.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	if orcid != nil && *orcid != "" {
		res.UniqueIDs = []string{*orcid}
	}
	return &res, nil
}
