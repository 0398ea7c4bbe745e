package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/helixir/author-matching-service/internal/domain"
	"github.com/helixir/author-matching-service/internal/matching"
)

// Link sources recorded in researcher_publications.
const (
	linkSourceAutomatic = "automatic"
	linkSourceReview    = "review"
)

// Compile-time check that PgDecisionRepository implements DecisionRepository.
var _ DecisionRepository = (*PgDecisionRepository)(nil)

// PgDecisionRepository implements DecisionRepository using PostgreSQL.
type PgDecisionRepository struct {
	db DBTX
}

// NewPgDecisionRepository creates a new PostgreSQL decision repository.
func NewPgDecisionRepository(db DBTX) *PgDecisionRepository {
	return &PgDecisionRepository{db: db}
}

const decisionColumns = `id, run_id, publication_id, author_position, author_name, author_orcid,
			researcher_id, method, tier, final_confidence, signals,
			review_status, reviewed_by, reviewed_at, created_at, updated_at`

// SaveResult persists a pipeline result in one transaction.
func (r *PgDecisionRepository) SaveResult(ctx context.Context, runID uuid.UUID, publicationID int64, result *matching.Result) error {
	if result == nil {
		return domain.NewValidationError("result", "result is required")
	}
	if publicationID <= 0 {
		return domain.NewValidationError("publication_id", "publication id is required")
	}

	return withTx(ctx, r.db, func(tx pgx.Tx) error {
		pubs := NewPgPublicationRepository(tx)

		if result.Metadata != nil {
			if err := pubs.SaveAuthors(ctx, publicationID, result.Metadata.Authors); err != nil {
				return err
			}
		}

		positions := make([]int, 0, len(result.Decisions))
		for _, d := range result.Decisions {
			positions = append(positions, d.Author.Position)

			applied, err := upsertDecision(ctx, tx, runID, publicationID, d)
			if err != nil {
				return err
			}
			// A reviewed row keeps the reviewer's researcher and link.
			if !applied {
				continue
			}
			if d.Tier.IsAutomatic() && d.HasResearcher() {
				err := linkResearcher(ctx, tx, *d.Candidate.ResearcherID, publicationID,
					d.Candidate.Method, d.Candidate.FinalConfidence, linkSourceAutomatic)
				if err != nil {
					return err
				}
			}
		}

		// Only a resolved author list says which positions no longer match.
		if result.Metadata != nil {
			if err := pruneDecisions(ctx, tx, publicationID, positions); err != nil {
				return err
			}
		}

		return pubs.MarkMatched(ctx, publicationID, result.Status, result.DOI)
	})
}

// upsertDecision writes one decision row and reports whether it was written.
// A row whose review is closed is left untouched.
func upsertDecision(ctx context.Context, db DBTX, runID uuid.UUID, publicationID int64, d domain.MatchDecision) (bool, error) {
	signals, err := json.Marshal(d.Candidate.Signals)
	if err != nil {
		return false, fmt.Errorf("failed to marshal signals: %w", err)
	}

	query := `
		INSERT INTO match_decisions (
			id, run_id, publication_id, author_position, author_name, author_orcid,
			researcher_id, method, tier, final_confidence, signals, review_status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (publication_id, author_position) DO UPDATE SET
			run_id = EXCLUDED.run_id,
			author_name = EXCLUDED.author_name,
			author_orcid = EXCLUDED.author_orcid,
			researcher_id = EXCLUDED.researcher_id,
			method = EXCLUDED.method,
			tier = EXCLUDED.tier,
			final_confidence = EXCLUDED.final_confidence,
			signals = EXCLUDED.signals,
			review_status = EXCLUDED.review_status,
			updated_at = NOW()
		WHERE match_decisions.review_status NOT IN ('accepted', 'rejected')
		RETURNING id`

	var id uuid.UUID
	err = db.QueryRow(ctx, query,
		uuid.New(),
		runID,
		publicationID,
		d.Author.Position,
		d.Author.DisplayName(),
		nullableString(d.Author.UniqueID),
		d.Candidate.ResearcherID,
		d.Candidate.Method,
		d.Tier,
		d.Candidate.FinalConfidence,
		signals,
		domain.InitialReviewStatus(d.Tier),
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		if pgErrorCode(err) == pgForeignKeyViolation {
			return false, domain.NewNotFoundError("publication", strconv.FormatInt(publicationID, 10))
		}
		return false, fmt.Errorf("failed to upsert decision for author %d: %w", d.Author.Position, err)
	}
	return true, nil
}

// pruneDecisions deletes unreviewed decisions for author positions outside
// keep, together with the automatic links they created.
func pruneDecisions(ctx context.Context, tx pgx.Tx, publicationID int64, keep []int) error {
	query := `
		DELETE FROM match_decisions
		WHERE publication_id = $1
			AND review_status NOT IN ('accepted', 'rejected')
			AND NOT (author_position = ANY($2))
		RETURNING researcher_id, tier`

	rows, err := tx.Query(ctx, query, publicationID, keep)
	if err != nil {
		return fmt.Errorf("failed to prune stale decisions: %w", err)
	}
	var linked []int64
	for rows.Next() {
		var (
			researcherID *int64
			tier         domain.ActionTier
		)
		if err := rows.Scan(&researcherID, &tier); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan pruned decision: %w", err)
		}
		if researcherID != nil && tier.IsAutomatic() {
			linked = append(linked, *researcherID)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to prune stale decisions: %w", err)
	}

	unlink := `
		DELETE FROM researcher_publications
		WHERE researcher_id = $1 AND publication_id = $2 AND source = $3`
	for _, researcherID := range linked {
		if _, err := tx.Exec(ctx, unlink, researcherID, publicationID, linkSourceAutomatic); err != nil {
			return fmt.Errorf("failed to unlink pruned decision: %w", err)
		}
	}
	return nil
}

func linkResearcher(ctx context.Context, db DBTX, researcherID, publicationID int64, method domain.MatchMethod, confidence float64, source string) error {
	query := `
		INSERT INTO researcher_publications (researcher_id, publication_id, match_method, confidence, source)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (researcher_id, publication_id) DO UPDATE SET
			match_method = EXCLUDED.match_method,
			confidence = EXCLUDED.confidence,
			source = EXCLUDED.source`

	if _, err := db.Exec(ctx, query, researcherID, publicationID, method, confidence, source); err != nil {
		if pgErrorCode(err) == pgForeignKeyViolation {
			return domain.NewNotFoundError("researcher", strconv.FormatInt(researcherID, 10))
		}
		return fmt.Errorf("failed to link researcher to publication: %w", err)
	}
	return nil
}

// ListByPublication returns the decisions of a publication.
func (r *PgDecisionRepository) ListByPublication(ctx context.Context, publicationID int64) ([]*domain.StoredDecision, error) {
	query := `
		SELECT ` + decisionColumns + `
		FROM match_decisions
		WHERE publication_id = $1
		ORDER BY author_position`

	rows, err := r.db.Query(ctx, query, publicationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list decisions: %w", err)
	}
	defer rows.Close()

	decisions := make([]*domain.StoredDecision, 0)
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan decision: %w", err)
		}
		decisions = append(decisions, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating decisions: %w", err)
	}
	return decisions, nil
}

// List returns decisions matching the filter.
func (r *PgDecisionRepository) List(ctx context.Context, filter DecisionFilter) ([]*domain.StoredDecision, int64, error) {
	if err := filter.Validate(); err != nil {
		return nil, 0, err
	}

	conditions := []string{"TRUE"}
	args := []interface{}{}
	argIndex := 1

	if filter.Tier != "" {
		conditions = append(conditions, fmt.Sprintf("tier = $%d", argIndex))
		args = append(args, filter.Tier)
		argIndex++
	}

	if filter.ReviewStatus != "" {
		conditions = append(conditions, fmt.Sprintf("review_status = $%d", argIndex))
		args = append(args, filter.ReviewStatus)
		argIndex++
	}

	if filter.RunID != uuid.Nil {
		conditions = append(conditions, fmt.Sprintf("run_id = $%d", argIndex))
		args = append(args, filter.RunID)
		argIndex++
	}

	whereClause := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM match_decisions WHERE %s", whereClause)
	var totalCount int64
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count decisions: %w", err)
	}

	selectQuery := fmt.Sprintf(`
		SELECT %s
		FROM match_decisions
		WHERE %s
		ORDER BY created_at DESC, id
		LIMIT $%d OFFSET $%d`,
		decisionColumns, whereClause, argIndex, argIndex+1)

	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list decisions: %w", err)
	}
	defer rows.Close()

	decisions := make([]*domain.StoredDecision, 0, filter.Limit)
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan decision: %w", err)
		}
		decisions = append(decisions, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating decisions: %w", err)
	}

	return decisions, totalCount, nil
}

// Review closes a decision under a row lock.
func (r *PgDecisionRepository) Review(ctx context.Context, id uuid.UUID, accepted bool, reviewer string) (*domain.StoredDecision, error) {
	reviewer = strings.TrimSpace(reviewer)
	if reviewer == "" {
		return nil, domain.NewValidationError("reviewer", "reviewer is required")
	}

	var reviewed *domain.StoredDecision
	err := withTx(ctx, r.db, func(tx pgx.Tx) error {
		query := `SELECT ` + decisionColumns + ` FROM match_decisions WHERE id = $1 FOR UPDATE`

		d, err := scanDecision(tx.QueryRow(ctx, query, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.NewNotFoundError("decision", id.String())
			}
			return fmt.Errorf("failed to load decision: %w", err)
		}
		if d.ReviewStatus.IsTerminal() {
			return fmt.Errorf("decision %s is %s: %w", id, d.ReviewStatus, domain.ErrReviewClosed)
		}

		status := domain.ReviewStatusRejected
		if accepted {
			status = domain.ReviewStatusAccepted
		}

		update := `
			UPDATE match_decisions
			SET review_status = $2, reviewed_by = $3, reviewed_at = NOW(), updated_at = NOW()
			WHERE id = $1
			RETURNING reviewed_at, updated_at`

		if err := tx.QueryRow(ctx, update, id, status, reviewer).Scan(&d.ReviewedAt, &d.UpdatedAt); err != nil {
			return fmt.Errorf("failed to update review status: %w", err)
		}
		d.ReviewStatus = status
		d.ReviewedBy = reviewer

		if d.ResearcherID != nil {
			if accepted {
				err = linkResearcher(ctx, tx, *d.ResearcherID, d.PublicationID, d.Method, d.FinalConfidence, linkSourceReview)
			} else {
				err = unlinkResearcher(ctx, tx, *d.ResearcherID, d.PublicationID)
			}
			if err != nil {
				return err
			}
		}

		reviewed = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reviewed, nil
}

func unlinkResearcher(ctx context.Context, db DBTX, researcherID, publicationID int64) error {
	query := `DELETE FROM researcher_publications WHERE researcher_id = $1 AND publication_id = $2`
	if _, err := db.Exec(ctx, query, researcherID, publicationID); err != nil {
		return fmt.Errorf("failed to unlink researcher from publication: %w", err)
	}
	return nil
}

func scanDecision(row pgx.Row) (*domain.StoredDecision, error) {
	var (
		d          domain.StoredDecision
		orcid      *string
		reviewedBy *string
		signals    []byte
	)

	err := row.Scan(
		&d.ID,
		&d.RunID,
		&d.PublicationID,
		&d.AuthorPosition,
		&d.AuthorName,
		&orcid,
		&d.ResearcherID,
		&d.Method,
		&d.Tier,
		&d.FinalConfidence,
		&signals,
		&d.ReviewStatus,
		&reviewedBy,
		&d.ReviewedAt,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	d.AuthorORCID = derefString(orcid)
	d.ReviewedBy = derefString(reviewedBy)
	if len(signals) > 0 {
		if err := json.Unmarshal(signals, &d.Signals); err != nil {
			return nil, fmt.Errorf("failed to unmarshal signals: %w", err)
		}
	}
	return &d, nil
}
