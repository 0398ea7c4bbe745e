// Package repository provides data access interfaces and PostgreSQL
// implementations for the author matching service.
//
// # Repository Interfaces
//
//   - ResearcherRepository: the roster of internal researchers and their identifiers
//   - PublicationRepository: publications awaiting matching and their resolved authors
//   - DecisionRepository: persisted match decisions and the manual review queue
//
// # Thread Safety
//
// All implementations are safe for concurrent use. The underlying pgxpool
// handles connection pooling and synchronization.
//
// # Error Handling
//
// Methods return errors from the domain package where one applies:
//
//   - domain.ErrNotFound: the row does not exist
//   - domain.ErrAlreadyExists: a unique constraint was violated
//   - domain.ErrInvalidInput: invalid parameters
//   - domain.ErrReviewClosed: a decision was already reviewed
//
// Other database errors are wrapped with fmt.Errorf and %w.
//
// # Transactions
//
// Constructors accept DBTX, so the same repository runs against the pool or
// inside a transaction:
//
//	err := db.WithTransaction(ctx, func(tx pgx.Tx) error {
//	    pubs := repository.NewPgPublicationRepository(tx)
//	    return pubs.MarkMatched(ctx, id, domain.MatchStatusResolved, doi)
//	})
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/helixir/author-matching-service/internal/database"
)

// DBTX is the database interface supporting both pool and transaction contexts.
type DBTX = database.DBTX

// Filter pagination defaults and limits.
const (
	defaultFilterLimit = 100
	maxFilterLimit     = 1000
)

// PostgreSQL error codes the repositories translate.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// applyPaginationDefaults normalizes limit and offset values for filter queries.
// It clamps limit to [1, maxFilterLimit] and ensures offset >= 0.
func applyPaginationDefaults(limit, offset *int) {
	if *limit <= 0 {
		*limit = defaultFilterLimit
	}
	if *limit > maxFilterLimit {
		*limit = maxFilterLimit
	}
	if *offset < 0 {
		*offset = 0
	}
}

// withTx runs fn in a transaction on db. When db is already a transaction
// the work runs in a savepoint.
func withTx(ctx context.Context, db DBTX, fn func(tx pgx.Tx) error) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// pgErrorCode returns the SQLSTATE of err, or "" when err is not a PostgreSQL error.
func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// nullableString maps "" to SQL NULL.
func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
