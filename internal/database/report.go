package database

import (
	"context"
	"fmt"
)

// SchemaReport summarizes the matching tables after a migration.
type SchemaReport struct {
	Researchers       int64            `json:"researchers"`
	ActiveResearchers int64            `json:"active_researchers"`
	Publications      map[string]int64 `json:"publications"`
	Decisions         map[string]int64 `json:"decisions"`
	ReviewQueue       int64            `json:"review_queue"`
}

// Report counts researchers, publications by match status and decisions by
// review status. It must run against a schema at least at version 1.
func Report(ctx context.Context, db DBTX) (*SchemaReport, error) {
	report := &SchemaReport{
		Publications: make(map[string]int64),
		Decisions:    make(map[string]int64),
	}

	err := db.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE is_active) FROM researchers`,
	).Scan(&report.Researchers, &report.ActiveResearchers)
	if err != nil {
		return nil, fmt.Errorf("count researchers: %w", err)
	}

	if err := countBy(ctx, db, `
		SELECT match_status::text, COUNT(*) FROM publications GROUP BY match_status`,
		report.Publications); err != nil {
		return nil, fmt.Errorf("count publications: %w", err)
	}

	if err := countBy(ctx, db, `
		SELECT review_status::text, COUNT(*) FROM match_decisions GROUP BY review_status`,
		report.Decisions); err != nil {
		return nil, fmt.Errorf("count match decisions: %w", err)
	}

	report.ReviewQueue = report.Decisions["pending"]
	return report, nil
}

func countBy(ctx context.Context, db DBTX, sql string, into map[string]int64) error {
	rows, err := db.Query(ctx, sql)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var n int64
		if err := rows.Scan(&key, &n); err != nil {
			return err
		}
		into[key] = n
	}
	return rows.Err()
}
