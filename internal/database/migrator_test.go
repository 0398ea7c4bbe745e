package database

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMigrator_Validation(t *testing.T) {
	logger := zerolog.Nop()

	t.Run("fails with nil database", func(t *testing.T) {
		migrator, err := NewMigrator(nil, "/some/path", logger)
		require.Error(t, err)
		assert.Nil(t, migrator)
		assert.Contains(t, err.Error(), "database is required")
	})

	t.Run("fails with nil pool", func(t *testing.T) {
		migrator, err := NewMigrator(&DB{}, "/some/path", logger)
		require.Error(t, err)
		assert.Nil(t, migrator)
		assert.Contains(t, err.Error(), "database pool not initialized")
	})
}

var migrationName = regexp.MustCompile(`^(\d{6})_[a-z0-9_]+\.(up|down)\.sql$`)

// Every up migration needs a matching down migration, and versions must be contiguous.
func TestMigrationFiles_Paired(t *testing.T) {
	dir := getMigrationsPath(t)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	ups := map[string]string{}
	downs := map[string]string{}
	for _, e := range entries {
		m := migrationName.FindStringSubmatch(e.Name())
		require.NotNil(t, m, "unexpected file %s", e.Name())

		body, err := os.ReadFile(filepath.Join(dir, e.Name()))
		require.NoError(t, err)
		assert.NotEmpty(t, strings.TrimSpace(string(body)), e.Name())

		if m[2] == "up" {
			ups[m[1]] = e.Name()
		} else {
			downs[m[1]] = e.Name()
		}
	}

	require.NotEmpty(t, ups)
	assert.Equal(t, len(ups), len(downs))
	for version := range ups {
		assert.Contains(t, downs, version, "missing down migration for %s", version)
	}
	assert.Contains(t, ups, "000001")
}

func TestInitMigration_DefinesSchema(t *testing.T) {
	body, err := os.ReadFile(filepath.Join(getMigrationsPath(t), "000001_init.up.sql"))
	require.NoError(t, err)
	sql := string(body)

	for _, table := range []string{"researchers", "publications", "publication_authors", "researcher_publications", "match_decisions"} {
		assert.Contains(t, sql, "CREATE TABLE "+table, table)
	}
	for _, enum := range []string{"match_method", "action_tier", "match_status", "review_status"} {
		assert.Contains(t, sql, "CREATE TYPE "+enum, enum)
	}
	assert.Contains(t, sql, "UNIQUE (publication_id, author_position)")
}

// getMigrationsPath returns the path to the repository's migrations directory.
func getMigrationsPath(t *testing.T) string {
	t.Helper()

	cwd, err := os.Getwd()
	require.NoError(t, err)

	// internal/database -> internal -> project root
	migrationsPath := filepath.Join(cwd, "..", "..", "migrations")
	if _, err := os.Stat(migrationsPath); os.IsNotExist(err) {
		t.Skipf("Skipping test: migrations directory not found at %s", migrationsPath)
	}
	return migrationsPath
}
