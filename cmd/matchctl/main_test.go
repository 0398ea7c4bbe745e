package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/author-matching-service/internal/database"
	"github.com/helixir/author-matching-service/internal/domain"
	"github.com/helixir/author-matching-service/internal/matching"
)

func TestRootCommandTree(t *testing.T) {
	root := newRootCommand()

	for _, path := range [][]string{
		{"match"},
		{"batch", "run"},
		{"batch", "status"},
		{"batch", "stop"},
		{"link-orcid"},
		{"variations"},
		{"migrate", "up"},
		{"migrate", "down"},
		{"migrate", "steps"},
		{"migrate", "version"},
		{"migrate", "force"},
	} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestMatchCommandRequiresInput(t *testing.T) {
	root := newRootCommand()
	root.SetArgs([]string{"match"})
	root.SetOut(&bytes.Buffer{})

	err := root.Execute()
	assert.ErrorIs(t, err, errNoMatchInput)
}

func TestValidateMatchInput(t *testing.T) {
	tests := []struct {
		name    string
		ref     domain.RawPublicationRef
		id      int64
		wantErr bool
	}{
		{"doi only", domain.RawPublicationRef{URLOrDOI: "10.1000/xyz"}, 0, false},
		{"authors only", domain.RawPublicationRef{FreeTextAuthors: "Smith J"}, 0, false},
		{"stored id", domain.RawPublicationRef{}, 5, false},
		{"nothing", domain.RawPublicationRef{}, 0, true},
		{"negative id", domain.RawPublicationRef{}, -1, true},
		{"id and reference", domain.RawPublicationRef{URLOrDOI: "10.1000/xyz"}, 5, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateMatchInput(tt.ref, tt.id)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestVariationsTarget(t *testing.T) {
	id, err := variationsTarget([]string{"42"}, false)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	_, err = variationsTarget(nil, true)
	assert.NoError(t, err)

	_, err = variationsTarget(nil, false)
	assert.Error(t, err)
	_, err = variationsTarget([]string{"42"}, true)
	assert.Error(t, err)
	_, err = variationsTarget([]string{"abc"}, false)
	assert.Error(t, err)
	_, err = variationsTarget([]string{"0"}, false)
	assert.Error(t, err)
}

func TestFirstPositive(t *testing.T) {
	assert.Equal(t, 3, firstPositive(0, 3, 5))
	assert.Equal(t, 7, firstPositive(7, 3))
	assert.Equal(t, 0, firstPositive(0, -1))
}

func TestPrintResult(t *testing.T) {
	id := int64(12)
	res := &matching.Result{
		Status: domain.MatchStatusResolved,
		DOI:    "10.1000/xyz",
		Decisions: []domain.MatchDecision{
			{
				Author:    domain.ExternalAuthorRecord{Position: 1, GivenName: "Jane", FamilyName: "Doe"},
				Candidate: domain.CandidateScore{ResearcherID: &id, FinalConfidence: 0.97, Method: domain.MatchMethodIdentifierExact},
				Tier:      domain.ActionTierAutoAssign,
			},
			{
				Author: domain.ExternalAuthorRecord{Position: 2, RawName: "Roe, R."},
				Tier:   domain.ActionTierManualReview,
			},
		},
		UnresolvedAuthors: []string{"Roe, R."},
	}

	var buf bytes.Buffer
	printResult(&buf, res)
	out := buf.String()

	assert.Contains(t, out, "10.1000/xyz")
	assert.Contains(t, out, "Jane Doe")
	assert.Contains(t, out, "12")
	assert.Contains(t, out, "new")
	assert.Contains(t, out, "Unresolved: Roe, R.")
}

func TestPrintSummary(t *testing.T) {
	s := domain.NewBatchSummary("run-1")
	s.Publications = 3
	s.Resolved = 2
	s.Decisions = 4
	s.DecisionsByTier[domain.ActionTierAutoAssign] = 4
	s.StartedAt = time.Now()

	var buf bytes.Buffer
	printSummary(&buf, s)

	assert.Contains(t, buf.String(), "run-1")
	assert.Contains(t, buf.String(), string(domain.ActionTierAutoAssign))
}

func TestMigrateArgs(t *testing.T) {
	n, err := parseSteps("-2")
	require.NoError(t, err)
	assert.Equal(t, -2, n)

	_, err = parseSteps("0")
	assert.Error(t, err)
	_, err = parseSteps("two")
	assert.Error(t, err)

	v, err := parseForceVersion("1")
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	_, err = parseForceVersion("-1")
	assert.Error(t, err)
}

func TestMigrateStepsRejectsZeroBeforeConnecting(t *testing.T) {
	root := newRootCommand()
	root.SetArgs([]string{"migrate", "steps", "0"})
	root.SetOut(&bytes.Buffer{})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must not be zero")
}

func TestPrintMigrateState(t *testing.T) {
	t.Run("reports the matching tables", func(t *testing.T) {
		var buf bytes.Buffer
		printMigrateState(&buf, migrateState{
			Migration: database.MigrationStatus{Version: 1},
			Report: &database.SchemaReport{
				Researchers:       12,
				ActiveResearchers: 10,
				Publications:      map[string]int64{"resolved": 20, "pending": 4},
				Decisions:         map[string]int64{"pending": 3},
				ReviewQueue:       3,
			},
		})

		out := buf.String()
		assert.Contains(t, out, "Version: 1")
		assert.Contains(t, out, "10 active of 12")
		assert.Contains(t, out, "pending=4, resolved=20")
		assert.Contains(t, out, "Review queue: 3")
	})

	t.Run("dirty schema skips the report", func(t *testing.T) {
		var buf bytes.Buffer
		printMigrateState(&buf, migrateState{Migration: database.MigrationStatus{Version: 1, Dirty: true}})
		assert.Contains(t, buf.String(), "dirty")
		assert.NotContains(t, buf.String(), "Researchers")
	})

	t.Run("clean database", func(t *testing.T) {
		var buf bytes.Buffer
		printMigrateState(&buf, migrateState{Migration: database.MigrationStatus{Clean: true}})
		assert.Equal(t, "No migrations applied\n", buf.String())
	})
}
