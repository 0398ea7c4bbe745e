// Package activities provides the Temporal activities of the matching
// workflows.
//
// Inputs and outputs cross the Temporal serialization boundary, so every
// field is exported and JSON-encodable.
package activities

import (
	"github.com/google/uuid"

	"github.com/helixir/author-matching-service/internal/domain"
)

// LoadRosterOutput carries the roster snapshot a batch matches against.
type LoadRosterOutput struct {
	Roster domain.Roster
}

// ListPendingInput contains the parameters for ListPendingPublications.
type ListPendingInput struct {
	// Limit is the maximum number of publications to return.
	Limit int
}

// ListPendingOutput lists pending publication ids, oldest first.
type ListPendingOutput struct {
	PublicationIDs []int64
}

// MatchChunkInput contains the parameters for MatchChunk.
type MatchChunkInput struct {
	// RunID tags the decisions written by the chunk.
	RunID uuid.UUID

	// PublicationIDs are the stored publications to match.
	PublicationIDs []int64

	// Roster is the batch snapshot. A nil roster is loaded by the activity.
	Roster domain.Roster
}
