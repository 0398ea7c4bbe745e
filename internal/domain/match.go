package domain

import (
	"time"

	"github.com/google/uuid"
)

// Signals is the per-pair breakdown produced by the candidate scorer.
type Signals struct {
	IdentifierExact bool    `json:"identifier_exact"`
	FuzzyName       float64 `json:"fuzzy_name"`
	Initials        float64 `json:"initials"`
	Affiliation     float64 `json:"affiliation"`
	Coauthor        float64 `json:"coauthor"`
}

// CandidateScore is the selected candidate for one external author.
type CandidateScore struct {
	// ResearcherID is nil when the author is a new identity.
	ResearcherID    *int64      `json:"researcher_id,omitempty"`
	UniqueID        string      `json:"unique_id,omitempty"`
	Signals         Signals     `json:"signals"`
	FinalConfidence float64     `json:"final_confidence"`
	Method          MatchMethod `json:"method"`
}

// MatchDecision is the terminal pipeline output for one external author.
type MatchDecision struct {
	Author    ExternalAuthorRecord `json:"author"`
	Candidate CandidateScore       `json:"candidate"`
	Tier      ActionTier           `json:"tier"`
}

// HasResearcher reports whether the decision points at a roster member.
func (d MatchDecision) HasResearcher() bool {
	return d.Candidate.ResearcherID != nil
}

// StoredDecision is a persisted MatchDecision with review state.
type StoredDecision struct {
	ID              uuid.UUID
	RunID           uuid.UUID
	PublicationID   int64
	AuthorPosition  int
	AuthorName      string
	AuthorORCID     string
	ResearcherID    *int64
	Method          MatchMethod
	Tier            ActionTier
	FinalConfidence float64
	Signals         Signals
	ReviewStatus    ReviewStatus
	ReviewedBy      string
	ReviewedAt      *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// InitialReviewStatus returns the review state a fresh decision of this tier starts in.
func InitialReviewStatus(tier ActionTier) ReviewStatus {
	if tier == ActionTierManualReview {
		return ReviewStatusPending
	}
	return ReviewStatusNone
}

// Int64Ptr returns a pointer to v.
func Int64Ptr(v int64) *int64 {
	return &v
}
