// Package domain provides domain models and business logic for the Author Matching Service.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// MatchMethod records which rule produced a candidate.
// These values must match the database enum match_method.
type MatchMethod string

const (
	MatchMethodIdentifierExact MatchMethod = "identifier_exact"
	MatchMethodIdentifierNew   MatchMethod = "identifier_new"
	MatchMethodFuzzyValidated  MatchMethod = "fuzzy_validated"
)

// AllMatchMethods lists every match method in declaration order.
var AllMatchMethods = []MatchMethod{
	MatchMethodIdentifierExact,
	MatchMethodIdentifierNew,
	MatchMethodFuzzyValidated,
}

// IsValid reports whether m is a known match method.
func (m MatchMethod) IsValid() bool {
	switch m {
	case MatchMethodIdentifierExact, MatchMethodIdentifierNew, MatchMethodFuzzyValidated:
		return true
	default:
		return false
	}
}

func (m MatchMethod) String() string {
	return string(m)
}

// ParseMatchMethod converts a string into a MatchMethod.
func ParseMatchMethod(s string) (MatchMethod, error) {
	m := MatchMethod(strings.ToLower(strings.TrimSpace(s)))
	if !m.IsValid() {
		return "", NewValidationError("method", fmt.Sprintf("unknown match method %q", s))
	}
	return m, nil
}

// ActionTier is the downstream handling class of a match decision.
// These values must match the database enum action_tier.
type ActionTier string

const (
	ActionTierAutoAssign        ActionTier = "AUTO_ASSIGN"
	ActionTierAutoAssignWithLog ActionTier = "AUTO_ASSIGN_WITH_LOG"
	ActionTierManualReview      ActionTier = "MANUAL_REVIEW"
	ActionTierSkip              ActionTier = "SKIP"
)

// AllActionTiers lists every tier from most to least confident.
var AllActionTiers = []ActionTier{
	ActionTierAutoAssign,
	ActionTierAutoAssignWithLog,
	ActionTierManualReview,
	ActionTierSkip,
}

// IsValid reports whether t is a known action tier.
func (t ActionTier) IsValid() bool {
	switch t {
	case ActionTierAutoAssign, ActionTierAutoAssignWithLog, ActionTierManualReview, ActionTierSkip:
		return true
	default:
		return false
	}
}

// IsAutomatic returns true for tiers that link a researcher without a human.
func (t ActionTier) IsAutomatic() bool {
	return t == ActionTierAutoAssign || t == ActionTierAutoAssignWithLog
}

func (t ActionTier) String() string {
	return string(t)
}

// ParseActionTier converts a string into an ActionTier.
func ParseActionTier(s string) (ActionTier, error) {
	t := ActionTier(strings.ToUpper(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", NewValidationError("tier", fmt.Sprintf("unknown action tier %q", s))
	}
	return t, nil
}

// MatchStatus is the pipeline-level outcome for one publication.
// These values must match the database enum match_status.
type MatchStatus string

const (
	MatchStatusPending            MatchStatus = "pending"
	MatchStatusResolved           MatchStatus = "resolved"
	MatchStatusNoIdentifier       MatchStatus = "no_identifier"
	MatchStatusUnresolvedMetadata MatchStatus = "unresolved_metadata"
)

// IsUnresolved returns true when the publication could not be matched at all.
func (s MatchStatus) IsUnresolved() bool {
	return s == MatchStatusNoIdentifier || s == MatchStatusUnresolvedMetadata
}

// ReviewStatus tracks the human review state of a persisted decision.
// These values must match the database enum review_status.
type ReviewStatus string

const (
	ReviewStatusNone     ReviewStatus = "none"
	ReviewStatusPending  ReviewStatus = "pending"
	ReviewStatusAccepted ReviewStatus = "accepted"
	ReviewStatusRejected ReviewStatus = "rejected"
)

// IsValid reports whether s is a known review status.
func (s ReviewStatus) IsValid() bool {
	switch s {
	case ReviewStatusNone, ReviewStatusPending, ReviewStatusAccepted, ReviewStatusRejected:
		return true
	default:
		return false
	}
}

// IsTerminal returns true once a reviewer has acted on the decision.
func (s ReviewStatus) IsTerminal() bool {
	return s == ReviewStatusAccepted || s == ReviewStatusRejected
}

// AuthorProfile is an external author record looked up by unique identifier.
type AuthorProfile struct {
	ORCID                string `json:"orcid"`
	OpenAlexID           string `json:"openalex_id,omitempty"`
	DisplayName          string `json:"display_name"`
	WorksCount           int    `json:"works_count"`
	CitedByCount         int    `json:"cited_by_count"`
	HIndex               int    `json:"h_index"`
	I10Index             int    `json:"i10_index"`
	LastKnownInstitution string `json:"last_known_institution,omitempty"`
}

// BatchSummary aggregates the outcome of a batch matching run.
type BatchSummary struct {
	RunID              string             `json:"run_id"`
	Publications       int                `json:"publications"`
	Resolved           int                `json:"resolved"`
	NoIdentifier       int                `json:"no_identifier"`
	UnresolvedMetadata int                `json:"unresolved_metadata"`
	Decisions          int                `json:"decisions"`
	UnresolvedAuthors  int                `json:"unresolved_authors"`
	DecisionsByTier    map[ActionTier]int `json:"decisions_by_tier"`
	Failed             int                `json:"failed"`
	StartedAt          time.Time          `json:"started_at"`
	CompletedAt        time.Time          `json:"completed_at"`
}

// NewBatchSummary returns an empty summary for runID.
func NewBatchSummary(runID string) *BatchSummary {
	return &BatchSummary{
		RunID:           runID,
		DecisionsByTier: make(map[ActionTier]int, len(AllActionTiers)),
	}
}

// Add folds the result of one publication into the summary.
func (s *BatchSummary) Add(status MatchStatus, decisions []MatchDecision, unresolvedAuthors int) {
	if s.DecisionsByTier == nil {
		s.DecisionsByTier = make(map[ActionTier]int, len(AllActionTiers))
	}
	s.Publications++
	switch status {
	case MatchStatusResolved:
		s.Resolved++
	case MatchStatusNoIdentifier:
		s.NoIdentifier++
	case MatchStatusUnresolvedMetadata:
		s.UnresolvedMetadata++
	}
	s.Decisions += len(decisions)
	s.UnresolvedAuthors += unresolvedAuthors
	for _, d := range decisions {
		s.DecisionsByTier[d.Tier]++
	}
}

// Merge adds the counters of other into s.
func (s *BatchSummary) Merge(other *BatchSummary) {
	if other == nil {
		return
	}
	if s.DecisionsByTier == nil {
		s.DecisionsByTier = make(map[ActionTier]int, len(AllActionTiers))
	}
	s.Publications += other.Publications
	s.Resolved += other.Resolved
	s.NoIdentifier += other.NoIdentifier
	s.UnresolvedMetadata += other.UnresolvedMetadata
	s.Decisions += other.Decisions
	s.UnresolvedAuthors += other.UnresolvedAuthors
	s.Failed += other.Failed
	for tier, n := range other.DecisionsByTier {
		s.DecisionsByTier[tier] += n
	}
}
