package httpserver

import (
	"time"

	"github.com/helixir/author-matching-service/internal/domain"
)

// Response types for JSON serialization.

type publicationResponse struct {
	ID              int64      `json:"id"`
	Title           string     `json:"title,omitempty"`
	URLOrDOI        string     `json:"url_or_doi"`
	FreeTextAuthors string     `json:"free_text_authors,omitempty"`
	DOI             string     `json:"doi,omitempty"`
	MatchStatus     string     `json:"match_status"`
	MatchedAt       *time.Time `json:"matched_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

type createPublicationResponse struct {
	Publication publicationResponse `json:"publication"`
	WorkflowID  string              `json:"workflow_id,omitempty"`
}

type decisionResponse struct {
	ID              string         `json:"id"`
	RunID           string         `json:"run_id"`
	PublicationID   int64          `json:"publication_id"`
	AuthorPosition  int            `json:"author_position"`
	AuthorName      string         `json:"author_name"`
	AuthorORCID     string         `json:"author_orcid,omitempty"`
	ResearcherID    *int64         `json:"researcher_id,omitempty"`
	Method          string         `json:"method"`
	Tier            string         `json:"tier"`
	FinalConfidence float64        `json:"final_confidence"`
	Signals         domain.Signals `json:"signals"`
	ReviewStatus    string         `json:"review_status"`
	ReviewedBy      string         `json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time     `json:"reviewed_at,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

type listDecisionsResponse struct {
	Decisions  []decisionResponse `json:"decisions"`
	TotalCount int64              `json:"total_count"`
	Limit      int                `json:"limit"`
	Offset     int                `json:"offset"`
}

type startBatchResponse struct {
	WorkflowID string `json:"workflow_id"`
	RunID      string `json:"run_id"`
	Limit      int    `json:"limit"`
}

type stopBatchResponse struct {
	WorkflowID string `json:"workflow_id"`
	Status     string `json:"status"`
}

type variationsResponse struct {
	ResearcherID int64    `json:"researcher_id"`
	Variations   []string `json:"variations"`
}

// Converter functions

func domainPublicationToResponse(p *domain.Publication) publicationResponse {
	return publicationResponse{
		ID:              p.ID,
		Title:           p.Title,
		URLOrDOI:        p.URLOrDOI,
		FreeTextAuthors: p.FreeTextAuthors,
		DOI:             p.DOI,
		MatchStatus:     string(p.MatchStatus),
		MatchedAt:       p.MatchedAt,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}

func domainDecisionToResponse(d *domain.StoredDecision) decisionResponse {
	return decisionResponse{
		ID:              d.ID.String(),
		RunID:           d.RunID.String(),
		PublicationID:   d.PublicationID,
		AuthorPosition:  d.AuthorPosition,
		AuthorName:      d.AuthorName,
		AuthorORCID:     d.AuthorORCID,
		ResearcherID:    d.ResearcherID,
		Method:          string(d.Method),
		Tier:            string(d.Tier),
		FinalConfidence: d.FinalConfidence,
		Signals:         d.Signals,
		ReviewStatus:    string(d.ReviewStatus),
		ReviewedBy:      d.ReviewedBy,
		ReviewedAt:      d.ReviewedAt,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

func domainDecisionsToResponse(decisions []*domain.StoredDecision) []decisionResponse {
	out := make([]decisionResponse, len(decisions))
	for i, d := range decisions {
		out[i] = domainDecisionToResponse(d)
	}
	return out
}
