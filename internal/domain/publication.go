package domain

import (
	"strings"
	"time"
)

// RawPublicationRef is the pipeline input for one publication.
type RawPublicationRef struct {
	// PublicationID is zero for ad-hoc requests that are not stored.
	PublicationID   int64  `json:"publication_id,omitempty"`
	Title           string `json:"title,omitempty"`
	URLOrDOI        string `json:"url_or_doi"`
	FreeTextAuthors string `json:"free_text_authors,omitempty"`
}

// ExternalAuthorRecord is one author of a publication as reported by a bibliographic registry.
type ExternalAuthorRecord struct {
	Position   int    `json:"position"`
	GivenName  string `json:"given_name,omitempty"`
	FamilyName string `json:"family_name,omitempty"`
	// RawName is the author string as printed on the paper, e.g. "García, J.".
	RawName string `json:"raw_name,omitempty"`
	// UniqueID is a bare ORCID without URL prefix.
	UniqueID     string   `json:"unique_id,omitempty"`
	Affiliations []string `json:"affiliations,omitempty"`
	CountryCodes []string `json:"country_codes,omitempty"`
}

// FullName joins given and family names.
func (a ExternalAuthorRecord) FullName() string {
	return strings.TrimSpace(strings.Join(strings.Fields(a.GivenName+" "+a.FamilyName), " "))
}

// DisplayName returns the best printable name for logs and audit rows.
func (a ExternalAuthorRecord) DisplayName() string {
	if full := a.FullName(); full != "" {
		return full
	}
	return strings.TrimSpace(a.RawName)
}

// PublicationMetadata is normalized publication metadata resolved from a DOI.
type PublicationMetadata struct {
	DOI                        string                 `json:"doi"`
	OpenAlexID                 string                 `json:"openalex_id,omitempty"`
	Title                      string                 `json:"title"`
	Authors                    []ExternalAuthorRecord `json:"authors"`
	PublishedDate              *time.Time             `json:"published_date,omitempty"`
	Journal                    string                 `json:"journal,omitempty"`
	ISSN                       string                 `json:"issn,omitempty"`
	Abstract                   string                 `json:"abstract,omitempty"`
	CitedByCount               int                    `json:"cited_by_count"`
	InternationalCollaboration bool                   `json:"international_collaboration"`
}

// OtherAuthorNames returns the display names of every author except the one at position.
func (m *PublicationMetadata) OtherAuthorNames(position int) []string {
	if m == nil {
		return nil
	}
	out := make([]string, 0, len(m.Authors))
	for _, a := range m.Authors {
		if a.Position == position {
			continue
		}
		if name := a.DisplayName(); name != "" {
			out = append(out, name)
		}
	}
	return out
}

// Publication is a stored publication awaiting or having completed matching.
type Publication struct {
	ID              int64
	Title           string
	URLOrDOI        string
	FreeTextAuthors string
	DOI             string
	MatchStatus     MatchStatus
	MatchedAt       *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Ref converts the stored publication into pipeline input.
func (p *Publication) Ref() RawPublicationRef {
	return RawPublicationRef{
		PublicationID:   p.ID,
		Title:           p.Title,
		URLOrDOI:        p.URLOrDOI,
		FreeTextAuthors: p.FreeTextAuthors,
	}
}
