// Package openalex provides a client for the OpenAlex API.
//
// OpenAlex is a free, open catalog of scholarly works, authors, sources and
// institutions. This package resolves a DOI into normalized publication
// metadata and looks up author profiles by ORCID iD.
//
// API Documentation: https://docs.openalex.org/
package openalex

// Work represents a single work as returned by /works/doi:{doi}.
type Work struct {
	ID              string       `json:"id"`
	DOI             string       `json:"doi"`
	Title           string       `json:"title"`
	DisplayName     string       `json:"display_name"`
	PublicationYear int          `json:"publication_year"`
	PublicationDate string       `json:"publication_date"`
	Type            string       `json:"type"`
	CitedByCount    int          `json:"cited_by_count"`
	Authorships     []Authorship `json:"authorships"`
	PrimaryLocation *Location    `json:"primary_location"`
	IDs             IDs          `json:"ids"`

	// Abstracts are published as an inverted index, word -> positions.
	AbstractInvertedIndex map[string][]int `json:"abstract_inverted_index"`
}

// Authorship represents one author slot on a work.
type Authorship struct {
	AuthorPosition string        `json:"author_position"`
	Author         AuthorInfo    `json:"author"`
	Institutions   []Institution `json:"institutions"`
	Countries      []string      `json:"countries"`

	// RawAuthorName is the name string as printed on the paper.
	RawAuthorName         string   `json:"raw_author_name"`
	RawAffiliationStrings []string `json:"raw_affiliation_strings"`
}

// AuthorInfo contains the dehydrated author embedded in an authorship.
type AuthorInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Orcid       string `json:"orcid"`
}

// Institution represents an academic institution.
type Institution struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	CountryCode string `json:"country_code"`
}

// Location represents where a work is published.
type Location struct {
	Source *Source `json:"source"`
}

// Source represents a publication venue.
type Source struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	IssnL       string `json:"issn_l"`
	Type        string `json:"type"`
}

// IDs contains the external identifiers of a work.
type IDs struct {
	OpenAlex string `json:"openalex"`
	DOI      string `json:"doi"`
}

// Author is the full author entity returned by /authors/orcid:{orcid}.
type Author struct {
	ID                    string        `json:"id"`
	Orcid                 string        `json:"orcid"`
	DisplayName           string        `json:"display_name"`
	WorksCount            int           `json:"works_count"`
	CitedByCount          int           `json:"cited_by_count"`
	SummaryStats          SummaryStats  `json:"summary_stats"`
	LastKnownInstitutions []Institution `json:"last_known_institutions"`
	Affiliations          []Affiliation `json:"affiliations"`
}

// SummaryStats holds the bibliometric indicators of an author.
type SummaryStats struct {
	HIndex   int `json:"h_index"`
	I10Index int `json:"i10_index"`
}

// Affiliation is one entry of an author's affiliation history.
type Affiliation struct {
	Institution Institution `json:"institution"`
	Years       []int       `json:"years"`
}
