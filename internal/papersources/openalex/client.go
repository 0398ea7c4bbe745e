package openalex

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/helixir/author-matching-service/internal/domain"
	"github.com/helixir/author-matching-service/internal/identifier"
	"github.com/helixir/author-matching-service/internal/papersources"
)

const (
	// DefaultBaseURL is the default OpenAlex API base URL.
	DefaultBaseURL = "https://api.openalex.org"

	// DefaultRateLimit is the default rate limit for requests per second.
	// The polite pool (requests carrying mailto) tolerates 10 req/s.
	DefaultRateLimit = 10.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 10

	// DefaultTimeout bounds one metadata lookup.
	DefaultTimeout = 15 * time.Second

	sourceName = "OpenAlex"

	// doiPrefix is the URL prefix that OpenAlex uses for DOIs.
	doiPrefix = "https://doi.org/"

	// openAlexIDPrefix is the URL prefix for OpenAlex IDs.
	openAlexIDPrefix = "https://openalex.org/"

	// maxBodyBytes caps decoded response bodies.
	maxBodyBytes = 10 << 20
)

// Config holds configuration for the OpenAlex client.
type Config struct {
	// BaseURL is the OpenAlex API base URL.
	// Defaults to https://api.openalex.org
	BaseURL string

	// Email is the contact email for the polite pool.
	// See: https://docs.openalex.org/how-to-use-the-api/rate-limits-and-authentication
	Email string

	// APIKey is the optional premium API key, sent as the api_key query parameter.
	APIKey string

	// Timeout is the request timeout.
	// Defaults to 15 seconds.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int
}

// applyDefaults sets default values for unset configuration fields.
func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.BurstSize == 0 {
		c.BurstSize = DefaultBurstSize
	}
}

// Client resolves DOIs and ORCID iDs against OpenAlex.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
}

var (
	_ papersources.MetadataSource = (*Client)(nil)
	_ papersources.AuthorSource   = (*Client)(nil)
)

// New creates a new OpenAlex client with the given configuration.
// Lookups are made exactly once; a failed lookup is reported, not retried.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	userAgent := "Helixir-AuthorMatching/1.0"
	if cfg.Email != "" {
		userAgent += " (mailto:" + cfg.Email + ")"
	}

	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Timeout:    cfg.Timeout,
		RateLimit:  cfg.RateLimit,
		BurstSize:  cfg.BurstSize,
		MaxRetries: 0,
		UserAgent:  userAgent,
	})

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// NewWithHTTPClient creates a new OpenAlex client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// Resolve fetches the work registered under doi and converts it into
// publication metadata. Missing optional fields (abstract, institutions,
// ORCIDs) are left empty rather than treated as errors.
func (c *Client) Resolve(ctx context.Context, doi string) (*domain.PublicationMetadata, error) {
	doi = normalizeDOI(doi)
	if doi == "" {
		return nil, domain.NewValidationError("doi", "must not be empty")
	}

	fetchURL, err := c.buildURL("/works/doi:" + doi)
	if err != nil {
		return nil, fmt.Errorf("building fetch URL: %w", err)
	}

	var work Work
	if err := c.getJSON(ctx, fetchURL, "publication", doi, &work); err != nil {
		return nil, err
	}

	md := workToMetadata(&work)
	if md.DOI == "" {
		md.DOI = doi
	}
	return md, nil
}

// GetAuthorByORCID fetches the OpenAlex author profile for an ORCID iD.
func (c *Client) GetAuthorByORCID(ctx context.Context, orcid string) (*domain.AuthorProfile, error) {
	normalized, ok := identifier.NormalizeORCID(orcid)
	if !ok {
		return nil, domain.NewValidationError("orcid", fmt.Sprintf("malformed ORCID iD %q", orcid))
	}

	fetchURL, err := c.buildURL("/authors/orcid:" + normalized)
	if err != nil {
		return nil, fmt.Errorf("building fetch URL: %w", err)
	}

	var author Author
	if err := c.getJSON(ctx, fetchURL, "author", normalized, &author); err != nil {
		return nil, err
	}

	return authorToProfile(&author, normalized), nil
}

// getJSON performs one GET and decodes a 200 response into out. Status codes
// are mapped to domain errors: 404 to NotFoundError, 429 to RateLimitError and
// anything else to ExternalAPIError.
func (c *Client) getJSON(ctx context.Context, fetchURL, entity, id string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.NewExternalAPIError(sourceName, 0, "request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.NewNotFoundError(entity, id)
	case resp.StatusCode == http.StatusTooManyRequests:
		return domain.NewRateLimitError(sourceName, papersources.RetryAfter(resp))
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return domain.NewExternalAPIError(sourceName, resp.StatusCode, string(body), nil)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(out); err != nil {
		return fmt.Errorf("decoding %s %s: %w: %w", entity, id, domain.ErrMalformedMetadata, err)
	}
	return nil
}

// buildURL joins path onto the base URL and adds the polite pool parameters.
// OpenAlex expects DOIs as-is in the path and decodes them on its side.
func (c *Client) buildURL(path string) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}

	baseURL.Path = strings.TrimSuffix(baseURL.Path, "/") + path

	query := url.Values{}
	if c.config.Email != "" {
		query.Set("mailto", c.config.Email)
	}
	if c.config.APIKey != "" {
		query.Set("api_key", c.config.APIKey)
	}
	baseURL.RawQuery = query.Encode()

	return baseURL.String(), nil
}

// workToMetadata converts an OpenAlex Work to publication metadata.
func workToMetadata(work *Work) *domain.PublicationMetadata {
	doi := normalizeDOI(work.DOI)
	if doi == "" {
		doi = normalizeDOI(work.IDs.DOI)
	}

	openAlexID := normalizeOpenAlexID(work.ID)
	if openAlexID == "" {
		openAlexID = normalizeOpenAlexID(work.IDs.OpenAlex)
	}

	// display_name is usually cleaner than title
	title := work.DisplayName
	if title == "" {
		title = work.Title
	}

	var pubDate *time.Time
	if work.PublicationDate != "" {
		if t, err := time.Parse("2006-01-02", work.PublicationDate); err == nil {
			pubDate = &t
		}
	}

	var journal, issn string
	if work.PrimaryLocation != nil && work.PrimaryLocation.Source != nil {
		journal = work.PrimaryLocation.Source.DisplayName
		issn = work.PrimaryLocation.Source.IssnL
	}

	countries := make(map[string]struct{})
	authors := make([]domain.ExternalAuthorRecord, 0, len(work.Authorships))
	for i, authorship := range work.Authorships {
		record := authorshipToRecord(i, &authorship)
		for _, cc := range record.CountryCodes {
			countries[cc] = struct{}{}
		}
		authors = append(authors, record)
	}

	return &domain.PublicationMetadata{
		DOI:                        doi,
		OpenAlexID:                 openAlexID,
		Title:                      title,
		Authors:                    authors,
		PublishedDate:              pubDate,
		Journal:                    journal,
		ISSN:                       issn,
		Abstract:                   reconstructAbstract(work.AbstractInvertedIndex),
		CitedByCount:               work.CitedByCount,
		InternationalCollaboration: len(countries) > 1,
	}
}

func authorshipToRecord(position int, a *Authorship) domain.ExternalAuthorRecord {
	given, family := splitDisplayName(a.Author.DisplayName)

	record := domain.ExternalAuthorRecord{
		Position:   position,
		GivenName:  given,
		FamilyName: family,
		RawName:    strings.TrimSpace(a.RawAuthorName),
	}
	if record.RawName == "" {
		record.RawName = strings.TrimSpace(a.Author.DisplayName)
	}
	if orcid, ok := identifier.NormalizeORCID(a.Author.Orcid); ok {
		record.UniqueID = orcid
	}

	for _, inst := range a.Institutions {
		if name := strings.TrimSpace(inst.DisplayName); name != "" {
			record.Affiliations = append(record.Affiliations, name)
		}
	}
	if len(record.Affiliations) == 0 {
		for _, raw := range a.RawAffiliationStrings {
			if raw = strings.TrimSpace(raw); raw != "" {
				record.Affiliations = append(record.Affiliations, raw)
			}
		}
	}

	record.CountryCodes = countryCodes(a)
	return record
}

// countryCodes returns the distinct upper-cased country codes of an authorship
// in first-seen order.
func countryCodes(a *Authorship) []string {
	var out []string
	seen := make(map[string]struct{})
	add := func(cc string) {
		cc = strings.ToUpper(strings.TrimSpace(cc))
		if cc == "" {
			return
		}
		if _, ok := seen[cc]; ok {
			return
		}
		seen[cc] = struct{}{}
		out = append(out, cc)
	}
	for _, inst := range a.Institutions {
		add(inst.CountryCode)
	}
	for _, cc := range a.Countries {
		add(cc)
	}
	return out
}

// splitDisplayName treats the last whitespace-separated token as the family
// name and everything before it as the given name.
func splitDisplayName(name string) (given, family string) {
	parts := strings.Fields(name)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return "", parts[0]
	default:
		return strings.Join(parts[:len(parts)-1], " "), parts[len(parts)-1]
	}
}

func authorToProfile(a *Author, orcid string) *domain.AuthorProfile {
	profile := &domain.AuthorProfile{
		ORCID:        orcid,
		OpenAlexID:   normalizeOpenAlexID(a.ID),
		DisplayName:  a.DisplayName,
		WorksCount:   a.WorksCount,
		CitedByCount: a.CitedByCount,
		HIndex:       a.SummaryStats.HIndex,
		I10Index:     a.SummaryStats.I10Index,
	}
	if returned, ok := identifier.NormalizeORCID(a.Orcid); ok {
		profile.ORCID = returned
	}

	switch {
	case len(a.LastKnownInstitutions) > 0:
		profile.LastKnownInstitution = a.LastKnownInstitutions[0].DisplayName
	case len(a.Affiliations) > 0:
		profile.LastKnownInstitution = latestAffiliation(a.Affiliations)
	}
	return profile
}

// latestAffiliation picks the institution with the most recent year on record.
func latestAffiliation(affs []Affiliation) string {
	best, bestYear := "", -1
	for _, aff := range affs {
		for _, y := range aff.Years {
			if y > bestYear {
				best, bestYear = aff.Institution.DisplayName, y
			}
		}
	}
	if best == "" {
		return affs[0].Institution.DisplayName
	}
	return best
}

// normalizeDOI strips the https://doi.org/ prefix from DOIs and returns lowercase.
func normalizeDOI(doi string) string {
	doi = strings.TrimSpace(doi)
	if doi == "" {
		return ""
	}
	doi = strings.TrimPrefix(doi, doiPrefix)
	doi = strings.TrimPrefix(doi, "http://doi.org/")
	doi = strings.TrimPrefix(doi, "doi:")
	return strings.ToLower(strings.TrimSpace(doi))
}

// normalizeOpenAlexID extracts the short ID from full OpenAlex URLs.
func normalizeOpenAlexID(id string) string {
	return strings.TrimSpace(strings.TrimPrefix(id, openAlexIDPrefix))
}

// reconstructAbstract rebuilds the abstract text from OpenAlex's inverted index.
func reconstructAbstract(invertedIndex map[string][]int) string {
	if len(invertedIndex) == 0 {
		return ""
	}

	type posWord struct {
		pos  int
		word string
	}
	const maxAbstractWords = 100_000
	totalPairs := 0
	for _, positions := range invertedIndex {
		totalPairs += len(positions)
	}
	if totalPairs > maxAbstractWords {
		return ""
	}

	pairs := make([]posWord, 0, totalPairs)
	for word, positions := range invertedIndex {
		for _, pos := range positions {
			pairs = append(pairs, posWord{pos: pos, word: word})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].pos < pairs[j].pos
	})

	words := make([]string, len(pairs))
	for i, p := range pairs {
		words[i] = p.word
	}
	return strings.Join(words, " ")
}
