package doaj

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/itsbakr/minerva-library/internal/domain"
	"github.com/itsbakr/minerva-library/internal/providers"
)

const (
	// DefaultBaseURL is the default DOAJ API base URL.
	DefaultBaseURL = "https://doaj.org/api"

	// DefaultRateLimit is the default rate limit. DOAJ documents a cap of
	// 2 requests per second for unauthenticated clients.
	DefaultRateLimit = 2.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 2

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// maxPageSize is the largest page DOAJ will serve.
	maxPageSize = 100
)

// Config holds configuration for the DOAJ client.
type Config struct {
	// BaseURL is the DOAJ API base URL.
	BaseURL string

	// Timeout is the request timeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// MaxResults caps how many records one search requests from this source.
	// Zero means no cap beyond the API's own page limit.
	MaxResults int

	// Enabled indicates whether this source participates in searches.
	Enabled bool
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

// Client implements the providers.Provider interface for DOAJ.
type Client struct {
	config     Config
	httpClient *providers.HTTPClient
}

var _ providers.Provider = (*Client)(nil)

// New creates a new DOAJ client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	httpClient := providers.NewHTTPClient(providers.HTTPClientConfig{
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		BurstSize: cfg.BurstSize,
		UserAgent: "MinervaLibrary/1.0",
	})

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// NewWithHTTPClient creates a new DOAJ client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *providers.HTTPClient) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// Search queries DOAJ for open access articles matching the given parameters.
func (c *Client) Search(ctx context.Context, params providers.SearchParams) (*providers.SearchResult, error) {
	searchURL, err := c.buildSearchURL(params)
	if err != nil {
		return nil, fmt.Errorf("building search URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, domain.NewExternalAPIError(domain.SourceDOAJ, resp.StatusCode, string(body), nil)
	}

	// Limit body to 10MB to prevent resource exhaustion.
	var searchResp SearchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	result := &providers.SearchResult{
		Records:    make([]domain.Record, 0, len(searchResp.Results)),
		TotalCount: searchResp.Total,
	}
	for i := range searchResp.Results {
		rec, ok := articleToRecord(&searchResp.Results[i])
		if !ok {
			result.Skipped++
			continue
		}
		result.Records = append(result.Records, rec)
	}

	return result, nil
}

// Name returns the canonical source name.
func (c *Client) Name() string {
	return domain.SourceDOAJ
}

// IsEnabled returns whether this source is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// buildSearchURL constructs the article search URL. Year bounds are folded
// into the query string using DOAJ's Elasticsearch range syntax.
func (c *Client) buildSearchURL(params providers.SearchParams) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}

	baseURL.Path = baseURL.Path + "/search/articles"

	searchQuery := params.Query
	if rangeFilter := yearRangeFilter(params.YearMin, params.YearMax); rangeFilter != "" {
		searchQuery = fmt.Sprintf("(%s) AND %s", params.Query, rangeFilter)
	}

	page := params.Page
	if page < 1 {
		page = 1
	}
	pageSize := params.PerPage
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	if c.config.MaxResults > 0 && pageSize > c.config.MaxResults {
		pageSize = c.config.MaxResults
	}

	query := url.Values{}
	query.Set("q", searchQuery)
	query.Set("page", strconv.Itoa(page))
	query.Set("pageSize", strconv.Itoa(pageSize))

	baseURL.RawQuery = query.Encode()
	return baseURL.String(), nil
}

// yearRangeFilter builds a bibjson.year range clause, or "" when unbounded.
func yearRangeFilter(yearMin, yearMax int) string {
	switch {
	case yearMin > 0 && yearMax > 0:
		return fmt.Sprintf("bibjson.year:[%d TO %d]", yearMin, yearMax)
	case yearMin > 0:
		return fmt.Sprintf("bibjson.year:[%d TO *]", yearMin)
	case yearMax > 0:
		return fmt.Sprintf("bibjson.year:[* TO %d]", yearMax)
	default:
		return ""
	}
}

// articleToRecord converts a DOAJ article to a domain Record.
// Every DOAJ article is open access; citation counts are not available.
func articleToRecord(article *Article) (domain.Record, bool) {
	bib := &article.BibJSON
	if article.ID == "" && bib.Title == "" {
		return domain.Record{}, false
	}

	authors := make([]domain.Author, 0, len(bib.Author))
	for _, a := range bib.Author {
		if a.Name == "" {
			continue
		}
		authors = append(authors, domain.Author{
			Name:        a.Name,
			Affiliation: a.Affiliation,
		})
	}

	var year int
	if bib.Year != "" {
		if y, err := strconv.Atoi(bib.Year); err == nil {
			year = y
		}
	}

	var doi string
	for _, id := range bib.Identifier {
		if id.Type == "doi" {
			doi = domain.NormalizeDOI(id.ID)
			break
		}
	}

	// Prefer the declared fulltext link, falling back to any link at all.
	var oaURL string
	for _, link := range bib.Link {
		if link.Type == "fulltext" {
			oaURL = link.URL
			break
		}
	}
	if oaURL == "" && len(bib.Link) > 0 {
		oaURL = bib.Link[0].URL
	}

	recordID := article.ID
	if recordID == "" {
		recordID = doi
	}

	pageURL := oaURL
	if doi != "" {
		pageURL = "https://doi.org/" + doi
	}

	rec := domain.Record{
		ID:              recordID,
		Title:           bib.Title,
		Authors:         authors,
		Abstract:        bib.Abstract,
		PublicationYear: year,
		Source:          domain.SourceDOAJ,
		DOI:             doi,
		URL:             pageURL,
		IsOpenAccess:    true,
		OpenAccessURL:   oaURL,
	}
	rec.Sanitize()
	return rec, true
}
